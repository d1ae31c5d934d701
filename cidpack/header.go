package cidpack

import (
	"encoding/binary"
	"io"
	"time"
	"unicode/utf16"
)

// signature is the fixed 12-byte ASCII magic every package begins with.
var signature = [12]byte{'(', 'C', 'I', 'D', 'P', 'a', 'c', 'k', ')', ' ', 'V', '1'}

// Object markers bracket every streamed structure, mirroring the
// original format's CheckForStartMarker/CheckForEndMarker pairs. A
// mismatch on read means the stream desynchronised.
const (
	markerStart byte = 0xFA
	markerEnd   byte = 0xCE
)

// headerFormatVersion and fileRecordFormatVersion are the only versions
// this build understands. Per spec §9's resolved open question, a
// stored version of 0 or greater than these is rejected.
const (
	headerFormatVersion     = 1
	fileRecordFormatVersion = 1
)

// cidEpoch is the zero point for the 100-ns tick timestamps this format
// stores, matching CIDLib's TEncodedTime convention (100-ns ticks since
// 1601-01-01 UTC, the same epoch Windows FILETIME uses).
var cidEpoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// The tick conversions go through whole seconds because a time.Duration
// cannot span the more than 292 years between cidEpoch and today.
func timeToTicks(t time.Time) uint64 {
	secs := t.Unix() - cidEpoch.Unix()
	return uint64(secs)*10000000 + uint64(t.Nanosecond()/100)
}

func ticksToTime(ticks uint64) time.Time {
	secs := int64(ticks / 10000000)
	return time.Unix(cidEpoch.Unix()+secs, int64(ticks%10000000)*100).UTC()
}

// Header is the package-level metadata written once, immediately after
// the signature, per spec §3.3/§6.4.
type Header struct {
	// UserVersion is an opaque 64-bit version the caller assigns to the
	// package contents; this format does not interpret it.
	UserVersion uint64
	// FileCount is the number of FileRecords that follow. Pack computes
	// it from the source tree; Extract reports it back to the caller.
	FileCount uint32
	// Timestamp is when the package was created.
	Timestamp time.Time
	// UserCard4 and UserCard8 are opaque caller slots, uninterpreted.
	UserCard4 uint32
	UserCard8 uint64
	// Notes is a caller-supplied free-text annotation, stored
	// uncompressed as a length-prefixed UTF-16LE string.
	Notes string
}

func writeHeader(w io.Writer, h Header) error {
	if _, err := w.Write(signature[:]); err != nil {
		return wrapError(ResourceError, 1, "writing package signature", err)
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, markerStart, headerFormatVersion)
	buf = appendUint64(buf, h.UserVersion)
	buf = appendUint32(buf, h.FileCount)
	buf = appendUint64(buf, timeToTicks(h.Timestamp))
	buf = appendUint32(buf, h.UserCard4)
	buf = appendUint64(buf, h.UserCard8)
	if _, err := w.Write(buf); err != nil {
		return wrapError(ResourceError, 2, "writing package header", err)
	}
	if err := writeUTF16LEString(w, h.Notes); err != nil {
		return wrapError(ResourceError, 3, "writing package notes", err)
	}
	if _, err := w.Write([]byte{markerEnd}); err != nil {
		return wrapError(ResourceError, 4, "writing package header end marker", err)
	}
	return nil
}

func readHeader(r io.Reader) (Header, error) {
	var h Header
	var sig [12]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return h, wrapError(ResourceError, 5, "reading package signature", err)
	}
	if sig != signature {
		return h, wrapError(FormatError, 6, "package signature mismatch", ErrBadSignature)
	}
	var fixed [22]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return h, wrapError(ResourceError, 7, "reading package header", err)
	}
	if fixed[0] != markerStart {
		return h, wrapError(FormatError, 8, "package header missing start marker", ErrBadMarker)
	}
	version := fixed[1]
	if version == 0 || version > headerFormatVersion {
		return h, wrapError(UnsupportedError, 9, "unsupported package header format version", ErrUnknownVersion)
	}
	h.UserVersion = binary.BigEndian.Uint64(fixed[2:10])
	h.FileCount = binary.BigEndian.Uint32(fixed[10:14])
	h.Timestamp = ticksToTime(binary.BigEndian.Uint64(fixed[14:22]))
	var tail [12]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return h, wrapError(ResourceError, 10, "reading package header tail", err)
	}
	h.UserCard4 = binary.BigEndian.Uint32(tail[0:4])
	h.UserCard8 = binary.BigEndian.Uint64(tail[4:12])
	notes, err := readUTF16LEString(r)
	if err != nil {
		return h, wrapError(ResourceError, 11, "reading package notes", err)
	}
	h.Notes = notes
	var end [1]byte
	if _, err := io.ReadFull(r, end[:]); err != nil {
		return h, wrapError(ResourceError, 12, "reading package header end marker", err)
	}
	if end[0] != markerEnd {
		return h, wrapError(FormatError, 13, "package header missing end marker", ErrBadMarker)
	}
	return h, nil
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// writeUTF16LEString writes a 4-byte big-endian code-unit count followed
// by that many UTF-16LE code units, matching the length-prefixed string
// layout spec §6.4 describes for package notes and relative paths.
func writeUTF16LEString(w io.Writer, s string) error {
	units := utf16.Encode([]rune(s))
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(units)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	_, err := w.Write(buf)
	return err
}

func readUTF16LEString(r io.Reader) (string, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, int(n)*2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}
	return string(utf16.Decode(units)), nil
}
