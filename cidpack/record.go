package cidpack

import (
	"crypto/md5"
	"encoding/binary"
	"io"
)

// fileRecord is the per-file header that precedes each file's payload,
// per spec §3.3/§6.4. CompressedSize == OriginalSize is the sentinel
// meaning the payload was stored verbatim rather than deflated.
type fileRecord struct {
	CompressedSize uint32
	OriginalSize   uint32
	MD5            [md5.Size]byte
	RelPath        string
}

func writeFileRecord(w io.Writer, rec fileRecord) error {
	buf := make([]byte, 0, 34)
	buf = append(buf, markerStart, fileRecordFormatVersion)
	buf = appendUint32(buf, rec.CompressedSize)
	buf = appendUint32(buf, rec.OriginalSize)
	buf = appendUint32(buf, rec.CompressedSize^0xFFFFFFFF)
	buf = appendUint32(buf, rec.OriginalSize^0xFFFFFFFF)
	buf = append(buf, rec.MD5[:]...)
	if _, err := w.Write(buf); err != nil {
		return wrapError(ResourceError, 20, "writing file record", err)
	}
	if err := writeUTF16LEString(w, rec.RelPath); err != nil {
		return wrapError(ResourceError, 21, "writing file record relative path", err)
	}
	if _, err := w.Write([]byte{markerEnd}); err != nil {
		return wrapError(ResourceError, 22, "writing file record end marker", err)
	}
	return nil
}

func readFileRecord(r io.Reader) (fileRecord, error) {
	var rec fileRecord
	var fixed [34]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return rec, wrapError(ResourceError, 23, "reading file record", err)
	}
	if fixed[0] != markerStart {
		return rec, wrapError(FormatError, 24, "file record missing start marker", ErrBadMarker)
	}
	version := fixed[1]
	if version == 0 || version > fileRecordFormatVersion {
		return rec, wrapError(UnsupportedError, 25, "unsupported file record format version", ErrUnknownVersion)
	}
	rec.CompressedSize = binary.BigEndian.Uint32(fixed[2:6])
	rec.OriginalSize = binary.BigEndian.Uint32(fixed[6:10])
	xcomp := binary.BigEndian.Uint32(fixed[10:14])
	xorg := binary.BigEndian.Uint32(fixed[14:18])
	if rec.CompressedSize != xcomp^0xFFFFFFFF || rec.OriginalSize != xorg^0xFFFFFFFF {
		return rec, wrapError(FormatError, 26, "file record size redundancy check failed", ErrRedundancyFailed)
	}
	copy(rec.MD5[:], fixed[18:34])
	path, err := readUTF16LEString(r)
	if err != nil {
		return rec, wrapError(ResourceError, 27, "reading file record relative path", err)
	}
	rec.RelPath = path
	var end [1]byte
	if _, err := io.ReadFull(r, end[:]); err != nil {
		return rec, wrapError(ResourceError, 28, "reading file record end marker", err)
	}
	if end[0] != markerEnd {
		return rec, wrapError(FormatError, 29, "file record missing end marker", ErrBadMarker)
	}
	return rec, nil
}
