package deflate

import (
	"encoding/binary"
	"hash"
	"hash/adler32"
)

// zlib wrapper constants (RFC 1950).
const (
	zlibMethodDeflate = 8
	zlibWindowBits    = 15 // CINFO = windowBits-8 = 7
)

// writeZlibHeader builds the 2-byte CMF/FLG header for the given
// compression level, choosing FLEVEL per RFC 1950 §2.3.1's guidance
// (0 fastest .. 3 slowest) and picking FCHECK so (CMF*256+FLG) % 31 == 0.
func writeZlibHeader(level int) [2]byte {
	cmf := byte((zlibWindowBits-8)<<4 | zlibMethodDeflate)
	var flevel byte
	switch {
	case level == 0:
		flevel = 0
	case level <= 3:
		flevel = 1
	case level <= 6:
		flevel = 2
	default:
		flevel = 3
	}
	flg := flevel << 6 // FDICT=0
	check := (uint16(cmf)*256 + uint16(flg)) % 31
	if check != 0 {
		flg += byte(31 - check)
	}
	return [2]byte{cmf, flg}
}

// parseZlibHeader validates a 2-byte CMF/FLG header per spec §4.3's Head
// state: (CMF*256+FLG) % 31 == 0, compression method 8, window bits <=15.
func parseZlibHeader(cmf, flg byte) (fdict bool, err error) {
	if (uint16(cmf)*256+uint16(flg))%31 != 0 {
		return false, wrapError(FormatError, 1, "zlib header check bits invalid", ErrBadHeader)
	}
	method := cmf & 0x0f
	if method != zlibMethodDeflate {
		return false, newError(UnsupportedError, 2, "compression method not deflate")
	}
	cinfo := cmf >> 4
	if cinfo > 7 {
		return false, newError(FormatError, 3, "window size exceeds 32 KiB")
	}
	fdict = flg&0x20 != 0
	return fdict, nil
}

// adlerWriter accumulates an Adler-32 checksum over every byte written
// to it, used by both the encoder (to produce the trailer) and the
// decoder (to verify it).
type adlerWriter struct {
	h hash.Hash32
}

func newAdlerWriter() *adlerWriter { return &adlerWriter{h: adler32.New()} }

func (a *adlerWriter) Write(p []byte) (int, error) { return a.h.Write(p) }

func (a *adlerWriter) Sum32() uint32 { return a.h.Sum32() }

func putUint32BE(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getUint32BE(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
