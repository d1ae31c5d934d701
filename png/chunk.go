package png

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

// Chunk type codes this package understands. cdBC is a private,
// ancillary, unsafe-to-copy chunk (lower-case fourth byte) carrying a
// single packed transparency colour alongside the standard tRNS chunk.
const (
	typeIHDR = "IHDR"
	typePLTE = "PLTE"
	typeTRNS = "tRNS"
	typeIDAT = "IDAT"
	typeIEND = "IEND"
	typeGAMA = "gAMA"
	typeBKGD = "bKGD"
	typeCDBC = "cdBC"

	// typeTRNSTypo is a historical misspelling of tRNS accepted as a
	// synonym on read. Never emitted.
	typeTRNSTypo = "rRNS"
)

// canonicalType maps a chunk type as read off the wire to the type this
// package dispatches on, applying the rRNS -> tRNS alias.
func canonicalType(raw string) string {
	if raw == typeTRNSTypo {
		return typeTRNS
	}
	return raw
}

// ChunkRecord is one length-prefixed, CRC-checked PNG chunk.
type ChunkRecord struct {
	Type string
	Data []byte
}

// readChunk reads one chunk from r. crcValid reports whether the
// trailing CRC-32 matched (type+data); callers apply strict/lenient
// policy based on this flag rather than readChunk itself, since the
// tolerance differs by chunk position (spec: CRC failures on ancillary
// chunks after the first IDAT are downgradable to warnings).
func readChunk(r io.Reader) (rec ChunkRecord, crcValid bool, err error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return ChunkRecord{}, false, errors.Wrap(err, "reading chunk header")
	}
	length := binary.BigEndian.Uint32(head[:4])
	typ := string(head[4:8])

	data := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return ChunkRecord{}, false, errors.Wrap(err, "reading chunk payload")
		}
	}

	var crcBytes [4]byte
	if _, err := io.ReadFull(r, crcBytes[:]); err != nil {
		return ChunkRecord{}, false, errors.Wrap(err, "reading chunk CRC")
	}
	want := binary.BigEndian.Uint32(crcBytes[:])

	crc := crc32.NewIEEE()
	crc.Write(head[4:8])
	crc.Write(data)
	got := crc.Sum32()

	return ChunkRecord{Type: canonicalType(typ), Data: data}, got == want, nil
}

// writeChunk writes one length-prefixed, CRC-checked chunk to w.
func writeChunk(w io.Writer, typ string, data []byte) error {
	var head [8]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(data)))
	copy(head[4:8], typ)
	if _, err := w.Write(head[:]); err != nil {
		return errors.Wrap(err, "writing chunk header")
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return errors.Wrap(err, "writing chunk payload")
		}
	}

	crc := crc32.NewIEEE()
	crc.Write(head[4:8])
	crc.Write(data)
	var crcBytes [4]byte
	binary.BigEndian.PutUint32(crcBytes[:], crc.Sum32())
	if _, err := w.Write(crcBytes[:]); err != nil {
		return errors.Wrap(err, "writing chunk CRC")
	}
	return nil
}
