package deflate

import (
	"io"

	"github.com/cidpack/cidpack/internal/bitio"
	"github.com/cidpack/cidpack/internal/huffman"
	"github.com/cidpack/cidpack/internal/lzwindow"
)

const (
	litRootBits  = 9
	distRootBits = 6
	clRootBits   = huffman.MaxCodeLengthBits
)

// Reader decodes a zlib-wrapped deflate stream. It implements io.Reader,
// decoding the entire stream on the first Read call (the state machine
// in spec §4.3 is easiest to reason about as a single pass; there is no
// caller-visible difference from true incremental decoding since the
// codec has no notion of partial results beyond "decoded so far").
type Reader struct {
	src     io.Reader
	out     []byte
	pos     int
	err     error
	decoded bool
}

// NewReader creates a Reader over src.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src}
}

func (d *Reader) Read(p []byte) (int, error) {
	if !d.decoded {
		br := bitio.NewReader(d.src)
		out, _, err := decodeStream(br)
		d.out = out
		d.err = err
		d.decoded = true
	}
	if d.pos >= len(d.out) {
		if d.err != nil {
			return 0, d.err
		}
		return 0, io.EOF
	}
	n := copy(p, d.out[d.pos:])
	d.pos += n
	return n, nil
}

// DecodeAll reads and decompresses an entire zlib stream from r,
// verifying the Adler-32 trailer. It is the entry point png and cidpack
// use, since both already need the whole decompressed payload before
// they can proceed (pixel reconstruction, MD5 verification).
func DecodeAll(r io.Reader) ([]byte, error) {
	br := bitio.NewReader(r)
	out, _, err := decodeStream(br)
	return out, err
}

// decodeStream runs the Head/Type/Stored/Table/LenLens/CodeLens/Len/
// LenExt/Dist/DistExt/Match/Lit/Check state machine from spec §4.3 to
// completion.
func decodeStream(br *bitio.Reader) ([]byte, uint32, error) {
	if err := br.Reserve(16); err != nil {
		return nil, 0, wrapError(ResourceError, 30, "reading zlib header", err)
	}
	cmf := byte(br.PeekBits(8))
	br.DropBits(8)
	flg := byte(br.PeekBits(8))
	br.DropBits(8)
	fdict, err := parseZlibHeader(cmf, flg)
	if err != nil {
		return nil, 0, err
	}
	if fdict {
		if err := br.Reserve(32); err != nil {
			return nil, 0, wrapError(ResourceError, 31, "reading preset dictionary id", err)
		}
		br.DropBits(32)
		return nil, 0, newError(UnsupportedError, 32, "preset dictionaries are not supported")
	}

	win := lzwindow.New()
	defer win.Release()
	adler := newAdlerWriter()
	var out []byte

	for {
		if err := br.Reserve(3); err != nil {
			return out, 0, wrapError(ResourceError, 33, "reading block header", err)
		}
		bfinal := br.PeekBits(1)
		br.DropBits(1)
		btype := br.PeekBits(2)
		br.DropBits(2)

		switch btype {
		case 0:
			if err := decodeStoredBlock(br, win, &out, adler); err != nil {
				return out, 0, err
			}
		case 1, 2:
			var litLengths, distLengths []int
			if btype == 1 {
				litLengths, distLengths = fixedLitLengths, fixedDistLens
			} else {
				litLengths, distLengths, err = readDynamicTables(br)
				if err != nil {
					return out, 0, err
				}
			}
			litTable, err := huffman.BuildDecodeTable(litRootBits, litLengths)
			if err != nil {
				return out, 0, wrapError(FormatError, 37, "invalid literal/length table", err)
			}
			distTable, err := huffman.BuildDecodeTable(distRootBits, distLengths)
			if err != nil {
				return out, 0, wrapError(FormatError, 38, "invalid distance table", err)
			}
			if err := decodeHuffmanBlock(br, win, &out, adler, litTable, distTable); err != nil {
				return out, 0, err
			}
		default:
			return out, 0, wrapError(FormatError, 39, "reserved block type", ErrUnknownBlock)
		}

		if bfinal == 1 {
			break
		}
	}

	br.AlignToByte()
	var trailer [4]byte
	if err := br.ReadAlignedBytes(trailer[:]); err != nil {
		return out, 0, wrapError(ResourceError, 40, "reading adler-32 trailer", err)
	}
	stored := getUint32BE(trailer[:])
	if stored != adler.Sum32() {
		return out, stored, wrapError(IntegrityError, 42, "adler-32 mismatch", ErrBadChecksum)
	}
	return out, stored, nil
}

func decodeStoredBlock(br *bitio.Reader, win *lzwindow.Window, out *[]byte, adler *adlerWriter) error {
	br.AlignToByte()
	if err := br.Reserve(32); err != nil {
		return wrapError(ResourceError, 34, "reading stored block length", err)
	}
	length := br.PeekBits(16)
	br.DropBits(16)
	nlen := br.PeekBits(16)
	br.DropBits(16)
	if uint16(length) != ^uint16(nlen) {
		return wrapError(FormatError, 35, "stored block length check failed", ErrBadHeader)
	}
	data := make([]byte, length)
	if len(data) > 0 {
		if err := br.ReadAlignedBytes(data); err != nil {
			return wrapError(ResourceError, 36, "reading stored block data", err)
		}
	}
	for _, b := range data {
		win.PutByte(b)
	}
	*out = append(*out, data...)
	adler.Write(data)
	return nil
}

func decodeHuffmanBlock(br *bitio.Reader, win *lzwindow.Window, out *[]byte, adler *adlerWriter, litTable, distTable []huffman.Entry) error {
	for {
		if err := br.Reserve(huffman.MaxBitLength); err != nil {
			return wrapError(ResourceError, 43, "reading literal/length code", err)
		}
		sym, bits := huffman.Decode(litTable, litRootBits, br.PeekBits(huffman.MaxBitLength))
		br.DropBits(bits)

		if sym < 256 {
			b := byte(sym)
			win.PutByte(b)
			*out = append(*out, b)
			adler.Write([]byte{b})
			continue
		}
		if sym == 256 {
			return nil
		}

		ls := int(sym) - 257
		if ls < 0 || ls >= len(lengthBase) {
			return wrapError(FormatError, 44, "invalid length symbol", nil)
		}
		length := lengthBase[ls]
		if extra := lengthExtraBits[ls]; extra > 0 {
			if err := br.Reserve(extra); err != nil {
				return wrapError(ResourceError, 45, "reading length extra bits", err)
			}
			length += int(br.PeekBits(extra))
			br.DropBits(extra)
		}

		if err := br.Reserve(huffman.MaxBitLength); err != nil {
			return wrapError(ResourceError, 46, "reading distance code", err)
		}
		dsym, dbits := huffman.Decode(distTable, distRootBits, br.PeekBits(huffman.MaxBitLength))
		br.DropBits(dbits)
		if int(dsym) >= len(distBase) {
			return wrapError(FormatError, 47, "invalid distance symbol", nil)
		}
		distance := distBase[dsym]
		if extra := distExtraBits[dsym]; extra > 0 {
			if err := br.Reserve(extra); err != nil {
				return wrapError(ResourceError, 48, "reading distance extra bits", err)
			}
			distance += int(br.PeekBits(extra))
			br.DropBits(extra)
		}

		if distance > win.Occupancy() {
			return wrapError(FormatError, 49, "distance exceeds window occupancy", ErrDistanceTooFar)
		}
		copied := win.CopyMatch(distance, length)
		*out = append(*out, copied...)
		adler.Write(copied)
	}
}

// readDynamicTables implements the Table/LenLens/CodeLens states: it
// reads HLIT/HDIST/HCLEN, the code-length alphabet's own lengths, then
// uses that alphabet (with its repeat codes 16/17/18) to decode the
// literal/length and distance alphabets' lengths.
func readDynamicTables(br *bitio.Reader) (litLengths, distLengths []int, err error) {
	if err := br.Reserve(14); err != nil {
		return nil, nil, wrapError(ResourceError, 50, "reading dynamic block header", err)
	}
	hlit := int(br.PeekBits(5)) + 257
	br.DropBits(5)
	hdist := int(br.PeekBits(5)) + 1
	br.DropBits(5)
	hclen := int(br.PeekBits(4)) + 4
	br.DropBits(4)

	var clLengths [19]int
	for k := 0; k < hclen; k++ {
		if err := br.Reserve(3); err != nil {
			return nil, nil, wrapError(ResourceError, 51, "reading code-length table", err)
		}
		clLengths[codeLengthOrder[k]] = int(br.PeekBits(3))
		br.DropBits(3)
	}
	clTable, err := huffman.BuildDecodeTable(clRootBits, clLengths[:])
	if err != nil {
		return nil, nil, wrapError(FormatError, 52, "invalid code-length table", err)
	}

	total := hlit + hdist
	combined := make([]int, 0, total)
	prev := 0
	for len(combined) < total {
		if err := br.Reserve(clRootBits); err != nil {
			return nil, nil, wrapError(ResourceError, 53, "reading code lengths", err)
		}
		sym, bits := huffman.Decode(clTable, clRootBits, br.PeekBits(clRootBits))
		br.DropBits(bits)

		switch {
		case sym <= 15:
			combined = append(combined, int(sym))
			prev = int(sym)
		case sym == 16:
			if len(combined) == 0 {
				return nil, nil, wrapError(FormatError, 55, "repeat code with no previous length", nil)
			}
			if err := br.Reserve(2); err != nil {
				return nil, nil, wrapError(ResourceError, 54, "reading repeat-length extra bits", err)
			}
			n := int(br.PeekBits(2)) + 3
			br.DropBits(2)
			for i := 0; i < n && len(combined) < total; i++ {
				combined = append(combined, prev)
			}
		case sym == 17:
			if err := br.Reserve(3); err != nil {
				return nil, nil, wrapError(ResourceError, 56, "reading zero-repeat extra bits", err)
			}
			n := int(br.PeekBits(3)) + 3
			br.DropBits(3)
			for i := 0; i < n && len(combined) < total; i++ {
				combined = append(combined, 0)
			}
			prev = 0
		case sym == 18:
			if err := br.Reserve(7); err != nil {
				return nil, nil, wrapError(ResourceError, 57, "reading long zero-repeat extra bits", err)
			}
			n := int(br.PeekBits(7)) + 11
			br.DropBits(7)
			for i := 0; i < n && len(combined) < total; i++ {
				combined = append(combined, 0)
			}
			prev = 0
		default:
			return nil, nil, wrapError(FormatError, 58, "invalid code-length symbol", nil)
		}
	}
	if len(combined) != total {
		return nil, nil, wrapError(FormatError, 59, "code length count mismatch", nil)
	}
	if hdist > 30 {
		return nil, nil, wrapError(FormatError, 60, "distance code count exceeds the 30-symbol alphabet", nil)
	}

	litLengths = make([]int, 288)
	copy(litLengths, combined[:hlit])
	distLengths = make([]int, 30)
	copy(distLengths, combined[hlit:hlit+hdist])
	return litLengths, distLengths, nil
}
