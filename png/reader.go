package png

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cidpack/cidpack/deflate"
	"github.com/cidpack/cidpack/internal/pool"
)

var pngSignature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// maxGamma is the clamp CIDPNG_Image.cpp applies to a decoded gamma
// value, per spec §4.6/§9.
const maxGamma = 4.0

// Metadata carries the ancillary chunk values a decode observed.
type Metadata struct {
	// Gamma is the decoded gamma value (the reciprocal of the stored
	// value), clamped to maxGamma. Zero means no gAMA chunk was present.
	Gamma float64
	// Background is the raw bKGD payload; its layout depends on colour
	// type (a palette index, a gray sample, or an RGB triple).
	Background []byte
	// TransparentPacked is the packed transparency colour carried by
	// the private cdBC chunk, valid when HasTransparentColor is true.
	TransparentPacked  uint32
	HasTransparentColor bool
}

// DecodeOptions controls chunk verification strictness.
type DecodeOptions struct {
	// Strict, when true, aborts on the first chunk CRC mismatch. When
	// false, a CRC failure on a chunk after the first IDAT is
	// downgraded to a stop-and-return-what-we-have, per spec §4.6/§7.
	Strict bool
}

// Decode reads a full PNG stream and returns its pixel content plus
// whatever ancillary metadata it carried.
func Decode(r io.Reader, opts DecodeOptions) (*PixelGrid, *Metadata, error) {
	var sig [8]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return nil, nil, wrapError(ResourceError, 64, "reading signature", err)
	}
	if sig != pngSignature {
		return nil, nil, wrapError(FormatError, 65, "bad PNG signature", ErrBadSignature)
	}

	var (
		hdr        ImageHeader
		seenIHDR   bool
		seenPLTE   bool
		seenIDAT   bool
		idatClosed bool
		gotIEND    bool
		palette    Palette
		meta       Metadata
		idatBuf    bytes.Buffer
	)

	for {
		rec, crcValid, err := readChunk(r)
		if err != nil {
			if !seenIHDR {
				return nil, nil, wrapError(ResourceError, 66, "reading chunk stream", err)
			}
			break
		}
		if !crcValid {
			if opts.Strict || !seenIDAT {
				return nil, nil, wrapError(FormatError, 67, "chunk CRC mismatch", ErrChunkCRC)
			}
			// Lenient mode, and we already have decodable image data:
			// stop here and proceed with whatever was accumulated.
			break
		}

		if !seenIHDR {
			if rec.Type != typeIHDR {
				return nil, nil, wrapError(FormatError, 68, "first chunk is not IHDR", ErrNoIHDR)
			}
			hdr, err = parseIHDR(rec.Data)
			if err != nil {
				return nil, nil, err
			}
			seenIHDR = true
			continue
		}

		switch rec.Type {
		case typeIHDR:
			return nil, nil, wrapError(FormatError, 69, "duplicate IHDR", ErrChunkOrder)
		case typePLTE:
			if seenIDAT {
				return nil, nil, wrapError(FormatError, 70, "PLTE after IDAT", ErrChunkOrder)
			}
			if len(rec.Data)%3 != 0 {
				return nil, nil, wrapError(FormatError, 71, "malformed PLTE length", nil)
			}
			palette.Colors = make([]RGB, len(rec.Data)/3)
			for i := range palette.Colors {
				palette.Colors[i] = RGB{R: rec.Data[i*3], G: rec.Data[i*3+1], B: rec.Data[i*3+2]}
			}
			seenPLTE = true
		case typeTRNS:
			if seenIDAT {
				return nil, nil, wrapError(FormatError, 72, "tRNS after IDAT", ErrChunkOrder)
			}
			if hdr.Color == ColorPalette && !seenPLTE {
				return nil, nil, wrapError(FormatError, 73, "tRNS before PLTE", ErrChunkOrder)
			}
			palette.Alpha = append([]byte(nil), rec.Data...)
		case typeGAMA:
			if len(rec.Data) != 4 {
				return nil, nil, wrapError(FormatError, 74, "malformed gAMA length", nil)
			}
			stored := binary.BigEndian.Uint32(rec.Data)
			if stored > 0 {
				gamma := 100000.0 / float64(stored)
				if gamma > maxGamma {
					gamma = maxGamma
				}
				meta.Gamma = gamma
			}
		case typeBKGD:
			meta.Background = append([]byte(nil), rec.Data...)
		case typeCDBC:
			if len(rec.Data) != 4 {
				return nil, nil, wrapError(FormatError, 75, "malformed cdBC length", nil)
			}
			meta.TransparentPacked = binary.BigEndian.Uint32(rec.Data)
			meta.HasTransparentColor = true
		case typeIDAT:
			if idatClosed {
				return nil, nil, wrapError(FormatError, 76, "IDAT chunks are not contiguous", ErrChunkOrder)
			}
			idatBuf.Write(rec.Data)
			seenIDAT = true
		case typeIEND:
			gotIEND = true
		default:
			// Unknown ancillary chunk: ignored.
		}

		if seenIDAT && rec.Type != typeIDAT && rec.Type != typeIEND {
			idatClosed = true
		}
		if gotIEND {
			break
		}
	}

	if !seenIHDR {
		return nil, nil, wrapError(FormatError, 77, "missing IHDR", ErrNoIHDR)
	}
	if opts.Strict && !gotIEND {
		return nil, nil, wrapError(FormatError, 78, "missing IEND", ErrNoIEND)
	}
	if hdr.Color == ColorPalette && !seenPLTE {
		return nil, nil, wrapError(FormatError, 79, "palette image without PLTE", ErrChunkOrder)
	}

	raw, err := deflate.DecodeAll(bytes.NewReader(idatBuf.Bytes()))
	if err != nil {
		return nil, nil, wrapError(FormatError, 80, "inflating IDAT stream", err)
	}

	var grid *PixelGrid
	if hdr.Interlace == InterlaceAdam7 {
		grid, err = deinterlaceAdam7(raw, hdr)
	} else {
		grid, err = decodeProgressive(raw, hdr)
	}
	if err != nil {
		return nil, nil, err
	}
	grid.Palette = palette
	return grid, &meta, nil
}

func parseIHDR(data []byte) (ImageHeader, error) {
	if len(data) != 13 {
		return ImageHeader{}, wrapError(FormatError, 81, "malformed IHDR length", nil)
	}
	hdr := ImageHeader{
		Width:        int(binary.BigEndian.Uint32(data[0:4])),
		Height:       int(binary.BigEndian.Uint32(data[4:8])),
		BitDepth:     int(data[8]),
		Color:        ColorType(data[9]),
		Compression:  int(data[10]),
		FilterMethod: int(data[11]),
		Interlace:    InterlaceMethod(data[12]),
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return ImageHeader{}, wrapError(FormatError, 82, "zero image dimension", nil)
	}
	if hdr.Compression != 0 {
		return ImageHeader{}, newError(UnsupportedError, 83, "compression method other than deflate")
	}
	if hdr.FilterMethod != 0 {
		return ImageHeader{}, wrapError(FormatError, 84, "unknown filter method", nil)
	}
	if !hdr.Color.validDepth(hdr.BitDepth) {
		return ImageHeader{}, wrapError(FormatError, 85, "invalid colour type/bit depth combination", nil)
	}
	if hdr.Interlace != InterlaceNone && hdr.Interlace != InterlaceAdam7 {
		return ImageHeader{}, wrapError(FormatError, 86, "unknown interlace method", nil)
	}
	return hdr, nil
}

// decodeProgressive defilters a non-interlaced scanline stream directly
// into a PixelGrid, one row at a time against the previous raw row.
func decodeProgressive(data []byte, hdr ImageHeader) (*PixelGrid, error) {
	grid := NewPixelGrid(hdr.Width, hdr.Height, hdr.Color, hdr.BitDepth)
	bpp := bytesPerPixel(hdr.Color, hdr.BitDepth)
	pos := 0
	scratch := pool.Get(grid.Stride)
	defer pool.Put(scratch)
	var prev []byte
	for y := 0; y < hdr.Height; y++ {
		if pos >= len(data) {
			return nil, newError(ResourceError, 87, "truncated scanline data")
		}
		ftype := data[pos]
		pos++
		if pos+grid.Stride > len(data) {
			return nil, newError(ResourceError, 88, "truncated scanline data")
		}
		copy(scratch, data[pos:pos+grid.Stride])
		pos += grid.Stride
		if err := reconstructRow(ftype, scratch, prev, bpp); err != nil {
			return nil, err
		}
		row := grid.Row(y)
		copy(row, scratch)
		prev = row
	}
	return grid, nil
}
