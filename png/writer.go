package png

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cidpack/cidpack/deflate"
	"github.com/cidpack/cidpack/internal/pool"
)

// EncodeOptions controls the ancillary chunks an Encode call emits.
// Encoding never produces an interlaced stream (spec Non-goal).
type EncodeOptions struct {
	// Level is the deflate compression level used for the IDAT stream.
	Level int
	// Gamma, if non-zero, is written as a gAMA chunk (stored as its
	// reciprocal scaled by 1e5). The clamp to 4.0 on decode means an
	// encoder is free to write any positive value; this package does
	// not clamp on write, matching the original source's behaviour.
	Gamma float64
	// Background, if non-nil, is written verbatim as a bKGD chunk.
	Background []byte
	// TransparentRaw, when HasTransparentColor is set, is the tRNS
	// chunk payload (a palette alpha table, or the 2/6-byte sample
	// PNG's tRNS format uses for Gray/RGB images).
	TransparentRaw      []byte
	TransparentPacked    uint32
	HasTransparentColor bool
}

// Encode writes grid to w as a non-interlaced PNG stream.
func Encode(w io.Writer, grid *PixelGrid, opts EncodeOptions) error {
	if grid == nil || grid.Width <= 0 || grid.Height <= 0 {
		return newError(CallerError, 89, "encoding a grid with a non-positive dimension")
	}

	g := grid
	if g.Color == ColorGray && g.BitDepth == 16 {
		g = truncateTo8BitGray(g)
	}

	if _, err := w.Write(pngSignature[:]); err != nil {
		return wrapError(ResourceError, 90, "writing signature", err)
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(g.Width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(g.Height))
	ihdr[8] = byte(g.BitDepth)
	ihdr[9] = byte(g.Color)
	ihdr[10] = 0 // compression
	ihdr[11] = 0 // filter method
	ihdr[12] = byte(InterlaceNone)
	if err := writeChunk(w, typeIHDR, ihdr); err != nil {
		return wrapError(ResourceError, 91, "writing IHDR", err)
	}

	if opts.Gamma > 0 {
		stored := uint32(100000.0/opts.Gamma + 0.5)
		var payload [4]byte
		binary.BigEndian.PutUint32(payload[:], stored)
		if err := writeChunk(w, typeGAMA, payload[:]); err != nil {
			return wrapError(ResourceError, 92, "writing gAMA", err)
		}
	}

	if g.Color == ColorPalette {
		plte := make([]byte, len(g.Palette.Colors)*3)
		for i, c := range g.Palette.Colors {
			plte[i*3] = c.R
			plte[i*3+1] = c.G
			plte[i*3+2] = c.B
		}
		if err := writeChunk(w, typePLTE, plte); err != nil {
			return wrapError(ResourceError, 93, "writing PLTE", err)
		}
	}

	if opts.Background != nil {
		if err := writeChunk(w, typeBKGD, opts.Background); err != nil {
			return wrapError(ResourceError, 94, "writing bKGD", err)
		}
	}

	if opts.HasTransparentColor {
		if len(opts.TransparentRaw) > 0 {
			if err := writeChunk(w, typeTRNS, opts.TransparentRaw); err != nil {
				return wrapError(ResourceError, 95, "writing tRNS", err)
			}
		}
		var packed [4]byte
		binary.BigEndian.PutUint32(packed[:], opts.TransparentPacked)
		if err := writeChunk(w, typeCDBC, packed[:]); err != nil {
			return wrapError(ResourceError, 96, "writing cdBC", err)
		}
	}

	idat, err := encodeScanlines(g, opts.Level)
	if err != nil {
		return err
	}
	if err := writeChunk(w, typeIDAT, idat); err != nil {
		return wrapError(ResourceError, 97, "writing IDAT", err)
	}

	if err := writeChunk(w, typeIEND, nil); err != nil {
		return wrapError(ResourceError, 98, "writing IEND", err)
	}
	return nil
}

// encodeScanlines applies the write-side filter rule to every row and
// deflates the result into a single zlib stream.
func encodeScanlines(g *PixelGrid, level int) ([]byte, error) {
	bpp := bytesPerPixel(g.Color, g.BitDepth)
	var raw bytes.Buffer
	raw.Grow(g.Height * (g.Stride + 1))
	var prev []byte
	for y := 0; y < g.Height; y++ {
		cur := g.Row(y)
		ftype := chooseFilter(y, g.Color, g.BitDepth)
		dst := pool.Get(g.Stride)
		filterRow(ftype, dst, cur, prev, bpp)
		raw.WriteByte(byte(ftype))
		raw.Write(dst)
		pool.Put(dst)
		prev = cur
	}

	var zbuf bytes.Buffer
	zw, err := deflate.NewWriter(&zbuf, deflate.EncoderOptions{Level: level})
	if err != nil {
		return nil, wrapError(CallerError, 99, "creating deflate writer", err)
	}
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, wrapError(ResourceError, 100, "deflating scanlines", err)
	}
	if err := zw.Close(); err != nil {
		return nil, wrapError(ResourceError, 101, "closing deflate stream", err)
	}
	return zbuf.Bytes(), nil
}

// truncateTo8BitGray narrows a 16-bit Gray grid to 8-bit by keeping the
// high-order byte of each sample. Encode applies it to 16-bit Gray grids
// only; 16-bit RGB, RGBA, and GrayAlpha grids are written at 16 bits.
func truncateTo8BitGray(g *PixelGrid) *PixelGrid {
	out := NewPixelGrid(g.Width, g.Height, ColorGray, 8)
	for y := 0; y < g.Height; y++ {
		src := g.Row(y)
		dst := out.Row(y)
		for x := 0; x < g.Width; x++ {
			dst[x] = src[x*2]
		}
	}
	return out
}
