package png

import "github.com/cidpack/cidpack/internal/pool"

// adam7Pass describes one of the seven interlacing passes: pixel (x,y)
// of the full image belongs to this pass when x%xSpacing==xOrig%xSpacing
// is satisfied by walking xOrig, xOrig+xSpacing, xOrig+2*xSpacing, ...
type adam7Pass struct {
	xOrig, yOrig, xSpacing, ySpacing int
}

var adam7Passes = [7]adam7Pass{
	{0, 0, 8, 8},
	{4, 0, 8, 8},
	{0, 4, 4, 8},
	{2, 0, 4, 4},
	{0, 2, 2, 4},
	{1, 0, 2, 2},
	{0, 1, 1, 2},
}

// passDims returns the pixel width/height of this pass's reduced image
// for a full image of the given dimensions. Either may be 0, meaning
// the pass contributes no scanlines at all.
func passDims(p adam7Pass, width, height int) (w, h int) {
	if width > p.xOrig {
		w = (width - p.xOrig + p.xSpacing - 1) / p.xSpacing
	}
	if height > p.yOrig {
		h = (height - p.yOrig + p.ySpacing - 1) / p.ySpacing
	}
	return w, h
}

// getPackedSample reads an nbits-wide, MSB-first packed sample starting
// at bitOffset within row.
func getPackedSample(row []byte, bitOffset, nbits int) uint32 {
	var v uint32
	for i := 0; i < nbits; i++ {
		byteIdx := (bitOffset + i) / 8
		bitIdx := 7 - (bitOffset+i)%8
		bit := (row[byteIdx] >> uint(bitIdx)) & 1
		v = (v << 1) | uint32(bit)
	}
	return v
}

// setPackedSample writes an nbits-wide, MSB-first packed sample of
// value starting at bitOffset within row.
func setPackedSample(row []byte, bitOffset, nbits int, value uint32) {
	for i := 0; i < nbits; i++ {
		bit := (value >> uint(nbits-1-i)) & 1
		byteIdx := (bitOffset + i) / 8
		bitIdx := 7 - (bitOffset+i)%8
		if bit == 1 {
			row[byteIdx] |= 1 << uint(bitIdx)
		} else {
			row[byteIdx] &^= 1 << uint(bitIdx)
		}
	}
}

// deinterlaceAdam7 decodes the seven-pass interlaced scanline stream in
// data (the concatenated output of the image's IDAT chunks, already
// inflated) into a progressive PixelGrid, per spec §4.6: each pass
// defilters against the previous scanline *of the same pass*, zero for
// that pass's first row.
func deinterlaceAdam7(data []byte, hdr ImageHeader) (*PixelGrid, error) {
	dst := NewPixelGrid(hdr.Width, hdr.Height, hdr.Color, hdr.BitDepth)
	bpp := bytesPerPixel(hdr.Color, hdr.BitDepth)
	sampleBits := bitsPerPixel(hdr.Color, hdr.BitDepth)
	pos := 0

	for _, pass := range adam7Passes {
		pw, ph := passDims(pass, hdr.Width, hdr.Height)
		if pw == 0 || ph == 0 {
			continue
		}
		stride := rowStride(hdr.Color, hdr.BitDepth, pw)
		var prev []byte
		for py := 0; py < ph; py++ {
			if pos >= len(data) {
				return nil, newError(ResourceError, 61, "truncated interlaced scanline data")
			}
			ftype := data[pos]
			pos++
			if pos+stride > len(data) {
				return nil, newError(ResourceError, 62, "truncated interlaced scanline data")
			}
			row := pool.Get(stride)
			copy(row, data[pos:pos+stride])
			pos += stride
			if err := reconstructRow(ftype, row, prev, bpp); err != nil {
				return nil, err
			}
			if prev != nil {
				pool.Put(prev)
			}

			dstY := pass.yOrig + py*pass.ySpacing
			for px := 0; px < pw; px++ {
				val := getPackedSample(row, px*sampleBits, sampleBits)
				dstX := pass.xOrig + px*pass.xSpacing
				setPackedSample(dst.Row(dstY), dstX*sampleBits, sampleBits, val)
			}
			prev = row
		}
		if prev != nil {
			pool.Put(prev)
		}
	}
	return dst, nil
}
