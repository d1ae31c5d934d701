package bitio

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Writer accumulates bits LSB-first into a 64-bit register and flushes
// whole bytes out to an underlying io.Writer as they become available.
type Writer struct {
	w     *bufio.Writer
	bits  uint64
	count uint
	err   error
}

// NewWriter wraps w for bit-at-a-time production.
func NewWriter(w io.Writer) *Writer {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriterSize(w, 4096)
	}
	return &Writer{w: bw}
}

// PutBits queues the low n bits of value, LSB-first. n must be in [0,32].
func (w *Writer) PutBits(value uint32, n int) error {
	if n < 0 || n > maxReadBits {
		panic("bitio: PutBits out of range")
	}
	if w.err != nil {
		return w.err
	}
	if n == 0 {
		return nil
	}
	masked := uint64(value) & ((1 << uint(n)) - 1)
	w.bits |= masked << w.count
	w.count += uint(n)
	for w.count >= 8 {
		if err := w.w.WriteByte(byte(w.bits)); err != nil {
			w.err = errors.Wrap(err, "bitio: write failed")
			return w.err
		}
		w.bits >>= 8
		w.count -= 8
	}
	return nil
}

// FlushToByte zero-pads the accumulator to the next byte boundary and
// emits it, per spec §4.1.
func (w *Writer) FlushToByte() error {
	if w.count == 0 {
		return w.err
	}
	return w.PutBits(0, int(8-w.count%8)%8)
}

// WriteAlignedBytes writes p directly to the underlying writer. The
// writer must be byte-aligned (call FlushToByte first).
func (w *Writer) WriteAlignedBytes(p []byte) error {
	if w.count != 0 {
		panic("bitio: WriteAlignedBytes requires byte alignment")
	}
	if w.err != nil {
		return w.err
	}
	if _, err := w.w.Write(p); err != nil {
		w.err = errors.Wrap(err, "bitio: write failed")
		return w.err
	}
	return nil
}

// Flush flushes the underlying buffered writer. The caller must already
// be byte-aligned (FlushToByte) before calling Flush at stream end.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.err = errors.Wrap(err, "bitio: flush failed")
		return w.err
	}
	return nil
}
