// Package lzwindow implements the deflate LZ77 sliding window and its
// hash-chain string matcher (spec §4.5), generalized from the
// pixel-pair hash chain deepteams-webp's internal/lossless.HashChain
// uses for VP8L backward references to the byte-oriented 3-byte rolling
// hash RFC 1951 deflate implementations use.
package lzwindow

import "github.com/cidpack/cidpack/internal/pool"

const (
	// WindowBits is log2 of the maximum backward-reference distance.
	WindowBits = 15
	// WindowSize is the maximum lookback distance (32 KiB).
	WindowSize = 1 << WindowBits
	// bufSize is the physical buffer size: two window-sized halves so a
	// match can always look back a full WindowSize without wrapping.
	bufSize = 2 * WindowSize

	// MinMatch is the shortest length the matcher will report.
	MinMatch = 3
	// MaxMatch is the longest length deflate's length alphabet encodes.
	MaxMatch = 258

	// shortMatchDistanceLimit suppresses length-3 matches farther back
	// than this, per spec §4.5's short-match heuristic: the 2 extra
	// bytes of a length-3 copy rarely pay for a large distance.
	shortMatchDistanceLimit = 4096
)

// Window holds the most recent ≤32 KiB of bytes fed into the encoder (or
// produced by the decoder), in a 64 KiB buffer that is halved-and-slid
// instead of reallocated, per spec §3.1's SlidingWindow invariants.
type Window struct {
	buf []byte // length bufSize
	pos int    // next write offset, 0 <= pos <= bufSize
	// base is the absolute stream position corresponding to buf[0].
	// Distances and occupancy are always computed from this, so callers
	// never need to know whether a Slide happened.
	base int64
	// onSlide, if set, is called after every Slide so a coupled structure
	// (a HashChain) can rebase itself in lockstep.
	onSlide func()
}

// New creates an empty Window, with buf drawn from the shared buffer
// pool rather than freshly allocated.
func New() *Window {
	return &Window{buf: pool.Get(bufSize)}
}

// SetSlideHook registers fn to be called after every Slide, so a
// HashChain sharing this Window's positions can rebase its own tables
// in the same instant rather than relying on its owner to remember to
// call it.
func (w *Window) SetSlideHook(fn func()) {
	w.onSlide = fn
}

// Release returns buf to the shared pool. The Window must not be used
// afterward.
func (w *Window) Release() {
	pool.Put(w.buf)
	w.buf = nil
}

// Pos returns the current absolute stream position (monotonic across
// slides).
func (w *Window) Pos() int64 { return w.base + int64(w.pos) }

// Occupancy returns how many bytes of valid history are available for
// a backward reference right now (capped at WindowSize).
func (w *Window) Occupancy() int {
	if w.pos > WindowSize {
		return WindowSize
	}
	return w.pos
}

// PutByte appends one byte to the window, sliding first if the buffer
// is full.
func (w *Window) PutByte(b byte) {
	if w.pos == bufSize {
		w.Slide()
	}
	w.buf[w.pos] = b
	w.pos++
}

// Slide copies the upper half of the buffer down to the lower half and
// rebases pos, per spec: "the upper half is copied to the lower half
// and the hash tables are slid by 32 KiB". If a slide hook was
// registered via SetSlideHook, it runs after the rebase so any coupled
// HashChain stays in lockstep automatically, regardless of which
// method (PutByte, CopyMatch) triggered the slide.
func (w *Window) Slide() {
	copy(w.buf[:WindowSize], w.buf[WindowSize:])
	w.pos -= WindowSize
	w.base += WindowSize
	if w.onSlide != nil {
		w.onSlide()
	}
}

// At returns the byte at local offset i (0 <= i < pos).
func (w *Window) At(i int) byte { return w.buf[i] }

// LocalIndex converts an absolute stream position (as returned by Pos)
// into the current local buffer offset. The result is only valid until
// the next Slide; callers that hold on to an absolute position across
// calls that might slide (PutByte, CopyMatch) must re-derive the local
// index each time before indexing the buffer.
func (w *Window) LocalIndex(abs int64) int { return int(abs - w.base) }

// Slice returns the bytes in local range [start,end) as a slice into
// the live buffer (valid until the next Slide).
func (w *Window) Slice(start, end int) []byte { return w.buf[start:end] }

// Tail returns the most recent n bytes as a slice into the live buffer
// (valid until the next Slide).
func (w *Window) Tail(n int) []byte {
	if n > w.pos {
		n = w.pos
	}
	return w.buf[w.pos-n : w.pos]
}

// CopyMatch copies length bytes from distance bytes behind the current
// write position back into the window (and returns them), handling the
// overlapping case — where distance < length — byte by byte so that a
// just-written byte can be immediately re-read, producing the RLE
// repetition deflate relies on for runs (spec §4.3 edge case: length
// 258 at distance 1 repeats the current byte 258 times).
func (w *Window) CopyMatch(distance, length int) []byte {
	out := make([]byte, length)
	src := w.pos - distance
	for i := 0; i < length; i++ {
		if w.pos == bufSize {
			w.Slide()
			src = w.pos - distance
		}
		b := w.buf[src]
		w.buf[w.pos] = b
		out[i] = b
		w.pos++
		src++
	}
	return out
}
