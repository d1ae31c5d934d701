package lzwindow

import (
	"bytes"
	"testing"
)

func TestWindow_PutByteAndTail(t *testing.T) {
	w := New()
	data := []byte("the quick brown fox")
	for _, b := range data {
		w.PutByte(b)
	}
	if got := w.Tail(len(data)); !bytes.Equal(got, data) {
		t.Fatalf("Tail = %q, want %q", got, data)
	}
	if w.Occupancy() != len(data) {
		t.Fatalf("Occupancy = %d, want %d", w.Occupancy(), len(data))
	}
}

func TestWindow_SlideAcrossBoundary(t *testing.T) {
	w := New()
	for i := 0; i < bufSize+100; i++ {
		w.PutByte(byte(i))
	}
	if w.Occupancy() != WindowSize {
		t.Fatalf("Occupancy after overflow = %d, want %d", w.Occupancy(), WindowSize)
	}
	if w.Pos() != int64(bufSize+100) {
		t.Fatalf("Pos = %d, want %d", w.Pos(), bufSize+100)
	}
	// The most recent 100 bytes are i = bufSize..bufSize+99 mod 256.
	tail := w.Tail(100)
	for i, b := range tail {
		want := byte(bufSize + i)
		if b != want {
			t.Fatalf("tail[%d] = %d, want %d", i, b, want)
		}
	}
}

func TestWindow_CopyMatch_OverlappingRun(t *testing.T) {
	w := New()
	w.PutByte('a')
	out := w.CopyMatch(1, 258)
	if len(out) != 258 {
		t.Fatalf("len = %d, want 258", len(out))
	}
	for i, b := range out {
		if b != 'a' {
			t.Fatalf("out[%d] = %q, want 'a'", i, b)
		}
	}
	if w.Occupancy() != 259 {
		t.Fatalf("Occupancy = %d, want 259", w.Occupancy())
	}
}

func TestWindow_CopyMatch_NonOverlapping(t *testing.T) {
	w := New()
	for _, b := range []byte("abcdef") {
		w.PutByte(b)
	}
	out := w.CopyMatch(6, 3) // copies "abc"
	if string(out) != "abc" {
		t.Fatalf("out = %q, want %q", out, "abc")
	}
}

func TestWindow_CopyMatch_SlideMidCopy(t *testing.T) {
	w := New()
	for i := 0; i < bufSize-10; i++ {
		w.PutByte(byte(i))
	}
	// Copy a long match that straddles the slide boundary (bufSize).
	length := WindowSize - 20
	distance := 50
	before := w.Pos()
	out := w.CopyMatch(distance, length)
	if int64(len(out)) != int64(length) {
		t.Fatalf("len(out) = %d, want %d", len(out), length)
	}
	if w.Pos() != before+int64(length) {
		t.Fatalf("Pos = %d, want %d", w.Pos(), before+int64(length))
	}
}

func TestHashChain_FindsExactMatch(t *testing.T) {
	w := New()
	hc := NewHashChain()

	// feed chains the position three bytes back, whose 3-byte hash is
	// complete, before writing b. The newest positions stay unchained, as
	// in the encoder, which chains a position only after searching from it.
	feed := func(b byte) uint32 {
		if pos := w.pos - 3; pos >= 0 {
			hc.Insert(pos, HashAt(w, pos))
		}
		w.PutByte(b)
		return 0
	}

	for _, b := range []byte("abcabcabc") {
		feed(b)
	}
	// At this point "abc" repeats with period 3; a match search rooted at
	// the hash of the last "abc" should find a prior occurrence.
	pos := 6 // offset of the third "abc"
	h := HashAt(w, pos)
	m, ok := hc.FindMatch(w, pos, h, 32, 258, 0)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Distance != 3 {
		t.Fatalf("Distance = %d, want 3", m.Distance)
	}
	if m.Length < MinMatch {
		t.Fatalf("Length = %d, want >= %d", m.Length, MinMatch)
	}
}

func TestHashChain_NoMatchOnFirstBytes(t *testing.T) {
	w := New()
	hc := NewHashChain()
	for _, b := range []byte("xyz") {
		w.PutByte(b)
	}
	h := HashAt(w, 0)
	if _, ok := hc.FindMatch(w, 0, h, 32, 258, 0); ok {
		t.Fatal("expected no match chained yet")
	}
}

func TestHashChain_SlideKeepsRecentDistances(t *testing.T) {
	w := New()
	hc := NewHashChain()

	insertAt := func(pos int) {
		if pos >= 0 && pos+3 <= w.pos {
			hc.Insert(pos, HashAt(w, pos))
		}
	}

	// Fill the whole buffer, chaining each position once its 3 bytes
	// are written.
	pattern := []byte("foobar")
	for i := 0; i < bufSize; i++ {
		pos := w.pos
		if w.pos == bufSize {
			w.Slide()
			hc.Slide()
			pos = w.pos
		}
		w.buf[w.pos] = pattern[i%len(pattern)]
		w.pos++
		insertAt(pos - 2)
	}
	// Append the pattern once more; its first byte slides the window. These
	// positions stay unchained, so a match for them can only come from
	// positions chained before the slide.
	for _, b := range pattern {
		if w.pos == bufSize {
			w.Slide()
			hc.Slide()
		}
		w.buf[w.pos] = b
		w.pos++
	}
	lastStart := w.pos - len(pattern)
	h := HashAt(w, lastStart)
	m, ok := hc.FindMatch(w, lastStart, h, 64, 258, 0)
	if !ok {
		t.Fatal("expected a match after sliding across the window boundary")
	}
	if m.Distance <= 0 || m.Distance > WindowSize {
		t.Fatalf("Distance = %d, out of range", m.Distance)
	}
}
