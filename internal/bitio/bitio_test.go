package bitio

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriterReader_RoundTrip_RandomWidths(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	type entry struct {
		value uint32
		width int
	}
	const numEntries = 2000
	entries := make([]entry, numEntries)
	for i := range entries {
		w := rng.Intn(25) + 1
		entries[i] = entry{value: rng.Uint32() & ((1 << uint(w)) - 1), width: w}
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, e := range entries {
		if err := w.PutBits(e.value, e.width); err != nil {
			t.Fatalf("PutBits: %v", err)
		}
	}
	if err := w.FlushToByte(); err != nil {
		t.Fatalf("FlushToByte: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(&buf)
	for i, e := range entries {
		got, err := r.GetBits(e.width)
		if err != nil {
			t.Fatalf("entry %d: GetBits: %v", i, err)
		}
		if got != e.value {
			t.Fatalf("entry %d: got %d, want %d (width %d)", i, got, e.value, e.width)
		}
	}
}

func TestWriter_FlushToByte_ZeroPads(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutBits(0x5, 3); err != nil {
		t.Fatal(err)
	}
	if err := w.FlushToByte(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x05}
	if diff := cmp.Diff(want, buf.Bytes()); diff != "" {
		t.Errorf("FlushToByte output mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_PeekDoesNotConsume(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.PutBits(0b10110, 5)
	w.FlushToByte()
	w.Flush()

	r := NewReader(&buf)
	if err := r.Reserve(5); err != nil {
		t.Fatal(err)
	}
	peeked := r.PeekBits(5)
	if peeked != 0b10110 {
		t.Fatalf("PeekBits = %b, want %b", peeked, 0b10110)
	}
	r.DropBits(5)
	// Reserve pulls whole bytes, so the byte's 3 padding bits remain.
	if r.Buffered() != 3 {
		t.Fatalf("Buffered() = %d, want 3", r.Buffered())
	}
}

func TestReader_ReserveShortStream(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	if _, err := r.GetBits(8); err == nil {
		t.Fatal("expected error reading past end of stream")
	}
}

func TestReader_AlignToByteAndReadAlignedBytes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.PutBits(0x3, 3)
	w.FlushToByte()
	w.WriteAlignedBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	w.Flush()

	r := NewReader(&buf)
	if _, err := r.GetBits(3); err != nil {
		t.Fatal(err)
	}
	r.AlignToByte()
	got := make([]byte, 4)
	if err := r.ReadAlignedBytes(got); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("aligned bytes mismatch (-want +got):\n%s", diff)
	}
}
