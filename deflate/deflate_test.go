package deflate

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cidpack/cidpack/internal/bitio"
	"github.com/cidpack/cidpack/internal/huffman"
)

func roundTrip(t *testing.T, level int, input []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, EncoderOptions{Level: level})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write(input); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	out, err := io.ReadAll(NewReader(&buf))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestRoundTrip_Empty(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, DefaultOptions())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// 2-byte zlib header + a final empty stored/fixed block + 4-byte trailer.
	if buf.Len() == 0 {
		t.Fatal("expected non-empty compressed output for empty input")
	}
	out, err := io.ReadAll(NewReader(bytes.NewReader(buf.Bytes())))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("decoded %d bytes, want 0", len(out))
	}
}

func TestRoundTrip_SingleByte(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, DefaultOptions())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write([]byte{0x41}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if buf.Len() > 11 {
		t.Fatalf("compressed size = %d, want <= 11", buf.Len())
	}
	out, err := io.ReadAll(NewReader(bytes.NewReader(buf.Bytes())))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]byte{0x41}, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_RunLengthMatch(t *testing.T) {
	input := bytes.Repeat([]byte{0x00}, 258)
	out := roundTrip(t, 6, input)
	if diff := cmp.Diff(input, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_AllLevels(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	input := make([]byte, 5000)
	for i := range input {
		// Skewed byte distribution with runs, so the matcher has real
		// work to do at every level.
		if i > 0 && rng.Intn(3) == 0 {
			input[i] = input[i-1]
		} else {
			input[i] = byte(rng.Intn(6))
		}
	}
	for level := 0; level <= 9; level++ {
		out := roundTrip(t, level, input)
		if diff := cmp.Diff(input, out); diff != "" {
			t.Fatalf("level %d: round trip mismatch (-want +got):\n%s", level, diff)
		}
	}
}

func TestRoundTrip_SpansMultipleBlocks(t *testing.T) {
	input := make([]byte, maxBlockRawBytes*3+17)
	rng := rand.New(rand.NewSource(42))
	rng.Read(input)
	out := roundTrip(t, 9, input)
	if diff := cmp.Diff(input, out); diff != "" {
		t.Fatalf("round trip mismatch across blocks (-want +got) len(out)=%d", len(out))
	}
}

func TestRoundTrip_CrossesWindowSlide(t *testing.T) {
	// Exceeds the 32 KiB sliding window so at least one Slide occurs
	// mid-stream on both the encode and decode side.
	input := make([]byte, 100000)
	for i := range input {
		input[i] = byte(i % 251)
	}
	out := roundTrip(t, 6, input)
	if diff := cmp.Diff(input, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got)")
	}
}

func TestDecode_BadHeaderChecksum(t *testing.T) {
	bad := []byte{0x78, 0x00, 0x00, 0x00, 0x00, 0x00}
	_, err := io.ReadAll(NewReader(bytes.NewReader(bad)))
	if err == nil {
		t.Fatal("expected a format error for an invalid header check")
	}
}

func TestDecode_TruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, DefaultOptions())
	w.Write([]byte("hello, world, this compresses fine"))
	w.Close()
	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := io.ReadAll(NewReader(bytes.NewReader(truncated)))
	if err == nil {
		t.Fatal("expected an error decoding a truncated stream")
	}
}

func TestDecode_CorruptAdlerTrailer(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, DefaultOptions())
	w.Write([]byte("checksum me"))
	w.Close()
	corrupted := append([]byte(nil), buf.Bytes()...)
	corrupted[len(corrupted)-1] ^= 0xFF
	_, err := io.ReadAll(NewReader(bytes.NewReader(corrupted)))
	if err == nil {
		t.Fatal("expected an adler-32 mismatch error")
	}
}

func TestWriter_LevelOutOfRange(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, EncoderOptions{Level: 10}); err == nil {
		t.Fatal("expected an error for an out-of-range level")
	}
}

// TestReadDynamicTables_RejectsTooManyDistanceCodes constructs a dynamic
// block header whose HDIST field claims 32 distance codes, two more than
// the alphabet's 30 symbols, and checks that it is rejected outright
// rather than silently truncated into a 30-entry distLengths.
func TestReadDynamicTables_RejectsTooManyDistanceCodes(t *testing.T) {
	clLengths := make([]int, 19)
	clLengths[0] = 1
	clLengths[18] = 1
	clCodes := huffman.CanonicalCodes(clLengths)

	var buf bytes.Buffer
	bw := bitio.NewWriter(&buf)
	bw.PutBits(0, 5)  // HLIT = 0  -> hlit = 257
	bw.PutBits(31, 5) // HDIST = 31 -> hdist = 32, invalid
	bw.PutBits(0, 4)  // HCLEN = 0 -> hclen = 4

	for _, sym := range []int{16, 17, 18, 0} {
		bw.PutBits(uint32(clLengths[sym]), 3)
	}

	// 257+32 = 289 combined code lengths, all zero, via three repeat-zero
	// (symbol 18) runs of 138, 138, and 13.
	for _, n := range []int{138, 138, 13} {
		bw.PutBits(uint32(clCodes[18]), clLengths[18])
		bw.PutBits(uint32(n-11), 7)
	}
	if err := bw.FlushToByte(); err != nil {
		t.Fatalf("FlushToByte: %v", err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	br := bitio.NewReader(&buf)
	_, _, err := readDynamicTables(br)
	if err == nil {
		t.Fatal("expected an error for HDIST exceeding the distance alphabet")
	}
}

func TestRleEncodeLengths_RoundTripsThroughFrequencies(t *testing.T) {
	lens := []int{0, 0, 0, 3, 3, 3, 3, 3, 3, 3, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	symbols, extras, freq := rleEncodeLengths(lens)
	if len(symbols) != len(extras) {
		t.Fatalf("symbols/extras length mismatch: %d vs %d", len(symbols), len(extras))
	}
	var total uint64
	for _, f := range freq {
		total += f
	}
	if total != uint64(len(symbols)) {
		t.Fatalf("frequency total = %d, want %d", total, len(symbols))
	}
}
