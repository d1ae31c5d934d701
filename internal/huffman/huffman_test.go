package huffman

import (
	"math/rand"
	"testing"
)

func TestBuildLengths_KraftEquality(t *testing.T) {
	freq := []uint64{5, 0, 2, 1, 1, 0, 0, 3, 7, 1}
	lengths, err := BuildLengths(freq, MaxBitLength)
	if err != nil {
		t.Fatalf("BuildLengths: %v", err)
	}
	var sum float64
	live := 0
	for _, l := range lengths {
		if l > 0 {
			sum += 1.0 / float64(uint64(1)<<uint(l))
			live++
		}
	}
	if live < 2 {
		t.Fatalf("need at least 2 live symbols for a meaningful Kraft check, got %d", live)
	}
	if sum != 1.0 {
		t.Fatalf("Kraft sum = %v, want 1.0 (complete code)", sum)
	}
}

func TestBuildLengths_SingleSymbol(t *testing.T) {
	freq := []uint64{0, 0, 9, 0}
	lengths, err := BuildLengths(freq, MaxBitLength)
	if err != nil {
		t.Fatalf("BuildLengths: %v", err)
	}
	if lengths[2] != 1 {
		t.Fatalf("lone symbol length = %d, want 1", lengths[2])
	}
}

func TestBuildLengths_AllZero(t *testing.T) {
	freq := make([]uint64, 8)
	if _, err := BuildLengths(freq, MaxBitLength); err == nil {
		t.Fatal("expected ErrDegenerate for an all-zero histogram")
	}
}

func TestBuildLengths_RespectsMaxBits(t *testing.T) {
	// A skewed Fibonacci-like histogram is the classic way to force
	// length overflow past a small maxBits limit.
	freq := make([]uint64, 20)
	a, b := uint64(1), uint64(1)
	for i := range freq {
		freq[i] = a
		a, b = b, a+b
	}
	const limit = 6
	lengths, err := BuildLengths(freq, limit)
	if err != nil {
		t.Fatalf("BuildLengths: %v", err)
	}
	for s, l := range lengths {
		if l > limit {
			t.Fatalf("symbol %d has length %d, exceeds limit %d", s, l, limit)
		}
	}
	var sum float64
	for _, l := range lengths {
		if l > 0 {
			sum += 1.0 / float64(uint64(1)<<uint(l))
		}
	}
	if sum > 1.0+1e-9 {
		t.Fatalf("Kraft sum = %v, exceeds 1.0 after length limiting", sum)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const numSymbols = 70
	freq := make([]uint64, numSymbols)
	for i := range freq {
		if rng.Intn(4) != 0 {
			freq[i] = uint64(rng.Intn(500) + 1)
		}
	}
	lengths, err := BuildLengths(freq, MaxBitLength)
	if err != nil {
		t.Fatalf("BuildLengths: %v", err)
	}
	codes := CanonicalCodes(lengths)

	table, err := BuildDecodeTable(7, lengths)
	if err != nil {
		t.Fatalf("BuildDecodeTable: %v", err)
	}

	for s, l := range lengths {
		if l == 0 {
			continue
		}
		// Simulate the bitstream: codeword in the low l bits, LSB-first.
		prefetch := uint32(codes[s])
		// Pad with random high bits the decoder must ignore.
		prefetch |= rng.Uint32() << uint(l)
		gotSym, gotBits := Decode(table, 7, prefetch)
		if gotBits != l {
			t.Fatalf("symbol %d: decoded %d bits, want %d", s, gotBits, l)
		}
		if int(gotSym) != s {
			t.Fatalf("decoded symbol %d, want %d (length %d, code %#x)", gotSym, s, l, codes[s])
		}
	}
}

func TestCanonicalCodes_Empty(t *testing.T) {
	lengths := make([]int, 10)
	codes := CanonicalCodes(lengths)
	for i, c := range codes {
		if c != 0 {
			t.Fatalf("code[%d] = %d, want 0 for an all-zero-length alphabet", i, c)
		}
	}
}
