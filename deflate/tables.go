package deflate

// codeLengthOrder is the order in which code-length-alphabet lengths are
// transmitted in a dynamic block header (spec §4.3, RFC 1951 §3.2.7).
var codeLengthOrder = [19]int{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

// fixedLitLenLengths is the preset literal/length alphabet for fixed
// (BTYPE=01) blocks: 8 bits for 0..143, 9 bits for 144..255, 7 bits for
// 256..279, 8 bits for 280..287.
func fixedLitLenLengths() []int {
	lengths := make([]int, 288)
	for i := 0; i <= 143; i++ {
		lengths[i] = 8
	}
	for i := 144; i <= 255; i++ {
		lengths[i] = 9
	}
	for i := 256; i <= 279; i++ {
		lengths[i] = 7
	}
	for i := 280; i <= 287; i++ {
		lengths[i] = 8
	}
	return lengths
}

// fixedDistLengths is the preset distance alphabet for fixed blocks: all
// 30 usable codes have length 5.
func fixedDistLengths() []int {
	lengths := make([]int, 30)
	for i := range lengths {
		lengths[i] = 5
	}
	return lengths
}

// lengthBase and lengthExtraBits give, for length symbols 257..285, the
// base length and number of extra bits to read (RFC 1951 §3.2.5). Index
// 0 corresponds to symbol 257.
var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13,
	15, 17, 19, 23, 27, 31, 35, 43, 51, 59,
	67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var lengthExtraBits = [29]int{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1,
	1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// distBase and distExtraBits give, for distance symbols 0..29, the base
// distance and number of extra bits to read.
var distBase = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25,
	33, 49, 65, 97, 129, 193, 257, 385, 513, 769,
	1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}

var distExtraBits = [30]int{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// lengthSymbolFor returns the length symbol (257+i) and index into
// lengthBase/lengthExtraBits for a match length in [3,258].
func lengthSymbolFor(length int) int {
	lo, hi := 0, len(lengthBase)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lengthBase[mid] <= length {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// distSymbolFor returns the index into distBase/distExtraBits for a
// match distance in [1,32768].
func distSymbolFor(distance int) int {
	lo, hi := 0, len(distBase)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if distBase[mid] <= distance {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// compressionLevel is one entry of the 10-level tuning table (spec §4.4,
// §12), recovered byte-for-byte from CIDZLib_.hpp's aStratTable.
type compressionLevel struct {
	good      int // once the previous match is at least this long, quarter the chain-probe budget
	lazy      int // max length below which lazy matching still looks one byte ahead
	nice      int // stop the hash-chain walk early once a match this long is found
	chain     int // max hash-chain probes per position
	fastGreedy bool // levels <=3 use a greedy (non-lazy) matcher
}

// compressionLevels is indexed 0..9. Level 0 is stored-only and never
// consults this table.
var compressionLevels = [10]compressionLevel{
	{}, // level 0: stored-only, handled separately
	{good: 4, lazy: 4, nice: 8, chain: 4, fastGreedy: true},
	{good: 4, lazy: 5, nice: 16, chain: 8, fastGreedy: true},
	{good: 4, lazy: 6, nice: 32, chain: 32, fastGreedy: true},
	{good: 4, lazy: 4, nice: 16, chain: 16, fastGreedy: false},
	{good: 8, lazy: 16, nice: 32, chain: 32, fastGreedy: false},
	{good: 8, lazy: 16, nice: 128, chain: 128, fastGreedy: false},
	{good: 8, lazy: 32, nice: 128, chain: 256, fastGreedy: false},
	{good: 32, lazy: 128, nice: 258, chain: 1024, fastGreedy: false},
	{good: 32, lazy: 258, nice: 258, chain: 4096, fastGreedy: false},
}
