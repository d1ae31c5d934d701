// Package huffman builds canonical Huffman code tables from symbol
// frequencies and compiles them into the multi-level lookup tables the
// deflate decoder walks bit-by-bit.
//
// The encoder side (BuildLengths/CanonicalCodes) follows the classic
// length-limited canonical construction: a min-heap over (frequency,
// symbol, depth) with ties broken toward shallower depth, parent
// pointers instead of a pointer tree, and an overflow-correction pass
// when depths exceed the maximum code length. The decoder side
// (BuildDecodeTable) is a from-scratch generalization of the two-level
// lookup table built by deepteams-webp's
// internal/lossless.BuildHuffmanTable (itself a port of libwebp's
// huffman_utils.c) to an arbitrary root width and canonical code set.
package huffman

import (
	"container/heap"

	"github.com/pkg/errors"
)

// MaxBitLength is the longest code length deflate's literal/length and
// distance alphabets allow.
const MaxBitLength = 15

// MaxCodeLengthBits is the longest code length the code-length alphabet
// (used to transmit a dynamic block's own Huffman tables) allows.
const MaxCodeLengthBits = 7

var (
	// ErrDegenerate is returned when fewer than one symbol has nonzero
	// frequency and no phantom symbols could be synthesized.
	ErrDegenerate = errors.New("huffman: cannot build a code with zero live symbols")
	// ErrInvalidTree is returned by BuildDecodeTable when the supplied
	// code lengths do not form a valid canonical Huffman code.
	ErrInvalidTree = errors.New("huffman: code lengths do not form a valid tree")
)

// heapItem is one live symbol waiting to be merged into the Huffman tree.
type heapItem struct {
	freq   uint64
	symbol int
	depth  int // tie-break: shallower node wins
	node   int // index into the parent-pointer arrays
}

type itemHeap []heapItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].depth < h[j].depth
}
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// BuildLengths constructs length-limited canonical Huffman code lengths
// for the given symbol frequencies, per spec §4.2 steps 1-5. freq[i] is
// the frequency of symbol i; symbols with freq[i]==0 do not appear in
// the code (their returned length is 0). maxBits bounds the longest
// code length (15 for the main alphabets, 7 for the code-length
// alphabet).
func BuildLengths(freq []uint64, maxBits int) ([]int, error) {
	n := len(freq)
	lengths := make([]int, n)

	// Step 1: collect live symbols into a min-heap.
	var live []heapItem
	for s, f := range freq {
		if f > 0 {
			live = append(live, heapItem{freq: f, symbol: s, depth: 0})
		}
	}

	// Step 2: synthesize phantom symbols so the code is never degenerate.
	// A single live symbol still needs a sibling to receive length 1
	// rather than length 0; deflate assigns it code length 1 in that case.
	if len(live) == 0 {
		return nil, ErrDegenerate
	}
	if len(live) == 1 {
		lengths[live[0].symbol] = 1
		return lengths, nil
	}

	// parent[i] is the parent node index of node i in the merge forest;
	// leaves occupy indices [0,numLive) in heap-pop order is not fixed,
	// so we track leaf->symbol separately and build parent pointers over
	// a flat array sized for up to 2*numLive-1 nodes.
	numLive := len(live)
	maxNodes := 2*numLive - 1
	parent := make([]int, maxNodes)
	depthOf := make([]int, maxNodes)
	symbolOf := make([]int, maxNodes)
	for i := range symbolOf {
		symbolOf[i] = -1
	}

	h := make(itemHeap, numLive)
	for i, it := range live {
		it.node = i
		symbolOf[i] = it.symbol
		h[i] = it
	}
	heap.Init(&h)

	nextNode := numLive
	// Step 3: repeatedly merge the two smallest nodes.
	for h.Len() > 1 {
		a := heap.Pop(&h).(heapItem)
		b := heap.Pop(&h).(heapItem)
		parentDepth := 1
		if a.depth > b.depth {
			parentDepth = a.depth + 1
		} else {
			parentDepth = b.depth + 1
		}
		parent[a.node] = nextNode
		parent[b.node] = nextNode
		merged := heapItem{
			freq:   a.freq + b.freq,
			symbol: -1,
			depth:  parentDepth,
			node:   nextNode,
		}
		depthOf[nextNode] = parentDepth
		nextNode++
		heap.Push(&h, merged)
	}
	root := heap.Pop(&h).(heapItem)
	parent[root.node] = -1

	// Step 4: walk parent pointers from each leaf up to the root,
	// counting edges to get its code length; clamp to maxBits.
	overflow := 0
	for i := 0; i < numLive; i++ {
		depth := 0
		for node := i; parent[node] != -1; node = parent[node] {
			depth++
		}
		if depth > maxBits {
			overflow += depth - maxBits
			depth = maxBits
		}
		lengths[symbolOf[i]] = depth
	}

	// Step 5: rebalance if any symbol overflowed maxBits. This mirrors
	// the classic deflate length-limiting correction: repeatedly find
	// the longest length with a non-overflowed (incomplete) slot,
	// borrow one unit of Kraft budget from it, and hand two units of
	// length+1 to the overflowed symbols until the overflow is absorbed.
	if overflow > 0 {
		rebalanceOverflow(lengths, maxBits)
	}

	return lengths, nil
}

// rebalanceOverflow corrects a length histogram so it satisfies Kraft's
// inequality as equality, after naive tree-depth clamping pushed the
// Kraft sum above 1. bitCounts[l] is reconstructed from `lengths`,
// highest-to-lowest, converting one code of length l into two codes of
// length l+1 at a time (spec §4.2 step 5); each such step, together with
// removing one code of length maxBits, lowers the sum by 2^-maxBits.
func rebalanceOverflow(lengths []int, maxBits int) {
	bitCount := make([]int, maxBits+1)
	for _, l := range lengths {
		if l > 0 {
			bitCount[l]++
		}
	}

	// kraft is the Kraft sum in units of 2^-maxBits; a complete code
	// sums to exactly 1<<maxBits.
	kraft := 0
	for l := 1; l <= maxBits; l++ {
		kraft += bitCount[l] << uint(maxBits-l)
	}

	for kraft > 1<<uint(maxBits) {
		l := maxBits - 1
		for l > 0 && bitCount[l] == 0 {
			l--
		}
		if l == 0 {
			break
		}
		bitCount[l]--
		bitCount[l+1] += 2
		bitCount[maxBits]--
		kraft--
	}

	// Re-derive individual symbol lengths by walking the histogram from
	// the longest length down to the shortest, assigning them to the
	// symbols that currently hold the longest lengths first.
	type symLen struct {
		symbol int
		length int
	}
	var nonZero []symLen
	for s, l := range lengths {
		if l > 0 {
			nonZero = append(nonZero, symLen{s, l})
		}
	}
	// Stable sort by current length descending so ties keep their
	// relative (symbol) order, matching a deterministic canonical
	// assignment.
	for i := 1; i < len(nonZero); i++ {
		for j := i; j > 0 && nonZero[j].length > nonZero[j-1].length; j-- {
			nonZero[j], nonZero[j-1] = nonZero[j-1], nonZero[j]
		}
	}

	idx := 0
	for l := maxBits; l >= 1; l-- {
		for c := bitCount[l]; c > 0; c-- {
			lengths[nonZero[idx].symbol] = l
			idx++
		}
	}
}

// CanonicalCodes assigns canonical codes from a set of code lengths:
// symbols are sorted by (length, symbol), codes are assigned in
// ascending numeric order within each length, and each code is
// bit-reversed to match deflate's LSB-first bitstream transmission
// (spec §4.2 step 6). Symbols with length 0 receive code 0 and are not
// part of the prefix code.
func CanonicalCodes(lengths []int) []uint16 {
	n := len(lengths)
	codes := make([]uint16, n)

	maxLen := 0
	for _, l := range lengths {
		if l > maxLen {
			maxLen = l
		}
	}
	if maxLen == 0 {
		return codes
	}

	var blCount [MaxBitLength + 1]int
	for _, l := range lengths {
		if l > 0 {
			blCount[l]++
		}
	}

	var nextCode [MaxBitLength + 2]uint16
	code := uint16(0)
	for bits := 1; bits <= maxLen; bits++ {
		code = (code + uint16(blCount[bits-1])) << 1
		nextCode[bits] = code
	}

	for s := 0; s < n; s++ {
		l := lengths[s]
		if l == 0 {
			continue
		}
		codes[s] = reverseBits(nextCode[l], l)
		nextCode[l]++
	}
	return codes
}

func reverseBits(v uint16, n int) uint16 {
	var r uint16
	for i := 0; i < n; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}
