package huffman

// Entry is one slot in a compiled decode table. For a root-table slot
// holding a complete code, Bits is the code's length and Value is the
// decoded symbol. For a root-table slot that roots a second-level
// sub-table (code longer than the table's root width), Bits is the
// sub-table's total bit width (root+sub) and Value is the sub-table's
// starting offset into the same backing slice.
type Entry struct {
	Bits  uint8
	Value uint16
}

// BuildDecodeTable compiles canonical code lengths into a two-level
// lookup table indexed by the next rootBits bits read LSB-first off the
// wire (deflate's bit-reversed-at-transmission canonical codes mean the
// natural binary value of those bits already matches the codeword).
// Adapted from the lookup-table construction in deepteams-webp's
// internal/lossless.BuildHuffmanTable (itself a port of libwebp's
// huffman_utils.c BuildHuffmanTable), generalized to an arbitrary root
// width instead of the fixed HuffmanTableBits VP8L uses.
func BuildDecodeTable(rootBits int, lengths []int) ([]Entry, error) {
	n := len(lengths)
	if n == 0 {
		return nil, ErrInvalidTree
	}

	var count [MaxBitLength + 1]int
	nonZero := 0
	for _, l := range lengths {
		if l < 0 || l > MaxBitLength {
			return nil, ErrInvalidTree
		}
		if l > 0 {
			count[l]++
			nonZero++
		}
	}
	if nonZero == 0 {
		return nil, ErrInvalidTree
	}

	// Single-symbol code: every root-table slot decodes to it directly.
	// BuildLengths assigns a lone live symbol length 1, so this mirrors
	// that degenerate case on the decode side.
	if nonZero == 1 {
		var symbol int
		for s, l := range lengths {
			if l > 0 {
				symbol = s
				break
			}
		}
		table := make([]Entry, 1<<uint(rootBits))
		entry := Entry{Bits: 1, Value: uint16(symbol)}
		for i := range table {
			table[i] = entry
		}
		return table, nil
	}

	var offset [MaxBitLength + 2]int
	// left counts the codewords of length l still unassigned; it going
	// negative means the lengths are over-subscribed.
	left := 1
	for l := 1; l <= MaxBitLength; l++ {
		left = left<<1 - count[l]
		if left < 0 {
			return nil, ErrInvalidTree
		}
		offset[l+1] = offset[l] + count[l]
	}

	sorted := make([]uint16, n)
	cursor := offset
	for s, l := range lengths {
		if l > 0 {
			if cursor[l] >= len(sorted) {
				return nil, ErrInvalidTree
			}
			sorted[cursor[l]] = uint16(s)
			cursor[l]++
		}
	}
	sorted = sorted[:offset[MaxBitLength+1]]

	totalSize, err := decodeTableSize(rootBits, count)
	if err != nil {
		return nil, err
	}
	table := make([]Entry, totalSize)

	countCopy := count
	rootSize := 1 << uint(rootBits)
	tableWidth := rootSize
	tableOff := 0
	var low uint32 = 0xffffffff
	mask := uint32(rootSize - 1)
	var key uint32
	symbol := 0

	for l, step := 1, 2; l <= rootBits; l, step = l+1, step<<1 {
		for ; countCopy[l] > 0; countCopy[l]-- {
			e := Entry{Bits: uint8(l), Value: sorted[symbol]}
			symbol++
			replicate(table[key:], step, tableWidth, e)
			key = nextKey(key, l)
		}
	}

	for l, step := rootBits+1, 2; l <= MaxBitLength; l, step = l+1, step<<1 {
		for ; countCopy[l] > 0; countCopy[l]-- {
			if (key & mask) != low {
				tableOff += tableWidth
				tableBits := subTableBits(countCopy[:], l, rootBits)
				tableWidth = 1 << uint(tableBits)
				if tableOff+tableWidth > totalSize {
					return nil, ErrInvalidTree
				}
				low = key & mask
				table[low] = Entry{Bits: uint8(tableBits + rootBits), Value: uint16(tableOff)}
			}
			e := Entry{Bits: uint8(l - rootBits), Value: sorted[symbol]}
			symbol++
			off := tableOff + int(key>>uint(rootBits))
			if off >= totalSize {
				return nil, ErrInvalidTree
			}
			replicate(table[off:], step, tableWidth, e)
			key = nextKey(key, l)
		}
	}

	return table, nil
}

// decodeTableSize computes the total number of Entry slots required
// (root table plus every second-level sub-table) in a first pass, so
// the real table can be allocated once instead of grown.
func decodeTableSize(rootBits int, count [MaxBitLength + 1]int) (int, error) {
	total := 1 << uint(rootBits)
	mask := uint32(total - 1)
	var key uint32

	for l, step := 1, 2; l <= rootBits; l, step = l+1, step<<1 {
		_ = step
		for ; count[l] > 0; count[l]-- {
			key = nextKey(key, l)
		}
	}

	var low uint32 = 0xffffffff
	tableWidth := 1 << uint(rootBits)
	for l := rootBits + 1; l <= MaxBitLength; l++ {
		for ; count[l] > 0; count[l]-- {
			if (key & mask) != low {
				tableWidth = 1 << uint(subTableBits(count[:], l, rootBits))
				total += tableWidth
				low = key & mask
			}
			key = nextKey(key, l)
		}
	}
	return total, nil
}

// subTableBits picks the width (in bits) of the next second-level
// sub-table rooted at code length l, wide enough to hold every code of
// length >= l that still shares the sub-table's key.
func subTableBits(count []int, l, rootBits int) int {
	left := 1 << uint(l-rootBits)
	for l < MaxBitLength {
		left -= count[l]
		if left <= 0 {
			break
		}
		l++
		left <<= 1
	}
	return l - rootBits
}

// nextKey returns reverse(reverse(key, length) + 1, length): the next
// table key in bit-reversed counting order, matching canonical code
// enumeration order.
func nextKey(key uint32, length int) uint32 {
	step := uint32(1) << uint(length-1)
	for key&step != 0 {
		step >>= 1
	}
	if step != 0 {
		return (key & (step - 1)) + step
	}
	return key
}

// replicate fills table[0], table[step], ..., table[tableSize-step]
// with entry, duplicating a short code's slot across every key sharing
// its low bits.
func replicate(table []Entry, step, tableSize int, entry Entry) {
	for i := tableSize - step; i >= 0; i -= step {
		table[i] = entry
	}
}

// Decode reads one symbol from table given the next 15 bits already
// prefetched LSB-first into prefetch (enough to cover any deflate code
// plus its second-level sub-table lookup) and the table's root width.
// It returns the decoded symbol and how many bits it consumed.
func Decode(table []Entry, rootBits int, prefetch uint32) (symbol uint16, bitsUsed int) {
	rootMask := uint32(1<<uint(rootBits)) - 1
	e := table[prefetch&rootMask]
	extra := int(e.Bits) - rootBits
	if extra <= 0 {
		return e.Value, int(e.Bits)
	}
	sub := table[int(e.Value)+int((prefetch>>uint(rootBits))&((1<<uint(extra))-1))]
	return sub.Value, rootBits + int(sub.Bits)
}
