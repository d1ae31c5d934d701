package lzwindow

const (
	hashBits = 15
	hashSize = 1 << hashBits
	hashMask = hashSize - 1
	hashSlide = WindowSize
)

// HashChain implements the fixed 32K-entry head table plus 32K-entry
// "previous" table described in spec §3.1, keyed by the 15-bit rolling
// hash of the next 3 bytes. It is the byte-oriented counterpart of
// deepteams-webp's internal/lossless.HashChain, which performs the
// analogous role for VP8L's pixel-pair hashing; the structure (head +
// prev arrays, walk-while-candidates-remain matching) is the same, the
// hash function and operand type (bytes vs. packed ARGB) differ.
type HashChain struct {
	head []int32 // hashSize entries; position+1, 0 means empty
	prev []int32 // WindowSize entries; position -> previous position+1 with same hash, 0 if none
}

// NewHashChain allocates an empty hash chain.
func NewHashChain() *HashChain {
	return &HashChain{
		head: make([]int32, hashSize),
		prev: make([]int32, WindowSize),
	}
}

// UpdateHash folds one more byte into a rolling 3-byte hash, per spec
// §4.5: hash = ((hash<<5) ^ next_byte) & 0x7FFF.
func UpdateHash(hash uint32, b byte) uint32 {
	return ((hash << 5) ^ uint32(b)) & hashMask
}

// HashAt computes the hash of the 3 bytes starting at local offset i.
func HashAt(w *Window, i int) uint32 {
	var h uint32
	h = UpdateHash(h, w.buf[i])
	h = UpdateHash(h, w.buf[i+1])
	h = UpdateHash(h, w.buf[i+2])
	return h
}

// Insert links local position pos (whose 3-byte hash is hash) to the
// front of its hash bucket's chain.
func (hc *HashChain) Insert(pos int, hash uint32) {
	hc.prev[pos&(WindowSize-1)] = hc.head[hash]
	hc.head[hash] = int32(pos + 1) // +1 so 0 means "empty" per spec
}

// Slide rebases the chain tables after the window slides by WindowSize,
// per spec: "values <32 KiB become 0, others decrement".
func (hc *HashChain) Slide() {
	for i, v := range hc.head {
		if v == 0 {
			continue
		}
		p := int(v) - 1
		if p < hashSlide {
			hc.head[i] = 0
		} else {
			hc.head[i] = int32(p - hashSlide + 1)
		}
	}
	// prev is indexed by pos & (WindowSize-1), a fixed-size ring that
	// ages out on its own; its stored values still need the same
	// rebasing as head so stale distances aren't reported post-slide.
	for i, v := range hc.prev {
		if v == 0 {
			continue
		}
		p := int(v) - 1
		if p < hashSlide {
			hc.prev[i] = 0
		} else {
			hc.prev[i] = int32(p - hashSlide + 1)
		}
	}
}

// Match is a candidate (or chosen) backward reference.
type Match struct {
	Length   int
	Distance int
}

// FindMatch walks the hash chain rooted at pos's 3-byte hash, looking
// for the longest match of at least MinMatch bytes within maxChain
// steps, per spec §4.5. It stops early once a match of at least
// niceLength is found. bestLen seeds the search (used by the lazy
// matcher to require a strictly longer match at pos+1 than it already
// has at pos).
func (hc *HashChain) FindMatch(w *Window, pos int, hash uint32, maxChain, niceLength, bestLen int) (Match, bool) {
	limit := w.pos - pos
	if limit > MaxMatch {
		limit = MaxMatch
	}
	maxDistance := WindowSize - MaxMatch + MinMatch

	cand := int(hc.head[hash]) - 1
	chain := maxChain
	best := Match{}
	for cand >= 0 && chain > 0 {
		distance := pos - cand
		if distance > maxDistance || distance <= 0 {
			break
		}
		// Guard: skip candidates that can't beat the current best by
		// checking only the byte at the current best length first.
		if bestLen < limit && w.buf[cand+bestLen] == w.buf[pos+bestLen] {
			length := matchLength(w, cand, pos, limit)
			if length > bestLen {
				bestLen = length
				best = Match{Length: length, Distance: distance}
				if length >= niceLength {
					break
				}
			}
		}
		chain--
		cand = int(hc.prev[cand&(WindowSize-1)]) - 1
	}

	if best.Length < MinMatch {
		return Match{}, false
	}
	if best.Length == MinMatch && best.Distance > shortMatchDistanceLimit {
		return Match{}, false
	}
	return best, true
}

func matchLength(w *Window, a, b, limit int) int {
	n := 0
	for n < limit && w.buf[a+n] == w.buf[b+n] {
		n++
	}
	return n
}
