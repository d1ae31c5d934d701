package deflate

import (
	"io"

	"github.com/cidpack/cidpack/internal/bitio"
	"github.com/cidpack/cidpack/internal/huffman"
	"github.com/cidpack/cidpack/internal/lzwindow"
)

// maxBlockTokens and maxBlockRawBytes bound how many literal/length and
// distance symbols (respectively how many raw bytes) accumulate before a
// block is forced to flush, per spec §4.4's "accumulate up to 32K or
// end-of-input".
const (
	maxBlockTokens  = 32768
	maxBlockRawBytes = 32768
	maxStoredLen     = 65535
)

// EncoderOptions controls deflate encoding parameters.
type EncoderOptions struct {
	// Level selects the compression/speed tradeoff, 0 (stored-only) to
	// 9 (maximum, per the 10-entry tuning table in spec §4.4/§12).
	Level int
}

// DefaultOptions returns the options used when none are supplied,
// mirroring zlib's default level 6.
func DefaultOptions() EncoderOptions { return EncoderOptions{Level: 6} }

var (
	fixedLitLengths = fixedLitLenLengths()
	fixedDistLens   = fixedDistLengths()
	fixedLitCodes   = huffman.CanonicalCodes(fixedLitLengths)
	fixedDistCodes  = huffman.CanonicalCodes(fixedDistLens)
)

type token struct {
	length   int // 0 means literal
	distance int
	lit      byte
}

// Writer compresses bytes written to it and writes a zlib-wrapped
// deflate stream to the underlying io.Writer. It must be closed to
// flush the final block and the Adler-32 trailer.
type Writer struct {
	dst   io.Writer
	bw    *bitio.Writer
	win   *lzwindow.Window
	hc    *lzwindow.HashChain
	adler *adlerWriter

	level int
	cfg   compressionLevel

	tokenizeAbs  int64
	prevMatchLen int // length of the previous token; 1 for a literal

	litLenFreq [286]uint64
	distFreq   [30]uint64
	tokens     []token
	blockRaw   []byte

	storedBuf []byte // level 0 only

	closed bool
	err    error
}

// NewWriter creates a Writer that writes a complete zlib stream
// (header, compressed blocks, Adler-32 trailer) to dst.
func NewWriter(dst io.Writer, opts EncoderOptions) (*Writer, error) {
	if opts.Level < 0 || opts.Level > 9 {
		return nil, newError(CallerError, 10, "compression level out of range 0..9")
	}
	w := &Writer{
		dst:   dst,
		bw:    bitio.NewWriter(dst),
		win:   lzwindow.New(),
		hc:    lzwindow.NewHashChain(),
		adler: newAdlerWriter(),
		level: opts.Level,
	}
	if opts.Level > 0 {
		w.cfg = compressionLevels[opts.Level]
	}
	w.win.SetSlideHook(w.hc.Slide)
	header := writeZlibHeader(opts.Level)
	if err := w.bw.WriteAlignedBytes(header[:]); err != nil {
		return nil, wrapError(ResourceError, 11, "writing zlib header", err)
	}
	return w, nil
}

// Write compresses p, buffering as needed; it always consumes all of p.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, newError(CallerError, 12, "write after Close")
	}
	if w.err != nil {
		return 0, w.err
	}
	w.adler.Write(p)
	if w.level == 0 {
		w.storedBuf = append(w.storedBuf, p...)
		w.flushStoredFull(false)
		return len(p), w.err
	}
	for _, b := range p {
		w.win.PutByte(b)
		// Tokenize well before the next Slide can discard bytes that
		// have not been tokenized yet.
		if w.win.Pos()-w.tokenizeAbs >= lzwindow.WindowSize/2 {
			w.drain(false)
		}
	}
	w.drain(false)
	return len(p), w.err
}

// Close flushes any buffered data, the final block, and the Adler-32
// trailer, then flushes the underlying bufio.Writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}
	if w.level == 0 {
		w.flushStoredFull(true)
	} else {
		w.drain(true)
		w.flushBlock(true)
	}
	if w.err != nil {
		return w.err
	}
	if err := w.bw.FlushToByte(); err != nil {
		return wrapError(ResourceError, 13, "flushing final block", err)
	}
	var trailer [4]byte
	putUint32BE(trailer[:], w.adler.Sum32())
	if err := w.bw.WriteAlignedBytes(trailer[:]); err != nil {
		return wrapError(ResourceError, 14, "writing adler-32 trailer", err)
	}
	if err := w.bw.Flush(); err != nil {
		return wrapError(ResourceError, 15, "flushing output", err)
	}
	w.win.Release()
	return nil
}

// flushStoredFull emits complete 65535-byte stored blocks from
// w.storedBuf, used only at level 0. When final is true, the remaining
// tail (however short, including empty) is emitted as the last block.
func (w *Writer) flushStoredFull(final bool) {
	wroteFinal := false
	for len(w.storedBuf) > maxStoredLen || (final && len(w.storedBuf) > 0) {
		n := len(w.storedBuf)
		if n > maxStoredLen {
			n = maxStoredLen
		}
		last := final && n == len(w.storedBuf)
		w.writeStoredBlock(w.storedBuf[:n], last)
		wroteFinal = wroteFinal || last
		w.storedBuf = w.storedBuf[n:]
		if w.err != nil {
			return
		}
	}
	if final && !wroteFinal {
		w.writeStoredBlock(nil, true)
	}
}

// drain tokenizes as much of the window as it safely can. With
// final=false it stops once fewer than MaxMatch+1 bytes remain
// unprocessed, so a match length decision is never truncated by data
// that simply hasn't arrived yet. With final=true it consumes
// everything.
func (w *Writer) drain(final bool) {
	for w.err == nil {
		avail := w.win.Pos() - w.tokenizeAbs
		if avail <= 0 {
			break
		}
		if !final && avail < int64(lzwindow.MaxMatch+1) {
			break
		}
		pos := w.tokenizeAbs
		local := w.win.LocalIndex(pos)
		currentLocal := w.win.LocalIndex(w.win.Pos())

		// Per zlib's deflate.c, once the previous token matched at least
		// cfg.good bytes the data is judged compressible enough that a
		// shorter chain walk is worth the lost match quality.
		maxChain := w.cfg.chain
		if w.prevMatchLen >= w.cfg.good {
			maxChain >>= 2
			if maxChain < 1 {
				maxChain = 1
			}
		}

		var m lzwindow.Match
		haveMatch := false
		if avail >= lzwindow.MinMatch {
			h := lzwindow.HashAt(w.win, local)
			m, haveMatch = w.hc.FindMatch(w.win, local, h, maxChain, w.cfg.nice, 0)
		}

		if haveMatch && !w.cfg.fastGreedy && m.Length < w.cfg.lazy && avail > int64(lzwindow.MaxMatch+1) {
			h1 := lzwindow.HashAt(w.win, local+1)
			m1, ok1 := w.hc.FindMatch(w.win, local+1, h1, maxChain, w.cfg.nice, m.Length)
			if ok1 && m1.Length > m.Length {
				w.emitLiteral(w.win.At(local))
				w.insertHash(local, currentLocal)
				w.tokenizeAbs++
				w.maybeFlush()
				w.prevMatchLen = 1
				continue
			}
		}

		if haveMatch {
			w.emitMatch(local, m.Length, m.Distance)
			for k := 0; k < m.Length; k++ {
				w.insertHash(local+k, currentLocal)
			}
			w.tokenizeAbs += int64(m.Length)
			w.prevMatchLen = m.Length
		} else {
			w.emitLiteral(w.win.At(local))
			w.insertHash(local, currentLocal)
			w.tokenizeAbs++
			w.prevMatchLen = 1
		}
		w.maybeFlush()
	}
}

func (w *Writer) insertHash(local, currentLocal int) {
	if local+3 <= currentLocal {
		w.hc.Insert(local, lzwindow.HashAt(w.win, local))
	}
}

func (w *Writer) maybeFlush() {
	if len(w.tokens) >= maxBlockTokens || len(w.blockRaw) >= maxBlockRawBytes {
		w.flushBlock(false)
	}
}

func (w *Writer) emitLiteral(b byte) {
	w.litLenFreq[b]++
	w.tokens = append(w.tokens, token{lit: b})
	w.blockRaw = append(w.blockRaw, b)
}

func (w *Writer) emitMatch(local, length, distance int) {
	ls := lengthSymbolFor(length)
	w.litLenFreq[257+ls]++
	ds := distSymbolFor(distance)
	w.distFreq[ds]++
	w.tokens = append(w.tokens, token{length: length, distance: distance})
	w.blockRaw = append(w.blockRaw, w.win.Slice(local, local+length)...)
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) put(value uint32, n int) {
	if w.err != nil || n == 0 {
		return
	}
	if err := w.bw.PutBits(value, n); err != nil {
		w.fail(wrapError(ResourceError, 16, "writing bitstream", err))
	}
}

func (w *Writer) writeStoredBlock(data []byte, final bool) {
	var bfinal uint32
	if final {
		bfinal = 1
	}
	w.put(bfinal, 1)
	w.put(0, 2) // BTYPE=00 stored
	if w.err != nil {
		return
	}
	if err := w.bw.FlushToByte(); err != nil {
		w.fail(wrapError(ResourceError, 17, "aligning stored block", err))
		return
	}
	var lenBuf [4]byte
	n := uint16(len(data))
	lenBuf[0] = byte(n)
	lenBuf[1] = byte(n >> 8)
	nlen := ^n
	lenBuf[2] = byte(nlen)
	lenBuf[3] = byte(nlen >> 8)
	if err := w.bw.WriteAlignedBytes(lenBuf[:]); err != nil {
		w.fail(wrapError(ResourceError, 18, "writing stored block length", err))
		return
	}
	if len(data) > 0 {
		if err := w.bw.WriteAlignedBytes(data); err != nil {
			w.fail(wrapError(ResourceError, 19, "writing stored block data", err))
		}
	}
}

// flushBlock emits the current block using whichever of stored/fixed/
// dynamic Huffman produces the fewest bits, per spec §4.4's block
// strategy selection, then resets the block accumulators.
func (w *Writer) flushBlock(final bool) {
	if w.err != nil {
		return
	}
	if len(w.tokens) == 0 && !final {
		return
	}

	litFreq := w.litLenFreq
	litFreq[256]++ // end-of-block symbol
	distFreq := w.distFreq
	if sumFreq(distFreq[:]) == 0 {
		distFreq[0] = 1 // RFC 1951: HDIST must encode at least one code
	}

	litLengths, err := huffman.BuildLengths(litFreq[:], huffman.MaxBitLength)
	if err != nil {
		w.fail(wrapError(FormatError, 20, "building literal/length table", err))
		return
	}
	distLengths, err := huffman.BuildLengths(distFreq[:], huffman.MaxBitLength)
	if err != nil {
		w.fail(wrapError(FormatError, 21, "building distance table", err))
		return
	}

	hlit := highestNonZero(litLengths) + 1
	if hlit < 257 {
		hlit = 257
	}
	hdist := highestNonZero(distLengths) + 1
	if hdist < 1 {
		hdist = 1
	}

	combined := make([]int, 0, hlit+hdist)
	combined = append(combined, litLengths[:hlit]...)
	combined = append(combined, distLengths[:hdist]...)
	clSymbols, clExtras, clFreq := rleEncodeLengths(combined)

	clLengths, err := huffman.BuildLengths(clFreq[:], huffman.MaxCodeLengthBits)
	if err != nil {
		w.fail(wrapError(FormatError, 22, "building code-length table", err))
		return
	}
	hclen := 4
	for k := len(codeLengthOrder) - 1; k >= 4; k-- {
		if clLengths[codeLengthOrder[k]] != 0 {
			hclen = k + 1
			break
		}
	}

	dynamicBits := 5 + 5 + 4 + hclen*3
	for k, sym := range clSymbols {
		dynamicBits += clLengths[sym]
		dynamicBits += clExtraBitWidth(sym, clExtras[k])
	}
	litCodes := huffman.CanonicalCodes(litLengths)
	distCodes := huffman.CanonicalCodes(distLengths)
	dynamicBits += tokenStreamBits(w.tokens, litLengths, distLengths) + litLengths[256]

	fixedBits := tokenStreamBits(w.tokens, fixedLitLengths, fixedDistLens) + fixedLitLengths[256]

	storedBits := 1 << 30
	if len(w.blockRaw) <= maxStoredLen {
		storedBits = 32 + 7 + len(w.blockRaw)*8
	}

	const dynamicStrategy, fixedStrategy, storedStrategy = 0, 1, 2
	strategy, best := dynamicStrategy, dynamicBits
	if fixedBits < best {
		strategy, best = fixedStrategy, fixedBits
	}
	if storedBits < best {
		strategy = storedStrategy
	}

	if strategy == storedStrategy {
		w.writeStoredBlock(w.blockRaw, final)
	} else {
		var bfinal uint32
		if final {
			bfinal = 1
		}
		w.put(bfinal, 1)
		if strategy == fixedStrategy {
			w.put(1, 2)
			w.writeTokens(w.tokens, fixedLitCodes, fixedLitLengths, fixedDistCodes, fixedDistLens)
			w.put(uint32(fixedLitCodes[256]), fixedLitLengths[256])
		} else {
			w.put(2, 2)
			w.put(uint32(hlit-257), 5)
			w.put(uint32(hdist-1), 5)
			w.put(uint32(hclen-4), 4)
			for k := 0; k < hclen; k++ {
				w.put(uint32(clLengths[codeLengthOrder[k]]), 3)
			}
			clCodes := huffman.CanonicalCodes(clLengths)
			for k, sym := range clSymbols {
				w.put(uint32(clCodes[sym]), clLengths[sym])
				if bits := clExtraBitWidth(sym, clExtras[k]); bits > 0 {
					w.put(uint32(clExtras[k]), bits)
				}
			}
			w.writeTokens(w.tokens, litCodes, litLengths, distCodes, distLengths)
			w.put(uint32(litCodes[256]), litLengths[256])
		}
	}

	w.litLenFreq = [286]uint64{}
	w.distFreq = [30]uint64{}
	w.tokens = w.tokens[:0]
	w.blockRaw = w.blockRaw[:0]
}

func (w *Writer) writeTokens(tokens []token, litCodes []uint16, litLengths []int, distCodes []uint16, distLengths []int) {
	for _, t := range tokens {
		if w.err != nil {
			return
		}
		if t.length == 0 {
			w.put(uint32(litCodes[t.lit]), litLengths[t.lit])
			continue
		}
		ls := lengthSymbolFor(t.length)
		sym := 257 + ls
		w.put(uint32(litCodes[sym]), litLengths[sym])
		if extra := lengthExtraBits[ls]; extra > 0 {
			w.put(uint32(t.length-lengthBase[ls]), extra)
		}
		ds := distSymbolFor(t.distance)
		w.put(uint32(distCodes[ds]), distLengths[ds])
		if extra := distExtraBits[ds]; extra > 0 {
			w.put(uint32(t.distance-distBase[ds]), extra)
		}
	}
}

func tokenStreamBits(tokens []token, litLengths, distLengths []int) int {
	total := 0
	for _, t := range tokens {
		if t.length == 0 {
			total += litLengths[t.lit]
			continue
		}
		ls := lengthSymbolFor(t.length)
		total += litLengths[257+ls] + lengthExtraBits[ls]
		ds := distSymbolFor(t.distance)
		total += distLengths[ds] + distExtraBits[ds]
	}
	return total
}

func sumFreq(freq []uint64) uint64 {
	var s uint64
	for _, f := range freq {
		s += f
	}
	return s
}

func highestNonZero(lengths []int) int {
	for i := len(lengths) - 1; i >= 0; i-- {
		if lengths[i] > 0 {
			return i
		}
	}
	return -1
}

// clExtraBitWidth returns the number of extra bits a code-length
// alphabet symbol carries, or 0 for a literal length (extras[i]==-1).
func clExtraBitWidth(sym, extra int) int {
	if extra < 0 {
		return 0
	}
	switch sym {
	case 16:
		return 2
	case 17:
		return 3
	case 18:
		return 7
	default:
		return 0
	}
}

// rleEncodeLengths run-length-encodes a sequence of Huffman code
// lengths using the code-length alphabet (symbols 0-15 literal, 16
// repeat-previous 3-6x, 17 repeat-zero 3-10x, 18 repeat-zero 11-138x),
// per RFC 1951 §3.2.7 / spec §4.3's CodeLens state.
func rleEncodeLengths(lens []int) (symbols []int, extras []int, freq [19]uint64) {
	i := 0
	for i < len(lens) {
		l := lens[i]
		runLen := 1
		for i+runLen < len(lens) && lens[i+runLen] == l {
			runLen++
		}
		if l == 0 {
			n := runLen
			for n > 0 {
				switch {
				case n < 3:
					symbols = append(symbols, 0)
					extras = append(extras, -1)
					freq[0]++
					n--
				case n <= 10:
					symbols = append(symbols, 17)
					extras = append(extras, n-3)
					freq[17]++
					n = 0
				default:
					take := n
					if take > 138 {
						take = 138
					}
					symbols = append(symbols, 18)
					extras = append(extras, take-11)
					freq[18]++
					n -= take
				}
			}
			i += runLen
		} else {
			symbols = append(symbols, l)
			extras = append(extras, -1)
			freq[l]++
			i++
			remaining := runLen - 1
			for remaining > 0 {
				take := remaining
				if take > 6 {
					take = 6
				}
				if take < 3 {
					for k := 0; k < take; k++ {
						symbols = append(symbols, l)
						extras = append(extras, -1)
						freq[l]++
					}
				} else {
					symbols = append(symbols, 16)
					extras = append(extras, take-3)
					freq[16]++
				}
				remaining -= take
				i += take
			}
		}
	}
	return symbols, extras, freq
}
