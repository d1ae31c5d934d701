// Package deflate implements a pure Go encoder and decoder for the zlib
// (RFC 1950) wrapped DEFLATE (RFC 1951) stream format.
//
// It builds its own canonical Huffman tables, LZ77 sliding window, and
// lazy-match encoder rather than wrapping compress/flate, so that its
// block-selection and length-limiting behavior matches the compression
// levels described by this package's EncoderOptions exactly.
//
// Basic usage for encoding:
//
//	w, err := deflate.NewWriter(dst, deflate.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	io.Copy(w, src)
//	w.Close()
//
// Basic usage for decoding:
//
//	r := deflate.NewReader(src)
//	io.Copy(dst, r)
package deflate
