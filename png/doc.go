// Package png implements a reader and writer for the PNG raster image
// format (a subset of RFC 2083), layered on top of this module's own
// deflate codec. It supports the colour types, bit depths, and Adam7
// interlacing needed to round-trip ordinary images, plus one private
// ancillary chunk (cdBC) used to carry a packed transparency colour
// alongside the standard tRNS chunk.
//
// Encoding always produces a non-interlaced stream; decoding accepts
// both progressive and Adam7-interlaced input.
package png
