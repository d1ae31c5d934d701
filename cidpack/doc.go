// Package cidpack implements the "(CIDPack) V1" archive format: a
// single flat binary file holding a header plus one file record per
// archived file, each deflated with this module's own deflate package
// (or stored verbatim when deflating would not shrink it).
//
// Writing streams forward only; reading honours an overwrite flag and
// verifies each extracted file's MD5 against the record before
// returning success.
package cidpack
