package cidpack

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cidpack/cidpack/deflate"
)

// ExtractOptions configures an Extract call.
type ExtractOptions struct {
	// Overwrite, when false, makes Extract fail rather than replace an
	// existing file at a target path.
	Overwrite bool
	// Progress, if non-nil, receives one line per file extracted.
	Progress io.Writer
}

// Extract reads a "(CIDPack) V1" archive from src and recreates its
// files under destRoot, verifying each file's MD5 against the record
// before writing it. It returns the package header.
//
// src need not be seekable: Extract reads every byte of every payload
// in order and never skips.
func Extract(src io.Reader, destRoot string, opts ExtractOptions) (Header, error) {
	h, err := readHeader(src)
	if err != nil {
		return h, err
	}

	absDest, err := filepath.Abs(destRoot)
	if err != nil {
		return h, wrapError(CallerError, 60, "resolving destination path", err)
	}

	for i := uint32(0); i < h.FileCount; i++ {
		rec, err := readFileRecord(src)
		if err != nil {
			return h, err
		}
		if err := extractFile(src, absDest, rec, opts); err != nil {
			return h, err
		}
	}
	return h, nil
}

// ExtractDetails reads only the package header, without consuming any
// file records or payloads, mirroring the original's
// TFacCIDPack::ExtractDetails used to preview a package.
func ExtractDetails(src io.Reader) (Header, error) {
	return readHeader(src)
}

func extractFile(src io.Reader, absDest string, rec fileRecord, opts ExtractOptions) error {
	targetPath, err := safeJoin(absDest, rec.RelPath)
	if err != nil {
		return err
	}

	var data []byte
	if rec.CompressedSize == rec.OriginalSize {
		data = make([]byte, rec.OriginalSize)
		if _, err := io.ReadFull(src, data); err != nil {
			return wrapError(ResourceError, 61, fmt.Sprintf("reading stored payload for %s", rec.RelPath), err)
		}
	} else {
		lr := io.LimitReader(src, int64(rec.CompressedSize))
		inflated, err := deflate.DecodeAll(lr)
		if err != nil {
			return wrapError(FormatError, 62, fmt.Sprintf("inflating %s", rec.RelPath), err)
		}
		if uint32(len(inflated)) != rec.OriginalSize {
			return wrapError(FormatError, 63, fmt.Sprintf("%s inflated to the wrong size", rec.RelPath), nil)
		}
		data = inflated
	}

	sum := md5.Sum(data)
	if sum != rec.MD5 {
		return wrapError(IntegrityError, 64, fmt.Sprintf("MD5 mismatch extracting %s", rec.RelPath), ErrMD5Mismatch)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o777); err != nil {
		return wrapError(ResourceError, 65, fmt.Sprintf("creating directories for %s", rec.RelPath), err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(targetPath, flags, 0o666)
	if err != nil {
		if !opts.Overwrite && os.IsExist(err) {
			return wrapError(CallerError, 66, fmt.Sprintf("%s already exists", rec.RelPath), ErrAlreadyExists)
		}
		return wrapError(ResourceError, 67, fmt.Sprintf("opening %s for write", rec.RelPath), err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return wrapError(ResourceError, 68, fmt.Sprintf("writing %s", rec.RelPath), err)
	}
	if opts.Progress != nil {
		fmt.Fprintf(opts.Progress, "   %s\n", rec.RelPath)
	}
	return nil
}

// safeJoin joins rel onto root and rejects any path that escapes root,
// guarding against a malicious or corrupt relative path (e.g. "../..")
// in a FileRecord.
func safeJoin(root, rel string) (string, error) {
	cleanRel := filepath.Clean(filepath.FromSlash(rel))
	if cleanRel == "." || cleanRel == "" {
		return "", wrapError(FormatError, 69, "file record has an empty relative path", nil)
	}
	joined := filepath.Join(root, cleanRel)
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", wrapError(FormatError, 70, "file record path escapes the destination root", nil)
	}
	return joined, nil
}
