package cidpack

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cidpack/cidpack/deflate"
	"github.com/cidpack/cidpack/internal/pool"
)

// maxFileBufferBytes caps the size of a source file that packing reads
// into memory, per spec §4.7's 200 MiB implementation choice; a larger
// file fails with a ResourceError.
const maxFileBufferBytes = 200 * 1024 * 1024

// PackOptions configures a Pack call.
type PackOptions struct {
	// UserVersion, UserCard4, UserCard8, and Notes are opaque caller
	// values copied into the package header verbatim.
	UserVersion uint64
	UserCard4   uint32
	UserCard8   uint64
	Notes       string
	// Timestamp is stored in the header; the zero value means "now".
	Timestamp time.Time
	// Level is the deflate compression level used for every file.
	Level int
	// Progress, if non-nil, receives one line per file packed,
	// mirroring the original's optional pstrmStatus status stream.
	Progress io.Writer
}

// Pack walks sourceRoot depth-first and writes a "(CIDPack) V1" archive
// of every regular file it finds to dst. dst must not require seeking;
// Pack never seeks backward. It returns the header actually written.
//
// Pack takes an io.Writer rather than a target path, so it cannot itself
// enforce spec §4.7's "target not inside source tree" rule; a caller
// writing to a file should call ValidateTargetPath(path, sourceRoot)
// before opening it.
func Pack(dst io.Writer, sourceRoot string, opts PackOptions) (Header, error) {
	absSrc, err := filepath.Abs(sourceRoot)
	if err != nil {
		return Header{}, wrapError(CallerError, 40, "resolving source path", err)
	}
	absSrc = filepath.Clean(absSrc)

	if opts.Timestamp.IsZero() {
		opts.Timestamp = time.Now()
	}

	paths, err := collectFiles(absSrc)
	if err != nil {
		return Header{}, err
	}

	h := Header{
		UserVersion: opts.UserVersion,
		FileCount:   uint32(len(paths)),
		Timestamp:   opts.Timestamp,
		UserCard4:   opts.UserCard4,
		UserCard8:   opts.UserCard8,
		Notes:       opts.Notes,
	}
	if err := writeHeader(dst, h); err != nil {
		return Header{}, err
	}

	for _, abs := range paths {
		rel, err := filepath.Rel(absSrc, abs)
		if err != nil {
			return Header{}, wrapError(CallerError, 41, "computing relative path", err)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." || rel == "" {
			return Header{}, wrapError(CallerError, 42, "file resolved to an empty relative path", nil)
		}
		if err := packFile(dst, abs, rel, opts.Level, opts.Progress); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

// ValidateTargetPath rejects an output path that falls inside the
// source tree, using a path-segment-aware comparison. Spec §9 flags
// the original's case-insensitive string-prefix check as buggy (it
// mistakes "/srcOUT/..." for being inside "/src"); this compares
// cleaned path segments instead.
func ValidateTargetPath(targetPath, sourceRoot string) error {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return wrapError(CallerError, 43, "resolving target path", err)
	}
	absSrc, err := filepath.Abs(sourceRoot)
	if err != nil {
		return wrapError(CallerError, 44, "resolving source path", err)
	}
	rel, err := filepath.Rel(filepath.Clean(absSrc), filepath.Clean(absTarget))
	if err != nil {
		return nil
	}
	if rel == "." || (!strings.HasPrefix(rel, "..") && rel != "") {
		return wrapError(CallerError, 45, "target path is inside the source tree", ErrDestInSourceTree)
	}
	return nil
}

func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, wrapError(ResourceError, 46, "walking source tree", err)
	}
	sort.Strings(files)
	return files, nil
}

func packFile(dst io.Writer, absPath, relPath string, level int, progress io.Writer) error {
	info, err := os.Stat(absPath)
	if err != nil {
		return wrapError(ResourceError, 47, fmt.Sprintf("stat %s", relPath), err)
	}
	if info.Size() > maxFileBufferBytes {
		return wrapError(ResourceError, 48, fmt.Sprintf("%s exceeds the per-file buffer limit", relPath), nil)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return wrapError(ResourceError, 71, fmt.Sprintf("opening %s", relPath), err)
	}
	defer f.Close()

	data := pool.Get(int(info.Size()))
	defer pool.Put(data)
	if _, err := io.ReadFull(f, data); err != nil {
		return wrapError(ResourceError, 72, fmt.Sprintf("reading %s", relPath), err)
	}

	sum := md5.Sum(data)

	compressed, ok := tryDeflate(data, level)
	storeVerbatim := !ok || len(compressed) >= len(data)

	rec := fileRecord{
		OriginalSize: uint32(len(data)),
		MD5:          sum,
		RelPath:      relPath,
	}
	var payload []byte
	if storeVerbatim {
		rec.CompressedSize = rec.OriginalSize
		payload = data
	} else {
		rec.CompressedSize = uint32(len(compressed))
		payload = compressed
	}

	if err := writeFileRecord(dst, rec); err != nil {
		return err
	}
	if _, err := dst.Write(payload); err != nil {
		return wrapError(ResourceError, 49, fmt.Sprintf("writing payload for %s", relPath), err)
	}
	if progress != nil {
		fmt.Fprintf(progress, "   %s\n", relPath)
	}
	return nil
}

// tryDeflate compresses data at the given level. A deflate failure is
// treated the way the original's PackFile treats the ZLib "negative
// block start" error on already-compressed input: fall back to calling
// the file incompressible rather than aborting the whole package.
func tryDeflate(data []byte, level int) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := deflate.NewWriter(&buf, deflate.EncoderOptions{Level: level})
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(data); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
