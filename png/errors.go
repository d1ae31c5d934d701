package png

import "github.com/pkg/errors"

// Kind classifies a png Error, following the same taxonomy the deflate
// package uses.
type Kind int

const (
	// FormatError is a protocol violation: bad signature, chunks out of
	// order, an unsupported colour/bit-depth combination, a strict-mode
	// CRC mismatch.
	FormatError Kind = iota
	// IntegrityError is not returned by this package; a chunk CRC-32
	// mismatch is reported as a FormatError wrapping ErrChunkCRC.
	IntegrityError
	// ResourceError is input exhausted mid-stream, or an output sink
	// that refused bytes.
	ResourceError
	// UnsupportedError is a feature this implementation does not
	// provide (a compression method other than 0).
	UnsupportedError
	// CallerError is an invalid call, such as encoding a PixelGrid with
	// a zero dimension.
	CallerError
)

func (k Kind) String() string {
	switch k {
	case FormatError:
		return "format"
	case IntegrityError:
		return "integrity"
	case ResourceError:
		return "resource"
	case UnsupportedError:
		return "unsupported"
	case CallerError:
		return "caller"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every public png entry point.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return "png: " + e.Kind.String() + ": " + e.Message + ": " + e.cause.Error()
	}
	return "png: " + e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, code int, msg string) error {
	return errors.WithStack(&Error{Kind: kind, Code: code, Message: msg})
}

func wrapError(kind Kind, code int, msg string, cause error) error {
	return errors.WithStack(&Error{Kind: kind, Code: code, Message: msg, cause: cause})
}

// Sentinel errors callers reasonably compare against with errors.Is.
var (
	ErrBadSignature  = errors.New("png: bad signature")
	ErrChunkOrder    = errors.New("png: chunks out of order")
	ErrChunkCRC      = errors.New("png: chunk CRC-32 mismatch")
	ErrNoIHDR        = errors.New("png: stream does not start with IHDR")
	ErrNoIEND        = errors.New("png: stream is missing IEND")
	ErrBadFilterType = errors.New("png: unknown scanline filter type")
)
