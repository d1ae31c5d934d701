package deflate

import "github.com/pkg/errors"

// Kind classifies a deflate Error, per the error taxonomy every package
// in this module shares.
type Kind int

const (
	// FormatError is a protocol violation in the byte stream: bad
	// header check bits, invalid Huffman table, unknown block type,
	// distance greater than window occupancy.
	FormatError Kind = iota
	// IntegrityError is an Adler-32 mismatch at the stream trailer.
	IntegrityError
	// ResourceError is input exhausted mid-stream, or an output sink
	// that refused bytes.
	ResourceError
	// UnsupportedError is a feature this implementation does not
	// provide (a compression method other than 8, a preset dictionary
	// where unsupported).
	UnsupportedError
	// CallerError is an invalid call, such as a compression level outside
	// 0..9 or a Write after Close.
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

// Error is the error type returned by every public deflate entry point.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return "deflate: " + e.Kind.String() + ": " + e.Message + ": " + e.cause.Error()
	}
	return "deflate: " + e.Kind.String() + ": " + e.Message
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
	ErrBadHeader      = errors.New("deflate: zlib header check failed")
	ErrBadChecksum    = errors.New("deflate: adler-32 mismatch")
	ErrDistanceTooFar = errors.New("deflate: backward reference distance exceeds window occupancy")
	ErrUnknownBlock   = errors.New("deflate: reserved block type 3")
)
