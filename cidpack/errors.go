package cidpack

import "github.com/pkg/errors"

// Kind classifies a cidpack Error, following the same taxonomy the
// deflate and png packages use.
type Kind int

const (
	// FormatError is a protocol violation: bad signature, a malformed
	// record.
	FormatError Kind = iota
	// IntegrityError is an MD5 mismatch at a package-entry tail.
	IntegrityError
	// ResourceError is input exhausted mid-stream, or an output sink
	// (disk, writer) that refused bytes.
	ResourceError
	// UnsupportedError is a feature this implementation does not
	// provide (a format version newer than this build understands).
	UnsupportedError
	// CallerError is an invalid call: a destination inside the source
	// tree, an extract target that already exists without overwrite.
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

// Error is the error type returned by every public cidpack entry point.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return "cidpack: " + e.Kind.String() + ": " + e.Message + ": " + e.cause.Error()
	}
	return "cidpack: " + e.Kind.String() + ": " + e.Message
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
	ErrBadSignature     = errors.New("cidpack: bad package signature")
	ErrBadMarker        = errors.New("cidpack: missing start/end object marker")
	ErrUnknownVersion   = errors.New("cidpack: unsupported format version")
	ErrRedundancyFailed = errors.New("cidpack: size field redundancy check failed")
	ErrMD5Mismatch      = errors.New("cidpack: MD5 mismatch on extracted file")
	ErrDestInSourceTree = errors.New("cidpack: destination path is inside the source tree")
	ErrAlreadyExists    = errors.New("cidpack: destination file already exists")
)
