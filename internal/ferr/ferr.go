// Package ferr defines the closed set of parse-failure kinds shared by
// the binary decoders in this module (aar, qnt, pol, mot) and the
// cursor and inflate helpers they build on.
package ferr

import "fmt"

// Kind is the closed set of ways a decode can fail. Callers that need to
// branch on failure type should use errors.As to recover an *Error and
// switch on Kind, rather than matching error strings.
type Kind int

const (
	Truncated Kind = iota
	BadMagic
	UnsupportedVersion
	SizeMismatch
	IndexOutOfRange
	DuplicateTextureRole
	MissingColorMap
	MaterialHasBothTexturesAndChildren
	UnexpectedFooter
	NotImplemented
	DecompressFailed
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case BadMagic:
		return "bad magic"
	case UnsupportedVersion:
		return "unsupported version"
	case SizeMismatch:
		return "size mismatch"
	case IndexOutOfRange:
		return "index out of range"
	case DuplicateTextureRole:
		return "duplicate texture role"
	case MissingColorMap:
		return "missing color map"
	case MaterialHasBothTexturesAndChildren:
		return "material has both textures and children"
	case UnexpectedFooter:
		return "unexpected footer"
	case NotImplemented:
		return "not implemented"
	case DecompressFailed:
		return "decompress failed"
	case OutOfMemory:
		return "out of memory"
	default:
		return "unknown error kind"
	}
}

// Error is a parse failure tagged with its Kind. It is always fatal to
// the file being parsed; there is no partial-load mode in this module.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds an *Error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Is lets errors.Is(err, &ferr.Error{Kind: ferr.Truncated}) work by
// comparing Kind when the target is itself a *Error, and otherwise
// reports false.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
