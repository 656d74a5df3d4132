package manifest

import (
	"errors"
	"fmt"

	"github.com/conn-castle/shovel/internal/messages"
)

// ErrInvalid matches every *Error via errors.Is.
var ErrInvalid = errors.New("invalid manifest")

// ErrorKind classifies a manifest error.
type ErrorKind string

const (
	// KindSyntax means the bytes are not a JSON object.
	KindSyntax ErrorKind = "syntax"
	// KindMissing means a required field is absent.
	KindMissing ErrorKind = "missing"
	// KindType means a field has the wrong JSON shape.
	KindType ErrorKind = "type"
	// KindInvalid means a field's value is rejected.
	KindInvalid ErrorKind = "invalid"
	// KindMismatch means two related fields disagree.
	KindMismatch ErrorKind = "mismatch"
)

// Error is a manifest parse or validation failure. Path points into the
// manifest structure, for example "architecture.64bit.hash[1]".
type Error struct {
	Name string
	Path string
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	name := e.Name
	if name == "" {
		name = "<unnamed>"
	}
	if e.Path == "" {
		return fmt.Sprintf(messages.ManifestErrorRootFmt, name, e.Msg)
	}
	return fmt.Sprintf(messages.ManifestErrorFmt, name, e.Path, e.Msg)
}

// Is lets errors.Is(err, ErrInvalid) match manifest errors.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func newError(path string, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Path: path, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func joinPath(prefix string, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
