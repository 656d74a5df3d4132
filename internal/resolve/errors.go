package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conn-castle/shovel/internal/messages"
)

// ErrorKind classifies resolution failures.
type ErrorKind string

const (
	KindCycle    ErrorKind = "cycle"
	KindConflict ErrorKind = "conflict"
	KindNotFound ErrorKind = "not found"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrCycle    = errors.New("dependency cycle")
	ErrConflict = errors.New("dependency conflict")
	ErrNotFound = errors.New("package not found")
)

// Requirement is one constraint placed on a package together with the chain
// of packages that led to it. The chain ends with the constrained package.
type Requirement struct {
	Bucket     string
	Constraint string
	Chain      []string
}

func (r Requirement) String() string {
	constraint := r.Constraint
	if constraint == "" {
		constraint = "*"
	}
	if r.Bucket != "" {
		constraint = r.Bucket + "/" + constraint
	}
	return fmt.Sprintf(messages.ResolveRequirementFmt, constraint, formatChain(r.Chain))
}

// Error is a resolution failure. Chain holds the full package path for cycles
// and lookups; Requirements holds every competing constraint for conflicts.
type Error struct {
	Kind         ErrorKind
	Package      string
	Chain        []string
	Requirements []Requirement
	Msg          string
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindCycle:
		return target == ErrCycle
	case KindConflict:
		return target == ErrConflict
	case KindNotFound:
		return target == ErrNotFound
	}
	return false
}

func cycleError(chain []string) *Error {
	return &Error{
		Kind:    KindCycle,
		Package: chain[0],
		Chain:   chain,
		Msg:     fmt.Sprintf(messages.ResolveCycleFmt, strings.Join(chain, " -> ")),
	}
}

func conflictError(name string, reqs []Requirement) *Error {
	parts := make([]string, 0, len(reqs))
	for _, r := range reqs {
		parts = append(parts, r.String())
	}
	return &Error{
		Kind:         KindConflict,
		Package:      name,
		Requirements: reqs,
		Msg:          fmt.Sprintf(messages.ResolveConflictFmt, name, strings.Join(parts, ", ")),
	}
}

func formatChain(chain []string) string {
	if len(chain) <= 1 {
		return messages.ResolveRequestedBy
	}
	return strings.Join(chain, " -> ")
}
