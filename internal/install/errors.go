package install

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/conn-castle/shovel/internal/fetch"
	"github.com/conn-castle/shovel/internal/hook"
	"github.com/conn-castle/shovel/internal/messages"
)

// ErrorKind classifies installation failures.
type ErrorKind string

const (
	KindFetch      ErrorKind = "fetch"
	KindVerify     ErrorKind = "verify"
	KindTimeout    ErrorKind = "timeout"
	KindExtract    ErrorKind = "extract"
	KindLink       ErrorKind = "link"
	KindHook       ErrorKind = "hook"
	KindPermission ErrorKind = "permission"
	KindRecord     ErrorKind = "record"
	KindCanceled   ErrorKind = "canceled"
	// KindDependency marks a package skipped because a plan dependency failed.
	KindDependency   ErrorKind = "dependency"
	KindNotInstalled ErrorKind = "not installed"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrFetch        = errors.New("fetch failed")
	ErrVerify       = errors.New("verification failed")
	ErrTimeout      = errors.New("timed out")
	ErrExtract      = errors.New("extraction failed")
	ErrLink         = errors.New("linking failed")
	ErrHook         = errors.New("hook failed")
	ErrPermission   = errors.New("permission denied")
	ErrRecord       = errors.New("install record failed")
	ErrCanceled     = errors.New("canceled")
	ErrDependency   = errors.New("dependency failed")
	ErrNotInstalled = errors.New("not installed")
)

var kindSentinels = map[ErrorKind]error{
	KindFetch:        ErrFetch,
	KindVerify:       ErrVerify,
	KindTimeout:      ErrTimeout,
	KindExtract:      ErrExtract,
	KindLink:         ErrLink,
	KindHook:         ErrHook,
	KindPermission:   ErrPermission,
	KindRecord:       ErrRecord,
	KindCanceled:     ErrCanceled,
	KindDependency:   ErrDependency,
	KindNotInstalled: ErrNotInstalled,
}

// Error is a failed install or uninstall of Package. State is where the
// package was when it failed.
type Error struct {
	Kind    ErrorKind
	Package string
	State   State
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindNotInstalled {
		return fmt.Sprintf(messages.InstallNotInstalledFmt, e.Package)
	}
	return fmt.Sprintf(messages.InstallErrorFmt, e.Package, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// newError wraps err. Whatever stage produced them, filesystem permission
// failures are reported as KindPermission, hash mismatches as KindVerify and
// expired downloads or hooks as KindTimeout. Cancellation keeps its kind.
func newError(kind ErrorKind, pkg string, state State, err error) *Error {
	var ierr *Error
	if errors.As(err, &ierr) && ierr.Package == pkg {
		return ierr
	}
	if kind != KindCanceled {
		switch {
		case errors.Is(err, fs.ErrPermission):
			kind = KindPermission
		case errors.Is(err, fetch.ErrHashMismatch):
			kind = KindVerify
		case fetch.IsTimeout(err) || hook.IsTimeout(err):
			kind = KindTimeout
		}
	}
	return &Error{Kind: kind, Package: pkg, State: state, Err: err}
}
