package hook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conn-castle/shovel/internal/messages"
)

// ErrorKind classifies hook failures.
type ErrorKind string

const (
	// KindFailed is a script that ran and exited non-zero.
	KindFailed ErrorKind = "failed"
	// KindTimeout is a script killed after exceeding its time limit.
	KindTimeout ErrorKind = "timeout"
	// KindStart is an interpreter that could not be started.
	KindStart ErrorKind = "start"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrFailed  = errors.New("hook failed")
	ErrTimeout = errors.New("hook timed out")
	ErrStart   = errors.New("hook did not start")
)

// Error is a failed hook run. Output holds whatever the script printed before
// it failed.
type Error struct {
	Kind     ErrorKind
	Hook     string
	ExitCode int
	Output   string
	Timeout  time.Duration
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf(messages.HookTimeoutFmt, e.Hook, e.Timeout)
	case KindStart:
		return fmt.Sprintf(messages.HookStartFmt, e.Hook, e.Err)
	}
	return fmt.Sprintf(messages.HookFailedFmt, e.Hook, e.ExitCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrFailed, ErrTimeout and ErrStart.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrFailed:
		return e.Kind == KindFailed
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrStart:
		return e.Kind == KindStart
	}
	return false
}

// IsTimeout reports whether err is a hook that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
