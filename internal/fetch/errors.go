package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/conn-castle/shovel/internal/config"
	"github.com/conn-castle/shovel/internal/messages"
)

// ErrorKind classifies fetch and verification failures.
type ErrorKind string

const (
	// KindUnreachable is a network or server failure worth retrying.
	KindUnreachable ErrorKind = "unreachable"
	// KindTimeout is a download that exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindStatus is an HTTP status that retrying will not fix.
	KindStatus       ErrorKind = "status"
	KindTooLarge     ErrorKind = "too large"
	KindHashMismatch ErrorKind = "hash mismatch"
	KindOffline      ErrorKind = "offline"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrUnreachable  = errors.New("unreachable")
	ErrTimeout      = errors.New("timeout")
	ErrHashMismatch = errors.New("hash mismatch")
)

// Error is a failed download or verification of URL.
type Error struct {
	Kind     ErrorKind
	URL      string
	Status   string
	Expected string
	Actual   string
	Limit    int64
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf(messages.FetchTimeoutFmt, e.URL)
	case KindStatus:
		return fmt.Sprintf(messages.FetchStatusFmt, e.URL, e.Status)
	case KindTooLarge:
		return fmt.Sprintf(messages.FetchTooLargeFmt, e.URL, e.Limit)
	case KindHashMismatch:
		return fmt.Sprintf(messages.FetchHashMismatchFmt, e.URL, e.Expected, e.Actual)
	case KindOffline:
		return fmt.Sprintf(messages.FetchOfflineFmt, e.URL, e.Expected, config.EnvNoNetwork)
	}
	return fmt.Sprintf(messages.FetchUnreachableFmt, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrUnreachable, ErrTimeout and ErrHashMismatch.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrHashMismatch:
		return e.Kind == KindHashMismatch
	}
	return false
}

// Retryable reports whether a caller may retry the operation that produced
// err.
func Retryable(err error) bool {
	var ferr *Error
	if !errors.As(err, &ferr) {
		return false
	}
	return ferr.Kind == KindUnreachable || ferr.Kind == KindTimeout
}

// IsTimeout reports whether err is a download that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// classify wraps a transport error. Cancellation is returned unchanged so it
// is never retried.
func classify(url string, err error) error {
	if err == nil {
		return nil
	}
	var ferr *Error
	if errors.As(err, &ferr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeoutError(err) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return &Error{Kind: KindUnreachable, URL: url, Err: err}
}

// isTimeoutError reports whether err is a network timeout.
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
