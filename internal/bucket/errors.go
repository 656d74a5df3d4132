package bucket

import (
	"errors"
	"fmt"

	"github.com/conn-castle/shovel/internal/messages"
)

// ErrorKind classifies registry failures.
type ErrorKind string

const (
	KindAlreadyExists ErrorKind = "already exists"
	KindUnreachable   ErrorKind = "unreachable"
	KindSyncFailed    ErrorKind = "sync failed"
	KindInUse         ErrorKind = "in use"
	KindNotFound      ErrorKind = "not found"
	KindInvalid       ErrorKind = "invalid"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrAlreadyExists = errors.New(string(KindAlreadyExists))
	ErrUnreachable   = errors.New(string(KindUnreachable))
	ErrSyncFailed    = errors.New(string(KindSyncFailed))
	ErrInUse         = errors.New(string(KindInUse))
	ErrNotFound      = errors.New(string(KindNotFound))
	ErrInvalid       = errors.New(string(KindInvalid))
)

var kindSentinels = map[ErrorKind]error{
	KindAlreadyExists: ErrAlreadyExists,
	KindUnreachable:   ErrUnreachable,
	KindSyncFailed:    ErrSyncFailed,
	KindInUse:         ErrInUse,
	KindNotFound:      ErrNotFound,
	KindInvalid:       ErrInvalid,
}

// Error is a registry failure naming the bucket involved.
type Error struct {
	Kind   ErrorKind
	Bucket string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var msg string
	if e.Bucket == "" {
		msg = fmt.Sprintf(messages.BucketAnyErrorFmt, e.Kind)
	} else {
		msg = fmt.Sprintf(messages.BucketErrorFmt, e.Bucket, e.Kind)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newError(kind ErrorKind, bucket string, err error, detailFormat string, args ...any) *Error {
	detail := ""
	if detailFormat != "" {
		detail = fmt.Sprintf(detailFormat, args...)
	}
	return &Error{Kind: kind, Bucket: bucket, Detail: detail, Err: err}
}
