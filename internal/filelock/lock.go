// Package filelock provides cross-process advisory file locks and in-process
// per-key locks. Both are used together so that one writer per key is active
// across goroutines and across shovel processes.
package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/conn-castle/shovel/internal/messages"
)

var (
	tryLockFn   = tryLock
	unlockFn    = unlock
	lockSleep   = time.Sleep
	lockTimeNow = time.Now
)

var (
	lockWaitTimeout = 30 * time.Second
	lockPollEvery   = 100 * time.Millisecond
)

// Lock is a held advisory lock on a file.
type Lock struct {
	file *os.File
}

// With acquires the lock at path, runs fn, and releases the lock.
func With(ctx context.Context, path string, fn func() error) error {
	lock, err := Acquire(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()
	return fn()
}

// Acquire opens or creates path and acquires an exclusive lock on it, polling
// until the lock is free, ctx is done, or the wait timeout elapses.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf(messages.LockOpenFmt, path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf(messages.LockOpenFmt, path, err)
	}
	deadline := lockTimeNow().Add(lockWaitTimeout)
	for {
		locked, err := tryLockFn(file)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf(messages.LockAcquireFmt, path, err)
		}
		if locked {
			return &Lock{file: file}, nil
		}
		if err := ctx.Err(); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf(messages.LockAcquireFmt, path, err)
		}
		if lockTimeNow().After(deadline) {
			_ = file.Close()
			return nil, fmt.Errorf(messages.LockAcquireFmt, path, fmt.Errorf(messages.LockTimeoutFmt, lockWaitTimeout))
		}
		lockSleep(lockPollEvery)
	}
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := unlockFn(l.file); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}
