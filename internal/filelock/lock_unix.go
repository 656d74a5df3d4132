//go:build !windows

package filelock

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var flockFn = unix.Flock

// tryLock attempts a non-blocking exclusive flock. It reports false when the
// lock is held elsewhere.
func tryLock(file *os.File) (bool, error) {
	err := flockFn(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
		return false, nil
	}
	return false, err
}

func unlock(file *os.File) error {
	return flockFn(int(file.Fd()), unix.LOCK_UN)
}
