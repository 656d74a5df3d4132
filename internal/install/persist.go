package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conn-castle/shovel/internal/fsutil"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

// persistLink makes entry inside appDir a link into persistDir so the data
// survives upgrades. The first install seeds the persisted copy from the
// package's own file when it ships one. It returns the persisted path and
// whether this call created it.
func persistLink(sys System, appDir string, persistDir string, entry manifest.PersistEntry) (stored string, created bool, err error) {
	source, err := fsutil.SafeJoin(appDir, entry.Source)
	if err != nil {
		return "", false, err
	}
	stored, err = fsutil.SafeJoin(persistDir, entry.Target)
	if err != nil {
		return "", false, err
	}
	if err := sys.MkdirAll(filepath.Dir(stored), 0o755); err != nil {
		return stored, false, fmt.Errorf(messages.InstallCreateDirFmt, filepath.Dir(stored), err)
	}

	_, storedErr := sys.Lstat(stored)
	switch {
	case storedErr == nil:
		if err := sys.RemoveAll(source); err != nil {
			return stored, false, fmt.Errorf(messages.InstallRemoveFmt, source, err)
		}
	case errors.Is(storedErr, os.ErrNotExist):
		created = true
		if _, err := sys.Lstat(source); err == nil {
			if err := sys.Rename(source, stored); err != nil {
				return stored, false, fmt.Errorf(messages.InstallMoveFmt, source, stored, err)
			}
		} else if err := sys.MkdirAll(stored, 0o755); err != nil {
			return stored, false, fmt.Errorf(messages.InstallCreateDirFmt, stored, err)
		}
	default:
		return stored, false, fmt.Errorf(messages.InstallStatFmt, stored, storedErr)
	}

	if err := sys.MkdirAll(filepath.Dir(source), 0o755); err != nil {
		return stored, created, fmt.Errorf(messages.InstallCreateDirFmt, filepath.Dir(source), err)
	}
	if err := sys.Symlink(stored, source); err != nil {
		return stored, created, fmt.Errorf(messages.InstallLinkFmt, source, stored, err)
	}
	return stored, created, nil
}
