package fetch

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conn-castle/shovel/internal/filelock"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

var (
	osCreateTemp = os.CreateTemp
	osRename     = os.Rename
)

// Cache is content-addressed artifact storage laid out as <dir>/<algo>/<hex>.
// An entry exists only after its bytes were verified against its key.
type Cache struct {
	dir   string
	locks filelock.Keyed
}

// Entry describes one cached artifact.
type Entry struct {
	Hash    manifest.Hash
	Path    string
	Size    int64
	ModTime time.Time
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns where the entry for h lives.
func (c *Cache) Path(h manifest.Hash) string {
	return filepath.Join(c.dir, string(h.Algorithm), h.Hex)
}

// Has reports whether an entry for h exists.
func (c *Cache) Has(h manifest.Hash) bool {
	info, err := os.Stat(c.Path(h))
	return err == nil && info.Mode().IsRegular()
}

// Open opens the entry for h for reading.
func (c *Cache) Open(h manifest.Hash) (*os.File, error) {
	unlock := c.locks.RLock(h.String())
	defer unlock()
	f, err := os.Open(c.Path(h))
	if err != nil {
		return nil, fmt.Errorf(messages.CacheOpenFmt, h, err)
	}
	return f, nil
}

// Verify rehashes the entry for h.
func (c *Cache) Verify(h manifest.Hash) error {
	f, err := c.Open(h)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	hasher := h.Algorithm.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return fmt.Errorf(messages.CacheHashFmt, h, err)
	}
	if !h.Matches(hasher.Sum(nil)) {
		return &Error{Kind: KindHashMismatch, URL: c.Path(h), Expected: h.String(), Actual: sumString(h.Algorithm, hasher), Err: errors.New(messages.CacheEntryCorrupt)}
	}
	return nil
}

// Insert streams r into the entry for h. The bytes are hashed on the way in
// and the entry is committed only when the digest matches; on any failure no
// entry is created. Writers to one key are serialized in-process and across
// processes. source names the origin in errors.
func (c *Cache) Insert(ctx context.Context, h manifest.Hash, source string, r io.Reader) (Entry, error) {
	unlock := c.locks.Lock(h.String())
	defer unlock()

	dest := c.Path(h)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Entry{}, fmt.Errorf(messages.CacheCreateDirFmt, dir, err)
	}

	var entry Entry
	err := filelock.With(ctx, dest+".lock", func() error {
		tmp, err := osCreateTemp(dir, "."+h.Hex+".tmp-*")
		if err != nil {
			return fmt.Errorf(messages.CacheCreateTempFmt, err)
		}
		tmpName := tmp.Name()
		committed := false
		defer func() {
			if !committed {
				_ = os.Remove(tmpName)
			}
		}()

		hasher := h.Algorithm.New()
		n, err := io.Copy(io.MultiWriter(tmp, hasher), r)
		if err != nil {
			_ = tmp.Close()
			return err
		}
		if !h.Matches(hasher.Sum(nil)) {
			_ = tmp.Close()
			return &Error{Kind: KindHashMismatch, URL: source, Expected: h.String(), Actual: sumString(h.Algorithm, hasher)}
		}
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			return fmt.Errorf(messages.CacheSyncFmt, h, err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf(messages.CacheCloseFmt, h, err)
		}
		if err := osRename(tmpName, dest); err != nil {
			return fmt.Errorf(messages.CacheCommitFmt, h, err)
		}
		committed = true
		entry = Entry{Hash: h, Path: dest, Size: n, ModTime: time.Now()}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Remove deletes the entry for h. Removing a missing entry is not an error.
// The key's lock file stays: a writer in another process may hold it, and a
// new file at that path would not exclude it.
func (c *Cache) Remove(h manifest.Hash) error {
	unlock := c.locks.Lock(h.String())
	defer unlock()
	if err := os.Remove(c.Path(h)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf(messages.CacheRemoveFmt, h, err)
	}
	return nil
}

// List returns every entry sorted by key.
func (c *Cache) List() ([]Entry, error) {
	var entries []Entry
	algos, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(messages.CacheListFmt, c.dir, err)
	}
	for _, algo := range algos {
		if !algo.IsDir() {
			continue
		}
		dir := filepath.Join(c.dir, algo.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf(messages.CacheListFmt, dir, err)
		}
		for _, file := range files {
			name := file.Name()
			if !file.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".lock") {
				continue
			}
			h, err := manifest.ParseHash(algo.Name() + ":" + name)
			if err != nil {
				continue
			}
			info, err := file.Info()
			if err != nil {
				return nil, fmt.Errorf(messages.CacheListFmt, dir, err)
			}
			entries = append(entries, Entry{Hash: h, Path: filepath.Join(dir, name), Size: info.Size(), ModTime: info.ModTime()})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Hash.String() < entries[j].Hash.String()
	})
	return entries, nil
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	entries, err := c.List()
	if err != nil {
		return 0, err
	}
	for i, entry := range entries {
		if err := c.Remove(entry.Hash); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

func sumString(algo manifest.Algorithm, hasher hash.Hash) string {
	return fmt.Sprintf("%s:%x", algo, hasher.Sum(nil))
}
