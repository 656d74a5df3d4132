package bucket

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/conn-castle/shovel/internal/filelock"
	"github.com/conn-castle/shovel/internal/fsutil"
	"github.com/conn-castle/shovel/internal/messages"
)

// Bucket is a registered registry mirror.
type Bucket struct {
	Name     string    `toml:"name"`
	Remote   string    `toml:"remote"`
	Revision string    `toml:"revision"`
	AddedAt  time.Time `toml:"added_at"`
	// Path is the local clone, derived from the store directory.
	Path string `toml:"-"`
}

type registryFile struct {
	Buckets []Bucket `toml:"bucket"`
}

func (r *registryFile) index(name string) int {
	for i, b := range r.Buckets {
		if b.Name == name {
			return i
		}
	}
	return -1
}

var (
	readFile        = os.ReadFile
	writeFileAtomic = fsutil.WriteFileAtomic
)

// loadRegistry reads the registry file. A missing file is an empty registry.
// Writers replace the file atomically, so reads need no lock.
func (s *Store) loadRegistry() (*registryFile, error) {
	data, err := readFile(s.registryPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &registryFile{}, nil
		}
		return nil, fmt.Errorf(messages.BucketRegistryReadFmt, s.registryPath, err)
	}
	var reg registryFile
	if err := toml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf(messages.BucketRegistryParseFmt, s.registryPath, err)
	}
	for i := range reg.Buckets {
		reg.Buckets[i].Path = s.bucketDir(reg.Buckets[i].Name)
	}
	return &reg, nil
}

// updateRegistry applies fn to the current registry and writes the result.
// Writers are serialized in-process by s.mu and across processes by a file lock.
func (s *Store) updateRegistry(ctx context.Context, fn func(*registryFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filelock.With(ctx, s.registryPath+".lock", func() error {
		reg, err := s.loadRegistry()
		if err != nil {
			return err
		}
		if err := fn(reg); err != nil {
			return err
		}
		data, err := toml.Marshal(reg)
		if err != nil {
			return fmt.Errorf(messages.BucketRegistryEncodeFmt, err)
		}
		if err := writeFileAtomic(s.registryPath, data, 0o644); err != nil {
			return fmt.Errorf(messages.BucketRegistryWriteFmt, s.registryPath, err)
		}
		return nil
	})
}
