package install

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conn-castle/shovel/internal/filelock"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/resolve"
)

const (
	recordSchema = 1
	recordSuffix = ".json"
	lockSuffix   = ".lock"
)

// Record is the persisted fact that a package is installed, together with
// every side effect the install owns. Uninstall reverses exactly these.
type Record struct {
	Schema      int               `json:"schema"`
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Bucket      string            `json:"bucket,omitempty"`
	Arch        manifest.Arch     `json:"architecture"`
	InstalledAt time.Time         `json:"installed_at"`
	Operation   string            `json:"operation"`
	Dir         string            `json:"dir,omitempty"`
	Current     string            `json:"current,omitempty"`
	Manifest    string            `json:"manifest,omitempty"`
	Shims       []string          `json:"shims,omitempty"`
	Path        []string          `json:"path,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Persist     []string          `json:"persist,omitempty"`
}

// Owns reports whether r still owns any side effect on disk.
func (r Record) Owns() bool {
	return r.Dir != "" || r.Current != "" || len(r.Shims) > 0 || len(r.Path) > 0 || len(r.Env) > 0
}

// RecordStore keeps one JSON record per installed package. Writes are atomic
// renames, so readers never lock and never see a partial record. Writers to
// one package are serialized in-process and across processes through Lock.
type RecordStore struct {
	dir   string
	sys   System
	locks filelock.Keyed
}

// NewRecordStore returns a store rooted at dir.
func NewRecordStore(dir string, sys System) *RecordStore {
	if sys == nil {
		sys = RealSystem{}
	}
	return &RecordStore{dir: dir, sys: sys}
}

// Dir returns the store directory.
func (s *RecordStore) Dir() string {
	return s.dir
}

func (s *RecordStore) path(name string) string {
	return filepath.Join(s.dir, name+recordSuffix)
}

// Lock takes the writer lock for name and returns its release func.
func (s *RecordStore) Lock(ctx context.Context, name string) (func(), error) {
	release := s.locks.Lock(name)
	if err := s.sys.MkdirAll(s.dir, 0o755); err != nil {
		release()
		return nil, fmt.Errorf(messages.InstallRecordDirFmt, s.dir, err)
	}
	lock, err := filelock.Acquire(ctx, filepath.Join(s.dir, name+lockSuffix))
	if err != nil {
		release()
		return nil, err
	}
	return func() {
		_ = lock.Release()
		release()
	}, nil
}

// Get returns the record for name.
func (s *RecordStore) Get(name string) (Record, bool, error) {
	data, err := s.sys.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf(messages.InstallRecordReadFmt, name, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf(messages.InstallRecordDecodeFmt, name, err)
	}
	if rec.Name != name {
		return Record{}, false, fmt.Errorf(messages.InstallRecordNameFmt, s.path(name), rec.Name)
	}
	return rec, true, nil
}

// List returns every record sorted by name.
func (s *RecordStore) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(messages.InstallRecordListFmt, s.dir, err)
	}
	var records []Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordSuffix) || strings.HasPrefix(name, ".") {
			continue
		}
		rec, ok, err := s.Get(strings.TrimSuffix(name, recordSuffix))
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// put writes rec. The caller holds Lock(rec.Name).
func (s *RecordStore) put(rec Record) error {
	rec.Schema = recordSchema
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf(messages.InstallRecordEncodeFmt, rec.Name, err)
	}
	if err := s.sys.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf(messages.InstallRecordDirFmt, s.dir, err)
	}
	if err := s.sys.WriteFileAtomic(s.path(rec.Name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf(messages.InstallRecordWriteFmt, rec.Name, err)
	}
	return nil
}

// delete removes the record for name. The caller holds Lock(name).
func (s *RecordStore) delete(name string) error {
	if err := s.sys.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf(messages.InstallRecordRemoveFmt, name, err)
	}
	return nil
}

// Installed implements resolve.Installed.
func (s *RecordStore) Installed(name string) (resolve.InstalledPackage, bool, error) {
	rec, ok, err := s.Get(name)
	if err != nil || !ok {
		return resolve.InstalledPackage{}, false, err
	}
	return resolve.InstalledPackage{Name: rec.Name, Version: rec.Version, Bucket: rec.Bucket}, true, nil
}

// BucketUsers implements bucket.UsageChecker.
func (s *RecordStore) BucketUsers(bucket string) ([]string, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	var users []string
	for _, rec := range records {
		if rec.Bucket == bucket {
			users = append(users, rec.Name)
		}
	}
	return users, nil
}
