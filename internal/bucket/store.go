// Package bucket manages local mirrors of manifest registries. Each bucket is
// a git clone pinned to a revision recorded in the registry file; manifests
// are read from the object database at that revision so a sync in progress
// never exposes a partially updated tree.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conn-castle/shovel/internal/filelock"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

const (
	manifestDir    = "bucket"
	manifestSuffix = ".json"
	registryName   = "registry.toml"
)

// UsageChecker reports installed packages that came from a bucket.
type UsageChecker interface {
	BucketUsers(bucket string) ([]string, error)
}

// Options configures a Store.
type Options struct {
	// Dir holds one clone per bucket.
	Dir string
	// RegistryPath defaults to Dir/registry.toml.
	RegistryPath string
	// Git defaults to GoGit.
	Git Git
	// Usage guards Remove. Nil means no bucket is ever in use.
	Usage  UsageChecker
	Logger *slog.Logger
	Now    func() time.Time
}

// Store is the sole mutator of bucket mirrors.
type Store struct {
	dir          string
	registryPath string
	git          Git
	usage        UsageChecker
	logger       *slog.Logger
	now          func() time.Time

	mu    sync.Mutex
	locks filelock.Keyed
}

// NewStore returns a store rooted at opts.Dir.
func NewStore(opts Options) *Store {
	s := &Store{
		dir:          opts.Dir,
		registryPath: opts.RegistryPath,
		git:          opts.Git,
		usage:        opts.Usage,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if s.registryPath == "" {
		s.registryPath = filepath.Join(s.dir, registryName)
	}
	if s.git == nil {
		s.git = GoGit{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Match is one manifest found for a package name.
type Match struct {
	Bucket   string
	Manifest *manifest.Manifest
}

// RemoveOptions controls Remove.
type RemoveOptions struct {
	// Force removes the bucket even when installed packages reference it.
	Force bool
}

// SyncResult describes one bucket sync.
type SyncResult struct {
	Bucket  string
	From    string
	To      string
	Changed bool
}

func (s *Store) bucketDir(name string) string {
	return filepath.Join(s.dir, name)
}

func writeKey(name string) string { return "tree:" + name }
func syncKey(name string) string { return "sync:" + name }

// Add clones remote as bucket name. An empty remote selects the well-known
// remote for name.
func (s *Store) Add(ctx context.Context, name string, remote string) (Bucket, error) {
	name = manifest.NormalizeName(name)
	if err := manifest.ValidateName(name); err != nil {
		return Bucket{}, newError(KindInvalid, name, err, "")
	}
	if name == registryName {
		return Bucket{}, newError(KindInvalid, name, nil, messages.BucketNameReservedFmt, name)
	}
	remote = strings.TrimSpace(remote)
	if remote == "" {
		known, ok := KnownRemote(name)
		if !ok {
			return Bucket{}, newError(KindInvalid, name, nil, messages.BucketRemoteRequiredFmt, name)
		}
		remote = known
	}

	release := s.locks.Lock(syncKey(name))
	defer release()

	reg, err := s.loadRegistry()
	if err != nil {
		return Bucket{}, err
	}
	if reg.index(name) >= 0 {
		return Bucket{}, newError(KindAlreadyExists, name, nil, "")
	}
	dest := s.bucketDir(name)
	if _, err := os.Stat(dest); err == nil {
		return Bucket{}, newError(KindAlreadyExists, name, nil, messages.BucketDirExistsFmt, dest)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Bucket{}, fmt.Errorf(messages.BucketCreateDirFmt, s.dir, err)
	}

	tmp, err := os.MkdirTemp(s.dir, ".clone-"+name+"-")
	if err != nil {
		return Bucket{}, fmt.Errorf(messages.BucketCreateDirFmt, s.dir, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	s.logger.Info("cloning bucket", "bucket", name, "remote", remote)
	revision, err := s.git.Clone(ctx, remote, tmp)
	if err != nil {
		return Bucket{}, newError(KindUnreachable, name, err, messages.BucketCloneFmt, remote)
	}
	if names, err := s.manifestNames(tmp, revision); err == nil && len(names) == 0 {
		s.logger.Warn("bucket has no manifests", "bucket", name, "remote", remote)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return Bucket{}, fmt.Errorf(messages.BucketMoveFmt, dest, err)
	}
	committed = true

	b := Bucket{Name: name, Remote: remote, Revision: revision, AddedAt: s.now().UTC(), Path: dest}
	err = s.updateRegistry(ctx, func(reg *registryFile) error {
		if reg.index(name) >= 0 {
			return newError(KindAlreadyExists, name, nil, "")
		}
		reg.Buckets = append(reg.Buckets, b)
		return nil
	})
	if err != nil {
		_ = os.RemoveAll(dest)
		return Bucket{}, err
	}
	s.logger.Info("added bucket", "bucket", name, "revision", revision)
	return b, nil
}

// Sync fast-forwards bucket name to its remote head. On any failure the
// pinned revision and worktree are left as they were.
func (s *Store) Sync(ctx context.Context, name string) (SyncResult, error) {
	name = manifest.NormalizeName(name)
	release := s.locks.Lock(syncKey(name))
	defer release()

	b, err := s.Get(name)
	if err != nil {
		return SyncResult{}, err
	}
	result := SyncResult{Bucket: name, From: b.Revision, To: b.Revision}

	remote, err := s.git.Fetch(ctx, b.Path)
	if err != nil {
		return result, newError(KindSyncFailed, name, err, messages.BucketFetchFmt, b.Remote)
	}
	if remote == b.Revision {
		s.logger.Debug("bucket up to date", "bucket", name, "revision", remote)
		return result, nil
	}
	ok, err := s.git.IsAncestor(b.Path, b.Revision, remote)
	if err != nil {
		return result, newError(KindSyncFailed, name, err, "")
	}
	if !ok {
		return result, newError(KindSyncFailed, name, nil, messages.BucketNotFastForwardFmt, short(remote), short(b.Revision))
	}

	unlock := s.locks.Lock(writeKey(name))
	defer unlock()
	if err := s.git.Checkout(b.Path, remote); err != nil {
		s.restore(b)
		return result, newError(KindSyncFailed, name, err, messages.BucketCheckoutFmt, short(remote))
	}
	err = s.updateRegistry(ctx, func(reg *registryFile) error {
		i := reg.index(name)
		if i < 0 {
			return newError(KindNotFound, name, nil, "")
		}
		reg.Buckets[i].Revision = remote
		return nil
	})
	if err != nil {
		s.restore(b)
		return result, newError(KindSyncFailed, name, err, "")
	}
	result.To = remote
	result.Changed = true
	s.logger.Info("synced bucket", "bucket", name, "from", short(b.Revision), "to", short(remote))
	return result, nil
}

func (s *Store) restore(b Bucket) {
	if err := s.git.Checkout(b.Path, b.Revision); err != nil {
		s.logger.Warn("restore bucket worktree failed", "bucket", b.Name, "revision", b.Revision, "err", err)
	}
}

// SyncAll syncs every bucket concurrently and joins the failures.
func (s *Store) SyncAll(ctx context.Context) ([]SyncResult, error) {
	buckets, err := s.List()
	if err != nil {
		return nil, err
	}
	results := make([]SyncResult, len(buckets))
	errs := make([]error, len(buckets))
	var g errgroup.Group
	for i, b := range buckets {
		g.Go(func() error {
			results[i], errs[i] = s.Sync(ctx, b.Name)
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// Remove deletes bucket name. Buckets with installed packages are refused
// unless opts.Force is set.
func (s *Store) Remove(ctx context.Context, name string, opts RemoveOptions) error {
	name = manifest.NormalizeName(name)
	release := s.locks.Lock(syncKey(name))
	defer release()

	b, err := s.Get(name)
	if err != nil {
		return err
	}
	if s.usage != nil && !opts.Force {
		users, err := s.usage.BucketUsers(name)
		if err != nil {
			return newError(KindInUse, name, err, messages.BucketUsageCheck)
		}
		if len(users) > 0 {
			return newError(KindInUse, name, nil, messages.BucketInstalledPackagesFmt, strings.Join(users, ", "))
		}
	}

	unlock := s.locks.Lock(writeKey(name))
	defer unlock()
	err = s.updateRegistry(ctx, func(reg *registryFile) error {
		i := reg.index(name)
		if i < 0 {
			return newError(KindNotFound, name, nil, "")
		}
		reg.Buckets = append(reg.Buckets[:i], reg.Buckets[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	tombstone := filepath.Join(s.dir, fmt.Sprintf(".removed-%s-%d", name, s.now().UnixNano()))
	if err := os.Rename(b.Path, tombstone); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(messages.BucketRemoveDirFmt, b.Path, err)
	}
	if err := os.RemoveAll(tombstone); err != nil {
		return fmt.Errorf(messages.BucketRemoveDirFmt, tombstone, err)
	}
	s.logger.Info("removed bucket", "bucket", name)
	return nil
}

// List returns registered buckets in the order they were added.
func (s *Store) List() ([]Bucket, error) {
	reg, err := s.loadRegistry()
	if err != nil {
		return nil, err
	}
	return reg.Buckets, nil
}

// Get returns bucket name.
func (s *Store) Get(name string) (Bucket, error) {
	name = manifest.NormalizeName(name)
	reg, err := s.loadRegistry()
	if err != nil {
		return Bucket{}, err
	}
	i := reg.index(name)
	if i < 0 {
		return Bucket{}, newError(KindNotFound, name, nil, "")
	}
	return reg.Buckets[i], nil
}

// Lookup returns every manifest for pkg across buckets in add order. A
// "bucket/name" query searches that bucket only. An unparseable manifest
// fails the lookup with the bucket named in the error.
func (s *Store) Lookup(pkg string) ([]Match, error) {
	bucketName, name := splitQualified(pkg)
	var buckets []Bucket
	if bucketName != "" {
		b, err := s.Get(bucketName)
		if err != nil {
			return nil, err
		}
		buckets = []Bucket{b}
	} else {
		all, err := s.List()
		if err != nil {
			return nil, err
		}
		buckets = all
	}

	var matches []Match
	for _, b := range buckets {
		m, err := s.readManifest(b, name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		matches = append(matches, Match{Bucket: b.Name, Manifest: m})
	}
	return matches, nil
}

// Resolve applies the first-match policy: the earliest-added bucket that
// carries pkg wins. Qualified names only consult their bucket.
func (s *Store) Resolve(pkg string) (Match, error) {
	matches, err := s.Lookup(pkg)
	if err != nil {
		return Match{}, err
	}
	if len(matches) == 0 {
		bucketName, name := splitQualified(pkg)
		return Match{}, newError(KindNotFound, bucketName, nil, messages.BucketPackageNotFoundFmt, name)
	}
	if len(matches) > 1 {
		s.logger.Debug("package found in several buckets", "package", pkg, "chosen", matches[0].Bucket, "candidates", len(matches))
	}
	return matches[0], nil
}

// Manifests returns the package names available in bucket name.
func (s *Store) Manifests(name string) ([]string, error) {
	b, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.RLock(writeKey(b.Name))
	defer unlock()
	return s.manifestNames(b.Path, b.Revision)
}

func (s *Store) readManifest(b Bucket, name string) (*manifest.Manifest, error) {
	unlock := s.locks.RLock(writeKey(b.Name))
	raw, file, err := s.readManifestBytes(b, name)
	unlock()
	if err != nil {
		return nil, err
	}
	m, err := manifest.ParseNamed(name, raw)
	if err != nil {
		return nil, fmt.Errorf(messages.BucketManifestFmt, b.Name+"/"+file, err)
	}
	return m, nil
}

func (s *Store) readManifestBytes(b Bucket, name string) ([]byte, string, error) {
	dir, err := s.layout(b.Path, b.Revision)
	if err != nil {
		return nil, "", err
	}
	file := path.Join(dir, name+manifestSuffix)
	raw, err := s.git.ReadFile(b.Path, b.Revision, file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, file, err
		}
		return nil, file, fmt.Errorf(messages.BucketManifestReadFmt, b.Name, file, err)
	}
	return raw, file, nil
}

// RawManifest returns the manifest bytes for pkg from its resolved bucket.
func (s *Store) RawManifest(pkg string) (string, []byte, error) {
	match, err := s.Resolve(pkg)
	if err != nil {
		return "", nil, err
	}
	b, err := s.Get(match.Bucket)
	if err != nil {
		return "", nil, err
	}
	unlock := s.locks.RLock(writeKey(b.Name))
	defer unlock()
	raw, _, err := s.readManifestBytes(b, match.Manifest.Name)
	return b.Name, raw, err
}

// layout returns the directory that holds manifests: bucket/ when present,
// otherwise the repository root.
func (s *Store) layout(dir string, revision string) (string, error) {
	if _, err := s.git.ListFiles(dir, revision, manifestDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return manifestDir, nil
}

func (s *Store) manifestNames(dir string, revision string) ([]string, error) {
	sub, err := s.layout(dir, revision)
	if err != nil {
		return nil, err
	}
	files, err := s.git.ListFiles(dir, revision, sub)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, f := range files {
		if strings.HasSuffix(f, manifestSuffix) {
			names = append(names, strings.TrimSuffix(f, manifestSuffix))
		}
	}
	return names, nil
}

func splitQualified(pkg string) (string, string) {
	pkg = manifest.NormalizeName(pkg)
	if bucketName, name, ok := strings.Cut(pkg, "/"); ok {
		return bucketName, name
	}
	return "", pkg
}

func short(revision string) string {
	if len(revision) > 12 {
		return revision[:12]
	}
	return revision
}
