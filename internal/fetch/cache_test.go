package fetch

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/shovel/internal/manifest"
)

func sha256Of(t *testing.T, data string) manifest.Hash {
	t.Helper()
	sum := sha256.Sum256([]byte(data))
	h, err := manifest.ParseHash(hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	return h
}

func TestCacheInsertVerifiesBeforeCommit(t *testing.T) {
	cache := NewCache(t.TempDir())
	h := sha256Of(t, "payload")

	entry, err := cache.Insert(context.Background(), h, "test", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache.Dir(), "sha256", h.Hex), entry.Path)
	assert.Equal(t, int64(7), entry.Size)
	assert.True(t, cache.Has(h))
	require.NoError(t, cache.Verify(h))

	f, err := cache.Open(h)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCacheInsertRejectsMismatch(t *testing.T) {
	cache := NewCache(t.TempDir())
	h := sha256Of(t, "expected")

	_, err := cache.Insert(context.Background(), h, "https://example.test/a.zip", strings.NewReader("tampered"))
	require.ErrorIs(t, err, ErrHashMismatch)
	assert.Contains(t, err.Error(), "https://example.test/a.zip")
	assert.Contains(t, err.Error(), h.String())
	assert.False(t, cache.Has(h))

	files, err := os.ReadDir(filepath.Join(cache.Dir(), "sha256"))
	require.NoError(t, err)
	for _, file := range files {
		assert.NotContains(t, file.Name(), ".tmp-", "temp file left behind")
	}
}

func TestCacheInsertReadFailureLeavesNoEntry(t *testing.T) {
	cache := NewCache(t.TempDir())
	h := sha256Of(t, "data")
	_, err := cache.Insert(context.Background(), h, "test", &failingReader{err: errors.New("connection reset")})
	require.Error(t, err)
	assert.False(t, cache.Has(h))
}

func TestCacheInsertRenameFailure(t *testing.T) {
	orig := osRename
	t.Cleanup(func() { osRename = orig })
	osRename = func(string, string) error { return errors.New("cross-device") }

	cache := NewCache(t.TempDir())
	h := sha256Of(t, "data")
	_, err := cache.Insert(context.Background(), h, "test", strings.NewReader("data"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cross-device")
	assert.False(t, cache.Has(h))
}

func TestCacheVerifyDetectsCorruption(t *testing.T) {
	cache := NewCache(t.TempDir())
	h := sha256Of(t, "data")
	_, err := cache.Insert(context.Background(), h, "test", strings.NewReader("data"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cache.Path(h), []byte("rot"), 0o644))

	err = cache.Verify(h)
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestCacheListRemoveClear(t *testing.T) {
	cache := NewCache(t.TempDir())
	a := sha256Of(t, "a")
	sum := sha512.Sum512([]byte("b"))
	b, err := manifest.ParseHash("sha512:" + hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	ctx := context.Background()
	_, err = cache.Insert(ctx, a, "test", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = cache.Insert(ctx, b, "test", strings.NewReader("b"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cache.Dir(), "sha256", "not-a-hash"), []byte("x"), 0o644))

	entries, err := cache.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, a, entries[0].Hash)
	assert.Equal(t, b, entries[1].Hash)

	require.NoError(t, cache.Remove(a))
	require.NoError(t, cache.Remove(a), "removing a missing entry is fine")
	assert.False(t, cache.Has(a))
	assert.NoFileExists(t, cache.Path(a))
	assert.FileExists(t, cache.Path(a)+".lock", "the lock file outlives the entry")

	n, err := cache.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	entries, err = cache.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCacheListMissingDir(t *testing.T) {
	entries, err := NewCache(filepath.Join(t.TempDir(), "absent")).List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
