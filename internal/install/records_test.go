package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/shovel/internal/resolve"
)

func putRecord(t *testing.T, s *RecordStore, rec Record) {
	t.Helper()
	unlock, err := s.Lock(context.Background(), rec.Name)
	require.NoError(t, err)
	defer unlock()
	require.NoError(t, s.put(rec))
}

func TestRecordStoreRoundTrip(t *testing.T) {
	s := NewRecordStore(filepath.Join(t.TempDir(), "records"), nil)

	_, ok, err := s.Get("jq")
	require.NoError(t, err)
	assert.False(t, ok)

	putRecord(t, s, Record{Name: "jq", Version: "1.7", Bucket: "main", Shims: []string{"/shims/jq"}})
	putRecord(t, s, Record{Name: "curl", Version: "8.0", Bucket: "extras"})

	rec, ok, err := s.Get("jq")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, recordSchema, rec.Schema)
	assert.Equal(t, []string{"/shims/jq"}, rec.Shims)

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "curl", all[0].Name)
	assert.Equal(t, "jq", all[1].Name)

	users, err := s.BucketUsers("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"jq"}, users)

	pkg, ok, err := s.Installed("curl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resolve.InstalledPackage{Name: "curl", Version: "8.0", Bucket: "extras"}, pkg)

	unlock, err := s.Lock(context.Background(), "jq")
	require.NoError(t, err)
	require.NoError(t, s.delete("jq"))
	require.NoError(t, s.delete("jq"))
	unlock()
	_, ok, err = s.Get("jq")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordStoreRejectsMismatchedName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jq.json"), []byte(`{"schema":1,"name":"yq","version":"1"}`), 0o644))
	s := NewRecordStore(dir, nil)
	_, _, err := s.Get("jq")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `names package "yq"`)
}

func TestRecordStoreListMissingDir(t *testing.T) {
	s := NewRecordStore(filepath.Join(t.TempDir(), "absent"), nil)
	all, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecordOwns(t *testing.T) {
	assert.False(t, Record{Name: "jq"}.Owns())
	assert.True(t, Record{Name: "jq", Shims: []string{"x"}}.Owns())
	assert.True(t, Record{Name: "jq", Env: map[string]string{"A": "b"}}.Owns())
}
