package bucket

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoGitReadsAtRevision(t *testing.T) {
	remote := newRemote(t)
	first := remote.commit(map[string]string{"bucket/foo.json": manifestJSON("1.0")})
	remote.commit(map[string]string{"bucket/foo.json": manifestJSON("2.0"), "bucket/bar.json": manifestJSON("1.0")})
	g := GoGit{}

	data, err := g.ReadFile(remote.dir, first, "bucket/foo.json")
	require.NoError(t, err)
	assert.Equal(t, manifestJSON("1.0"), string(data))

	names, err := g.ListFiles(remote.dir, first, "bucket")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo.json"}, names)
}

func TestGoGitMissingPathsWrapNotExist(t *testing.T) {
	remote := newRemote(t)
	rev := remote.commit(map[string]string{"bucket/foo.json": manifestJSON("1.0")})
	g := GoGit{}

	_, err := g.ReadFile(remote.dir, rev, "bucket/gone.json")
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "file bucket/gone.json: file does not exist", err.Error())

	_, err = g.ListFiles(remote.dir, rev, "nope")
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "directory nope: file does not exist", err.Error())
}
