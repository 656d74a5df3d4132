package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShimContent(t *testing.T) {
	s := shim{Package: "jq", Name: "jq", Target: "/apps/jq/current/jq", Args: []string{"--color", "it's"}}

	posix := string(s.content("linux"))
	assert.Equal(t, "#!/bin/sh\n# shovel-shim:jq\nexec '/apps/jq/current/jq' '--color' 'it'\\''s' \"$@\"\n", posix)
	assert.Equal(t, "jq", shimOwner([]byte(posix)))

	win := string(s.content("windows"))
	assert.Equal(t, "@rem shovel-shim:jq\r\n@\"/apps/jq/current/jq\" \"--color\" \"it's\" %*\r\n", win)
	assert.Equal(t, "jq", shimOwner([]byte(win)))

	assert.Equal(t, filepath.Join("shims", "jq.cmd"), shimPath("shims", "jq", "windows"))
	assert.Equal(t, filepath.Join("shims", "jq"), shimPath("shims", "jq", "darwin"))
}

func TestWriteShimIsIdempotent(t *testing.T) {
	sys := RealSystem{}
	path := filepath.Join(t.TempDir(), "jq")
	content := shim{Package: "jq", Name: "jq", Target: "/x"}.content("linux")

	prev, changed, err := writeShim(sys, path, "jq", content)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, prev.existed)

	_, changed, err = writeShim(sys, path, "jq", content)
	require.NoError(t, err)
	assert.False(t, changed)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestWriteShimRefusesOtherOwners(t *testing.T) {
	sys := RealSystem{}
	dir := t.TempDir()

	foreign := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(foreign, []byte("#!/bin/sh\necho mine\n"), 0o755))
	_, _, err := writeShim(sys, foreign, "jq", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not created by shovel")

	owned := filepath.Join(dir, "jq")
	_, _, err = writeShim(sys, owned, "jq", shim{Package: "jq", Target: "/x"}.content("linux"))
	require.NoError(t, err)
	_, _, err = writeShim(sys, owned, "gojq", shim{Package: "gojq", Target: "/y"}.content("linux"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to package jq")
}

func TestShimRestoreAndRemove(t *testing.T) {
	sys := RealSystem{}
	path := filepath.Join(t.TempDir(), "jq")
	v1 := shim{Package: "jq", Target: "/v1"}.content("linux")
	v2 := shim{Package: "jq", Target: "/v2"}.content("linux")

	_, _, err := writeShim(sys, path, "jq", v1)
	require.NoError(t, err)
	prev, changed, err := writeShim(sys, path, "jq", v2)
	require.NoError(t, err)
	require.True(t, changed)

	require.NoError(t, prev.restore(sys))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, v1, data)

	require.NoError(t, removeShim(sys, path, "other"))
	assert.FileExists(t, path)
	require.NoError(t, removeShim(sys, path, "jq"))
	assert.NoFileExists(t, path)
	require.NoError(t, removeShim(sys, path, "jq"))
}
