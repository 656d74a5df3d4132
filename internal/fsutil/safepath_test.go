package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeJoin(t *testing.T) {
	base := filepath.Join(t.TempDir(), "root")

	got, err := SafeJoin(base, "bin/tool")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "bin", "tool"), got)

	got, err = SafeJoin(base, "a/../b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "b"), got)

	got, err = SafeJoin(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, got)

	for _, bad := range []string{"../escape", "a/../../escape", "/etc/passwd"} {
		_, err := SafeJoin(base, bad)
		assert.Error(t, err, bad)
	}
}

func TestIsWithin(t *testing.T) {
	assert.True(t, IsWithin("/a/b", "/a/b"))
	assert.True(t, IsWithin("/a/b", "/a/b/c"))
	assert.False(t, IsWithin("/a/b", "/a/bc"))
	assert.False(t, IsWithin("/a/b", "/a"))
}
