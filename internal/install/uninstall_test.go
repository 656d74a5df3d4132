//go:build unix

package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/testutil"
)

const uninstallFields = `"extract_dir": "tool-1.0", "bin": "tool", "env_add_path": "bin", "env_set": {"TOOL_HOME": "$dir"}, "persist": "data",
	"pre_uninstall": "echo \"$SHOVEL_CMD\" > \"$SHOVEL_PERSIST_DIR/pre.txt\"",
	"post_uninstall": "test -d \"$SHOVEL_DIR\" && echo post > \"$SHOVEL_PERSIST_DIR/post.txt\""`

func installTool(t *testing.T, h *harness, fields string) {
	t.Helper()
	m := h.publish("tool", "1.0", toolFiles("1.0"), fields)
	_, err := h.install(context.Background(), step(m))
	require.NoError(t, err)
}

func TestUninstallRemovesOwnedSideEffects(t *testing.T) {
	h := newHarness(t)
	installTool(t, h, uninstallFields)

	require.NoError(t, h.engine.Uninstall(context.Background(), "tool", UninstallOptions{}))

	assert.Equal(t, []State{StateUninstalling, StateRemoved}, h.log.states("tool")[7:])
	_, ok, err := h.engine.Records().Get("tool")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoDirExists(t, h.appDir("tool"))
	assert.NoFileExists(t, filepath.Join(h.paths.Shims, "tool"))
	env := h.activationEnv()
	assert.Empty(t, env.Path)
	assert.Empty(t, env.Vars)

	persist := filepath.Join(h.paths.Persist, "tool")
	assert.Equal(t, "uninstall", h.readFile(filepath.Join(persist, "pre.txt")))
	assert.Equal(t, "post", h.readFile(filepath.Join(persist, "post.txt")))
	assert.DirExists(t, filepath.Join(persist, "data"))
}

func TestUninstallKeepsActivationSharedWithOtherPackages(t *testing.T) {
	h := newHarness(t)
	installTool(t, h, `"extract_dir": "tool-1.0", "env_add_path": ["/opt/shared/bin", "bin"],
		"env_set": {"SHARED_HOME": "/opt/shared", "EDITOR_CMD": "tool"}`)
	other := h.publish("other", "2.0", []testutil.File{{Name: "other-2.0/other", Body: "#!/bin/sh\n", Mode: 0o755}},
		`"extract_dir": "other-2.0", "env_add_path": "/opt/shared/bin",
		"env_set": {"SHARED_HOME": "/opt/shared", "EDITOR_CMD": "other"}`)
	_, err := h.install(context.Background(), step(other))
	require.NoError(t, err)
	toolBin := h.appDir("tool", "current", "bin")

	require.NoError(t, h.engine.Uninstall(context.Background(), "other", UninstallOptions{}))
	env := h.activationEnv()
	assert.ElementsMatch(t, []string{"/opt/shared/bin", toolBin}, env.Path)
	assert.Equal(t, map[string]string{"SHARED_HOME": "/opt/shared", "EDITOR_CMD": "tool"}, env.Vars)

	require.NoError(t, h.engine.Uninstall(context.Background(), "tool", UninstallOptions{}))
	env = h.activationEnv()
	assert.Empty(t, env.Path)
	assert.Empty(t, env.Vars)
}

func TestUninstallPurgeRemovesPersistedData(t *testing.T) {
	h := newHarness(t)
	installTool(t, h, uninstallFields)

	require.NoError(t, h.engine.Uninstall(context.Background(), "tool", UninstallOptions{Purge: true}))
	assert.NoDirExists(t, filepath.Join(h.paths.Persist, "tool"))
}

func TestUninstallNotInstalled(t *testing.T) {
	h := newHarness(t)
	err := h.engine.Uninstall(context.Background(), "ghost", UninstallOptions{})
	require.ErrorIs(t, err, ErrNotInstalled)
	assert.Equal(t, "ghost is not installed", err.Error())
}

func TestUninstallHookFailureKeepsInstall(t *testing.T) {
	h := newHarness(t)
	installTool(t, h, `"extract_dir": "tool-1.0", "bin": "tool", "pre_uninstall": "exit 4"`)

	err := h.engine.Uninstall(context.Background(), "tool", UninstallOptions{})
	require.ErrorIs(t, err, ErrHook)
	assert.Equal(t, StateFailed, h.log.all[len(h.log.all)-1].To)

	rec, ok, err := h.engine.Records().Get("tool")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.0", rec.Version)
	assert.FileExists(t, filepath.Join(h.paths.Shims, "tool"))
	assert.DirExists(t, h.appDir("tool", "1.0"))
}

func TestUninstallPartialFailureKeepsRemainder(t *testing.T) {
	h := newHarness(t)
	installTool(t, h, `"extract_dir": "tool-1.0", "bin": "tool"`)

	rec, _, err := h.engine.Records().Get("tool")
	require.NoError(t, err)
	// A record pointing outside the apps directory is refused, and what was
	// already released is dropped from the rewritten record.
	outside := t.TempDir()
	rec.Dir = outside
	putRecord(t, h.engine.Records(), rec)

	err = h.engine.Uninstall(context.Background(), "tool", UninstallOptions{Force: true})
	require.ErrorIs(t, err, ErrPermission)
	assert.DirExists(t, outside)

	remaining, ok, err := h.engine.Records().Get("tool")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, outside, remaining.Dir)
	assert.Empty(t, remaining.Shims)
	assert.Empty(t, remaining.Current)
	assert.NoFileExists(t, filepath.Join(h.paths.Shims, "tool"))
}

func TestUninstallMissingSnapshotNeedsForce(t *testing.T) {
	h := newHarness(t)
	installTool(t, h, `"extract_dir": "tool-1.0", "bin": "tool", "pre_uninstall": "exit 9"`)
	require.NoError(t, os.Remove(h.appDir("tool", "1.0", manifestFile)))

	err := h.engine.Uninstall(context.Background(), "tool", UninstallOptions{})
	require.ErrorIs(t, err, ErrRecord)

	require.NoError(t, h.engine.Uninstall(context.Background(), "tool", UninstallOptions{Force: true}))
	assert.NoDirExists(t, h.appDir("tool"))
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	installTool(t, h, `"extract_dir": "tool-1.0"`)
	putRecord(t, h.engine.Records(), Record{Name: "gone", Version: "0.1", Bucket: "main"})

	newer, err := manifest.ParseNamed("tool", []byte(`{"version": "1.10", "url": "https://example.test/t.zip", "hash": "`+sha("x")+`"}`))
	require.NoError(t, err)
	statuses, err := h.engine.Status(mapSource{"tool": newer})
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, Status{Name: "gone", Installed: "0.1", Bucket: "main", Missing: true}, statuses[0])
	assert.Equal(t, Status{Name: "tool", Installed: "1.0", Latest: "1.10", Bucket: "main", Outdated: true}, statuses[1])
}
