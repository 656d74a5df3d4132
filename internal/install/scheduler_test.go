//go:build unix

package install

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/shovel/internal/testutil"
)

func TestInstallScriptsSeeDependencyShims(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Workers = 4 })
	libShim := filepath.Join(h.paths.Shims, "lib")
	lib := h.publish("lib", "1.0", []testutil.File{{Name: "lib", Body: "#!/bin/sh\necho lib\n", Mode: 0o755}},
		`"bin": "lib", "pre_install": "sleep 1"`)
	check := fmt.Sprintf("test -x '%s' || exit 7", libShim)
	app := h.publish("app", "1.0", []testutil.File{{Name: "app", Body: "#!/bin/sh\n", Mode: 0o755}},
		fmt.Sprintf(`"depends": "lib", "bin": "app", "pre_install": %q, "installer": {"script": %q}`, check, check))

	report, err := h.install(context.Background(), step(lib), step(app, "lib"))
	require.NoError(t, err)
	for _, res := range report.Results {
		assert.Equal(t, StateInstalled, res.State, res.Name)
	}
	assert.FileExists(t, libShim)
}

func TestInstallFailedDependencySkipsScripts(t *testing.T) {
	h := newHarness(t)
	marker := filepath.Join(t.TempDir(), "ran")
	lib := h.manifest("lib", "1.0", "file://"+filepath.Join(h.served, "missing.zip"), testutil.SHA256(nil), "")
	app := h.publish("app", "1.0", []testutil.File{{Name: "app", Body: "#!/bin/sh\n", Mode: 0o755}},
		fmt.Sprintf(`"depends": "lib", "pre_install": "touch '%s'"`, marker))

	report, err := h.install(context.Background(), step(lib), step(app, "lib"))
	require.Error(t, err)
	require.Len(t, report.Results, 2)
	assert.ErrorIs(t, report.Results[1].Err, ErrDependency)
	assert.NoFileExists(t, marker)
	assert.NoDirExists(t, h.appDir("app"))
}
