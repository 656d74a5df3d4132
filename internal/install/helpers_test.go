//go:build unix

package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conn-castle/shovel/internal/bucket"
	"github.com/conn-castle/shovel/internal/config"
	"github.com/conn-castle/shovel/internal/envfile"
	"github.com/conn-castle/shovel/internal/fetch"
	"github.com/conn-castle/shovel/internal/hook"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/resolve"
	"github.com/conn-castle/shovel/internal/testutil"
)

// harness is an engine rooted in a temp dir whose artifacts are served from
// file:// URLs.
type harness struct {
	t      *testing.T
	paths  config.Paths
	served string
	log    *transitionLog
	engine *Engine
}

func newHarness(t *testing.T, tweak ...func(*Options)) *harness {
	t.Helper()
	root := t.TempDir()
	paths := config.DefaultPaths(filepath.Join(root, "shovel"), "")
	h := &harness{
		t:      t,
		paths:  paths,
		served: filepath.Join(root, "served"),
		log:    &transitionLog{},
	}
	opts := Options{
		Paths: paths,
		Fetcher: fetch.New(fetch.Options{
			Transport: fetch.NewHTTPTransport("shovel-test"),
			Cache:     fetch.NewCache(paths.Cache),
		}),
		Hooks:    hook.NewRunner(hook.Options{Interpreter: []string{"sh", "-c"}, Timeout: 30 * time.Second}),
		Arches:   []manifest.Arch{manifest.Arch64},
		Workers:  2,
		Observer: h.log,
		GOOS:     "linux",
		Now:      fixedNow,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	h.engine = New(opts)
	return h
}

// publish serves a zip of files and returns the manifest pointing at it.
// fields is extra JSON merged into the manifest object.
func (h *harness) publish(name string, version string, files []testutil.File, fields string) *manifest.Manifest {
	h.t.Helper()
	data := testutil.Zip(h.t, files)
	archive := filepath.Join(h.served, name+"-"+version+".zip")
	testutil.WriteFile(h.t, archive, data)
	return h.manifest(name, version, "file://"+archive, testutil.SHA256(data), fields)
}

func (h *harness) manifest(name string, version string, url string, hash string, fields string) *manifest.Manifest {
	h.t.Helper()
	doc := fmt.Sprintf(`{"version": %q, "url": %q, "hash": %q`, version, url, hash)
	if fields != "" {
		doc += ", " + fields
	}
	doc += "}"
	m, err := manifest.ParseNamed(name, []byte(doc))
	require.NoError(h.t, err)
	return m
}

func (h *harness) install(ctx context.Context, steps ...resolve.Step) (*Report, error) {
	h.t.Helper()
	for i := range steps {
		if steps[i].Action == "" {
			steps[i].Action = resolve.ActionInstall
		}
		if steps[i].Version == "" {
			steps[i].Version = steps[i].Manifest.Version
		}
	}
	return h.engine.Install(ctx, &resolve.Plan{Steps: steps})
}

func (h *harness) appDir(parts ...string) string {
	return filepath.Join(append([]string{h.paths.Apps}, parts...)...)
}

func (h *harness) activationEnv() *envfile.Env {
	h.t.Helper()
	data, err := os.ReadFile(h.paths.ActivationEnv)
	if os.IsNotExist(err) {
		return envfile.New()
	}
	require.NoError(h.t, err)
	env, err := envfile.Parse(string(data))
	require.NoError(h.t, err)
	return env
}

func (h *harness) readFile(path string) string {
	h.t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(h.t, err)
	return strings.TrimSpace(string(data))
}

func step(m *manifest.Manifest, deps ...string) resolve.Step {
	return resolve.Step{Name: m.Name, Bucket: "main", Manifest: m, Dependencies: deps}
}

func toolFiles(version string) []testutil.File {
	return []testutil.File{
		{Name: "tool-" + version + "/tool", Body: "#!/bin/sh\necho tool " + version + " \"$@\"\n", Mode: 0o755},
		{Name: "tool-" + version + "/bin/helper", Body: "#!/bin/sh\n", Mode: 0o755},
	}
}

// mapSource serves one manifest per package from bucket "main".
type mapSource map[string]*manifest.Manifest

func (s mapSource) Lookup(name string) ([]bucket.Match, error) {
	m, ok := s[name]
	if !ok {
		return nil, nil
	}
	return []bucket.Match{{Bucket: "main", Manifest: m}}, nil
}

func (s mapSource) Resolve(pkg string) (bucket.Match, error) {
	_, name, _ := strings.Cut(pkg, "/")
	if name == "" {
		name = pkg
	}
	m, ok := s[name]
	if !ok {
		return bucket.Match{}, &bucket.Error{Kind: bucket.KindNotFound, Detail: name}
	}
	return bucket.Match{Bucket: "main", Manifest: m}, nil
}

func sha(s string) string {
	return testutil.SHA256([]byte(s))
}
