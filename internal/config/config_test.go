package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSystem struct {
	files     map[string][]byte
	env       map[string]string
	configDir string
	readErr   error
}

func (f fakeSystem) ReadFile(name string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	data, ok := f.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (f fakeSystem) LookupEnv(key string) (string, bool) {
	value, ok := f.env[key]
	return value, ok
}

func (f fakeSystem) UserConfigDir() (string, error) {
	return f.configDir, nil
}

func TestParseAppliesValuesOverDefaults(t *testing.T) {
	data := []byte(`
root_dir = "/opt/shovel"
architecture = "arm64"

[install]
workers = 8
retries = 0
retry_backoff = "1s"

[hooks]
timeout = "10s"
interpreter = ["bash", "-c"]
`)
	cfg, err := Parse(data, "config.toml")
	require.NoError(t, err)
	assert.Equal(t, "/opt/shovel", cfg.RootDir)
	assert.Equal(t, "arm64", cfg.Architecture)
	assert.Equal(t, 8, cfg.Install.Workers)
	assert.Equal(t, 0, cfg.RetryCount())
	assert.Equal(t, time.Second, cfg.Install.RetryBackoff.Std())
	assert.Equal(t, 10*time.Second, cfg.Hooks.Timeout.Std())
	assert.Equal(t, []string{"bash", "-c"}, cfg.Hooks.Interpreter)
	assert.Equal(t, defaultFetchTimeout, cfg.Fetch.Timeout.Std())
	assert.Equal(t, BucketPolicyFirstMatch, cfg.Buckets.Policy)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("unknown_key = 1\n"), "config.toml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigValidation))
	assert.Contains(t, err.Error(), "unrecognized")
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"workers":      "[install]\nworkers = 0\n",
		"architecture": "architecture = \"sparc\"\n",
		"policy":       "[buckets]\npolicy = \"last-match\"\n",
		"interpreter":  "[hooks]\ninterpreter = []\n",
		"retries":      "[install]\nretries = -1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data), "config.toml")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfigValidation)
		})
	}
}

func TestParseSyntaxErrorIsNotValidation(t *testing.T) {
	_, err := Parse([]byte("root_dir = \n"), "config.toml")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigValidation))
}

func TestParseBadDuration(t *testing.T) {
	_, err := Parse([]byte("[fetch]\ntimeout = \"soon\"\n"), "config.toml")
	require.Error(t, err)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	sys := fakeSystem{env: map[string]string{EnvRoot: "/data/shovel"}, configDir: "/cfg"}
	cfg, err := LoadWithSystem(sys, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/data/shovel"), cfg.RootDir)
	assert.Equal(t, filepath.Join("/data/shovel", "cache"), cfg.CacheDir)
	assert.Equal(t, defaultWorkers, cfg.Install.Workers)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := "/cfg/shovel/config.toml"
	sys := fakeSystem{
		files: map[string][]byte{path: []byte("root_dir = \"/from/file\"\narchitecture = \"32bit\"\n")},
		env: map[string]string{
			EnvArch:  "64bit",
			EnvCache: "/tmp/cache",
		},
		configDir: "/cfg",
	}
	cfg, err := LoadWithSystem(sys, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/from/file"), cfg.RootDir)
	assert.Equal(t, "64bit", cfg.Architecture)
	assert.Equal(t, filepath.Clean("/tmp/cache"), cfg.CacheDir)
}

func TestLoadEnvOverrideIsValidated(t *testing.T) {
	sys := fakeSystem{env: map[string]string{EnvRoot: "/r", EnvArch: "mips"}, configDir: "/cfg"}
	_, err := LoadWithSystem(sys, "")
	require.ErrorIs(t, err, ErrConfigValidation)
}

func TestLoadReadError(t *testing.T) {
	sys := fakeSystem{readErr: errors.New("permission denied"), configDir: "/cfg"}
	_, err := LoadWithSystem(sys, "/cfg/config.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestLoadNilSystem(t *testing.T) {
	_, err := LoadWithSystem(nil, "")
	require.Error(t, err)
}

func TestDefaultConfigPathHonorsEnv(t *testing.T) {
	sys := fakeSystem{env: map[string]string{EnvConfig: "/etc/shovel.toml"}, configDir: "/cfg"}
	path, err := DefaultConfigPath(sys)
	require.NoError(t, err)
	assert.Equal(t, "/etc/shovel.toml", path)

	path, err = DefaultConfigPath(fakeSystem{configDir: "/cfg"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cfg", "shovel", "config.toml"), path)
}

func TestDefaultInterpreter(t *testing.T) {
	assert.Equal(t, []string{"sh", "-c"}, DefaultInterpreter("linux"))
	assert.Equal(t, "pwsh", DefaultInterpreter("windows")[0])
}

func TestPathsLayout(t *testing.T) {
	cfg := Config{RootDir: "/r", CacheDir: "/c"}
	paths := cfg.Paths()
	assert.Equal(t, filepath.Join("/r", "apps"), paths.Apps)
	assert.Equal(t, filepath.Join("/r", "shims"), paths.Shims)
	assert.Equal(t, filepath.Join("/r", "state", "records"), paths.Records)
	assert.Equal(t, filepath.Join("/r", "buckets", "registry.toml"), paths.BucketRegistry)
	assert.Equal(t, "/c", paths.Cache)

	assert.Equal(t, filepath.Join("/r", "cache"), DefaultPaths("/r", "").Cache)
}

func TestNoNetwork(t *testing.T) {
	assert.True(t, NoNetwork(fakeSystem{env: map[string]string{EnvNoNetwork: "1"}}))
	assert.False(t, NoNetwork(fakeSystem{}))
}
