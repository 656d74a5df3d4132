package config

import "path/filepath"

// Paths holds resolved locations under the shovel root.
type Paths struct {
	Root             string
	Apps             string
	Staging          string
	Shims            string
	Persist          string
	Buckets          string
	BucketRegistry   string
	State            string
	Records          string
	Cache            string
	ActivationEnv    string
	ActivationScript string
	Metrics          string
}

// DefaultPaths returns the layout for a root and cache directory.
func DefaultPaths(root string, cache string) Paths {
	if cache == "" {
		cache = filepath.Join(root, "cache")
	}
	state := filepath.Join(root, "state")
	return Paths{
		Root:             root,
		Apps:             filepath.Join(root, "apps"),
		Staging:          filepath.Join(root, "apps", ".staging"),
		Shims:            filepath.Join(root, "shims"),
		Persist:          filepath.Join(root, "persist"),
		Buckets:          filepath.Join(root, "buckets"),
		BucketRegistry:   filepath.Join(root, "buckets", "registry.toml"),
		State:            state,
		Records:          filepath.Join(state, "records"),
		Cache:            cache,
		ActivationEnv:    filepath.Join(state, "activation.env"),
		ActivationScript: filepath.Join(state, "activate.sh"),
		Metrics:          filepath.Join(state, "metrics.prom"),
	}
}

// Paths returns the resolved layout for c.
func (c *Config) Paths() Paths {
	return DefaultPaths(c.RootDir, c.CacheDir)
}
