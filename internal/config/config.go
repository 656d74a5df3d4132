// Package config loads and validates shovel's TOML configuration.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config is the decoded shovel configuration.
type Config struct {
	RootDir      string        `toml:"root_dir"`
	CacheDir     string        `toml:"cache_dir"`
	Architecture string        `toml:"architecture"`
	Install      InstallConfig `toml:"install"`
	Fetch        FetchConfig   `toml:"fetch"`
	Hooks        HooksConfig   `toml:"hooks"`
	Buckets      BucketsConfig `toml:"buckets"`
}

// InstallConfig controls the installation engine's scheduler and retry policy.
type InstallConfig struct {
	Workers      int      `toml:"workers"`
	Retries      *int     `toml:"retries"`
	RetryBackoff Duration `toml:"retry_backoff"`
}

// FetchConfig controls artifact downloads.
type FetchConfig struct {
	Timeout   Duration `toml:"timeout"`
	MaxBytes  int64    `toml:"max_bytes"`
	UserAgent string   `toml:"user_agent"`
}

// HooksConfig controls manifest script execution.
type HooksConfig struct {
	Timeout     Duration `toml:"timeout"`
	Interpreter []string `toml:"interpreter"`
}

// BucketsConfig controls bucket lookup.
type BucketsConfig struct {
	Policy string `toml:"policy"`
}

// BucketPolicyFirstMatch resolves an unqualified name to the first bucket, in
// add order, that carries it.
const BucketPolicyFirstMatch = "first-match"

// Duration is a time.Duration decoded from a TOML string such as "500ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const (
	defaultWorkers      = 4
	defaultRetries      = 2
	defaultRetryBackoff = 500 * time.Millisecond
	defaultFetchTimeout = 5 * time.Minute
	defaultMaxBytes     = int64(2 << 30)
	defaultHookTimeout  = 2 * time.Minute
	defaultUserAgent    = "shovel"
	defaultRootDirName  = "shovel"
)

// Default returns a config with every field set to its default. RootDir is
// left empty and is resolved against the home directory on load.
func Default() Config {
	retries := defaultRetries
	return Config{
		Install: InstallConfig{
			Workers:      defaultWorkers,
			Retries:      &retries,
			RetryBackoff: Duration(defaultRetryBackoff),
		},
		Fetch: FetchConfig{
			Timeout:   Duration(defaultFetchTimeout),
			MaxBytes:  defaultMaxBytes,
			UserAgent: defaultUserAgent,
		},
		Hooks: HooksConfig{
			Timeout:     Duration(defaultHookTimeout),
			Interpreter: DefaultInterpreter(runtime.GOOS),
		},
		Buckets: BucketsConfig{Policy: BucketPolicyFirstMatch},
	}
}

// DefaultInterpreter returns the hook interpreter argv prefix for goos.
func DefaultInterpreter(goos string) []string {
	if goos == "windows" {
		return []string{"pwsh", "-NoProfile", "-NonInteractive", "-Command"}
	}
	return []string{"sh", "-c"}
}

// RetryCount returns the configured fetch retry count.
func (c *Config) RetryCount() int {
	if c.Install.Retries == nil {
		return defaultRetries
	}
	return *c.Install.Retries
}
