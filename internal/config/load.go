package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/conn-castle/shovel/internal/messages"
)

// Environment variables that override config values.
const (
	EnvConfig    = "SHOVEL_CONFIG"
	EnvRoot      = "SHOVEL_ROOT"
	EnvCache     = "SHOVEL_CACHE"
	EnvArch      = "SHOVEL_ARCH"
	EnvNoNetwork = "SHOVEL_NO_NETWORK"
)

// ErrConfigValidation is a sentinel that wraps config validation failures
// (as opposed to TOML syntax or filesystem errors).
var ErrConfigValidation = errors.New("config validation failed")

// System abstracts the OS lookups config loading depends on.
type System interface {
	ReadFile(name string) ([]byte, error)
	LookupEnv(key string) (string, bool)
	UserConfigDir() (string, error)
}

// RealSystem implements System using the OS.
type RealSystem struct{}

// ReadFile reads the named file and returns the contents.
func (RealSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// LookupEnv returns the value and presence of an environment variable.
func (RealSystem) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// UserConfigDir returns the default user config directory.
func (RealSystem) UserConfigDir() (string, error) {
	return os.UserConfigDir()
}

var expandHome = homedir.Expand

// DefaultConfigPath returns the config path, honoring SHOVEL_CONFIG.
func DefaultConfigPath(sys System) (string, error) {
	if value, ok := sys.LookupEnv(EnvConfig); ok && strings.TrimSpace(value) != "" {
		return expandHome(strings.TrimSpace(value))
	}
	dir, err := sys.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf(messages.ConfigResolveDirFmt, err)
	}
	return filepath.Join(dir, "shovel", "config.toml"), nil
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	return LoadWithSystem(RealSystem{}, path)
}

// LoadWithSystem is Load with an injected System.
func LoadWithSystem(sys System, path string) (*Config, error) {
	if sys == nil {
		return nil, errors.New(messages.ConfigSystemRequired)
	}
	if path == "" {
		resolved, err := DefaultConfigPath(sys)
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	cfg := Default()
	data, err := sys.ReadFile(path)
	switch {
	case err == nil:
		parsed, err := Parse(data, path)
		if err != nil {
			return nil, err
		}
		cfg = *parsed
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf(messages.ConfigReadFmt, path, err)
	}

	if err := cfg.applyEnv(sys); err != nil {
		return nil, err
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return &cfg, nil
}

// Parse decodes TOML config data over the defaults and validates it.
// source is used in error messages.
func Parse(data []byte, source string) (*Config, error) {
	cfg := Default()
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: "+messages.ConfigUnrecognizedKeysFmt, ErrConfigValidation, source, strict.String())
		}
		return nil, fmt.Errorf(messages.ConfigInvalidFmt, source, err)
	}
	if err := cfg.Validate(source); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(sys System) error {
	if value, ok := sys.LookupEnv(EnvRoot); ok && strings.TrimSpace(value) != "" {
		c.RootDir = strings.TrimSpace(value)
	}
	if value, ok := sys.LookupEnv(EnvCache); ok && strings.TrimSpace(value) != "" {
		c.CacheDir = strings.TrimSpace(value)
	}
	if value, ok := sys.LookupEnv(EnvArch); ok && strings.TrimSpace(value) != "" {
		c.Architecture = strings.TrimSpace(value)
	}
	return nil
}

// resolvePaths expands ~ and fills in path defaults.
func (c *Config) resolvePaths() error {
	if c.RootDir == "" {
		c.RootDir = filepath.Join("~", defaultRootDirName)
	}
	root, err := expandHome(c.RootDir)
	if err != nil {
		return fmt.Errorf(messages.ConfigExpandPathFmt, c.RootDir, err)
	}
	c.RootDir = filepath.Clean(root)
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.RootDir, "cache")
	}
	cacheDir, err := expandHome(c.CacheDir)
	if err != nil {
		return fmt.Errorf(messages.ConfigExpandPathFmt, c.CacheDir, err)
	}
	c.CacheDir = filepath.Clean(cacheDir)
	return nil
}

// NoNetwork reports whether downloads are disabled via SHOVEL_NO_NETWORK.
func NoNetwork(sys System) bool {
	value, ok := sys.LookupEnv(EnvNoNetwork)
	return ok && strings.TrimSpace(value) != ""
}
