package config

import (
	"fmt"
	"strings"

	"github.com/conn-castle/shovel/internal/messages"
)

var validArchitectures = map[string]struct{}{
	"":      {},
	"32bit": {},
	"64bit": {},
	"arm64": {},
}

// Validate checks value ranges. path identifies the config source in errors.
func (c *Config) Validate(path string) error {
	if _, ok := validArchitectures[c.Architecture]; !ok {
		return fmt.Errorf(messages.ConfigArchitectureInvalidFmt, path, c.Architecture)
	}
	if c.Install.Workers < 1 {
		return fmt.Errorf(messages.ConfigWorkersInvalidFmt, path, c.Install.Workers)
	}
	if c.Install.Retries != nil && *c.Install.Retries < 0 {
		return fmt.Errorf(messages.ConfigRetriesInvalidFmt, path, *c.Install.Retries)
	}
	if c.Install.RetryBackoff < 0 {
		return fmt.Errorf(messages.ConfigDurationInvalidFmt, path, "install.retry_backoff")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf(messages.ConfigDurationInvalidFmt, path, "fetch.timeout")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf(messages.ConfigMaxBytesInvalidFmt, path, c.Fetch.MaxBytes)
	}
	if c.Hooks.Timeout <= 0 {
		return fmt.Errorf(messages.ConfigDurationInvalidFmt, path, "hooks.timeout")
	}
	if len(c.Hooks.Interpreter) == 0 || strings.TrimSpace(c.Hooks.Interpreter[0]) == "" {
		return fmt.Errorf(messages.ConfigInterpreterRequiredFmt, path)
	}
	if c.Buckets.Policy != BucketPolicyFirstMatch {
		return fmt.Errorf(messages.ConfigBucketPolicyInvalidFmt, path, c.Buckets.Policy, BucketPolicyFirstMatch)
	}
	return nil
}
