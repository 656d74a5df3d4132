package messages

// Config messages for configuration loading and validation.
const (
	ConfigSystemRequired = "config system is required"
	// ConfigResolveDirFmt formats user config dir lookup failures.
	ConfigResolveDirFmt       = "resolve user config dir: %w"
	ConfigReadFmt             = "read config %s: %w"
	ConfigInvalidFmt          = "invalid config %s: %w"
	ConfigUnrecognizedKeysFmt = "%s: unrecognized config keys: %s"
	ConfigExpandPathFmt       = "expand path %s: %w"

	ConfigArchitectureInvalidFmt = "%s: architecture %q must be one of 32bit, 64bit, arm64 (or empty for native)"
	ConfigWorkersInvalidFmt      = "%s: install.workers must be at least 1 (got %d)"
	ConfigRetriesInvalidFmt      = "%s: install.retries must not be negative (got %d)"
	ConfigDurationInvalidFmt     = "%s: %s must be a positive duration"
	ConfigMaxBytesInvalidFmt     = "%s: fetch.max_bytes must be positive (got %d)"
	ConfigInterpreterRequiredFmt = "%s: hooks.interpreter must name an executable"
	ConfigBucketPolicyInvalidFmt = "%s: buckets.policy %q is not supported (supported: %s)"
)
