package messages

// Envfile messages for the activation environment file.
const (
	// EnvfileLineErrorFmt formats envfile line errors.
	EnvfileLineErrorFmt            = "line %d: %w"
	EnvfileReadFailedFmt           = "read activation env: %w"
	EnvfileExpectedKeyValue        = "expected KEY=VALUE or PATH+=DIR"
	EnvfileUnterminatedQuotedValue = "unterminated quoted value"
	EnvfileInvalidQuotedSuffix     = "invalid trailing characters after quoted value"
	EnvfileInvalidKeyFmt           = "invalid variable name %q"
	EnvfilePathKeyFmt              = "%s is managed through path entries"

	EnvfileHeader       = "# Managed by shovel. Edits are overwritten on install and uninstall."
	EnvfileScriptHeader = "# Managed by shovel. Source this file to activate installed packages."
)
