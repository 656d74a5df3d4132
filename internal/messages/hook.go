package messages

// Hook messages for manifest script execution.
const (
	HookFailedFmt           = "hook %s exited with status %d"
	HookTimeoutFmt          = "hook %s timed out after %s"
	HookStartFmt            = "start hook %s: %v"
	HookCanceledFmt         = "hook %s canceled: %w"
	HookInterpreterRequired = "hook interpreter is required"
	HookOutputTruncated     = "\n[output truncated]\n"
)
