package messages

// Filesystem and locking messages.
const (
	FSCreateDirFmt   = "create directory %s: %w"
	FSCreateTempFmt  = "create temp file for %s: %w"
	FSWriteTempFmt   = "write temp file for %s: %w"
	FSSyncTempFmt    = "sync temp file for %s: %w"
	FSCloseTempFmt   = "close temp file for %s: %w"
	FSChmodFmt       = "chmod %s: %w"
	FSRenameFmt      = "move %s into place: %w"
	FSPathEscapesFmt = "path %q escapes %s"

	// LockOpenFmt formats lock file open errors.
	LockOpenFmt    = "open lock %s: %w"
	LockAcquireFmt = "lock %s: %w"
	LockTimeoutFmt = "timed out waiting for lock after %s"
)
