package messages

// Version comparison messages.
const (
	// VersionConstraintInvalidFmt formats constraint parse failures.
	VersionConstraintInvalidFmt = "%w %q"
)
