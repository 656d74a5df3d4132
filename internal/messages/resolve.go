package messages

// Resolve messages for dependency resolution.
const (
	ResolveCycleFmt          = "dependency cycle: %s"
	ResolveConflictFmt       = "conflicting requirements for %s: %s"
	ResolveRequirementFmt    = "%s (required by %s)"
	ResolveNotFoundFmt       = "package %s not found in any bucket (required by %s)"
	ResolveUnsatisfiableFmt  = "no version of %s satisfies %s (available: %s)"
	ResolveBucketConflictFmt = "conflicting bucket qualifications for %s: %s"
	ResolveLookupFmt         = "look up %s (required by %s): %w"
	ResolveUnstableFmt       = "requirements for %s did not settle"
	ResolveRequestFmt        = "invalid request %q: %w"

	ResolveRequestedBy = "request"

	PlanHeader        = "PACKAGE\tVERSION\tBUCKET\tACTION\tDEPENDS"
	PlanEmpty         = "Nothing to do."
	PlanSatisfiedFmt  = "%s %s is already installed"
	PlanUpgradeFmt    = "upgrade from %s"
	PlanNoDependsText = "-"
)
