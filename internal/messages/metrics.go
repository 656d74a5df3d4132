package messages

// Metrics messages.
const (
	MetricsPathRequired = "metrics path is required"
	MetricsWriteFmt     = "write metrics %s: %w"
)
