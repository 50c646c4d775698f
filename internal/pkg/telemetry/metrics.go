package telemetry

// Span and attribute names used for instrumentation.
const (
	TracerName = "github.com/samirrijal/placekeeper"

	// Spans
	SpanJobRun        = "job.run"
	SpanProviderCall  = "provider.call"
	SpanMaintenanceOp = "maintenance.step"

	// Attributes
	AttrJob      = "placekeeper.job"
	AttrTrigger  = "placekeeper.trigger"
	AttrEndpoint = "placekeeper.endpoint"
	AttrStep     = "placekeeper.step"
)
