package tools

// RegisterDefaults registers the reference tools of §4.10 into registry, the
// catalog a default deployment and the orchestrator's own tests dispatch
// against.
func RegisterDefaults(registry *Registry) {
	registry.Register(NewCalculatorTool())
	registry.Register(NewWeatherTool())
	registry.Register(NewEchoSearchTool())
}
