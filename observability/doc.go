// Package observability carries the node's OpenTelemetry wiring.
//
// Component installs OTLP/HTTP trace and metric exporters when enabled and
// flushes them on stop. Disabled, the global no-op providers stay in place
// and every helper here costs almost nothing.
//
// Inbound requests are counted by the server middleware through Metrics.
// Each dispatcher attempt is wrapped in a Call:
//
//	ctx, call := observability.StartCall(ctx, "service2", "GET", "/service2/api/data", reqID, metrics)
//	call.Routed("10.0.0.7:8081")
//	call.Succeeded(ctx, 200)
package observability
