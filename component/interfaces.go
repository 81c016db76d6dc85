package component

import "context"

// HealthStatus is the state a component reports on /health.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is one component's entry in the health report.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

func Healthy(name, message string) Health {
	return Health{Name: name, Status: StatusHealthy, Message: message}
}

// Degraded marks a component that still serves, e.g. a resolver answering
// from a stale cache.
func Degraded(name, message string) Health {
	return Health{Name: name, Status: StatusDegraded, Message: message}
}

func Unhealthy(name, message string) Health {
	return Health{Name: name, Status: StatusUnhealthy, Message: message}
}

// Component is a part of the node with a start/stop lifecycle. The
// bootstrap registry starts components in registration order and stops
// them in reverse.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is logged when a component has started.
type Description struct {
	Type    string // "server", "registry", "telemetry"
	Details string // e.g. "consul 127.0.0.1:8500"
	Port    int
}

// Describable components add a Description to their start log line.
type Describable interface {
	Describe() Description
}

// Overall folds component health into one status. Any unhealthy component
// makes the node unhealthy; any degraded one makes it degraded.
func Overall(results []Health) HealthStatus {
	status := StatusHealthy
	for _, h := range results {
		if h.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if h.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
