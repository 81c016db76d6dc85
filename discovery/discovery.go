package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Resolution errors. Resolve never returns an instance together with an error.
var (
	// ErrInvalidServiceName is returned for an empty name; no lookup is made.
	ErrInvalidServiceName = errors.New("invalid service name")

	// ErrNoInstancesAvailable is returned when a lookup succeeded but left
	// nothing to pick. It always wraps ErrServiceNotFound or ErrNoHealthyEndpoints.
	ErrNoInstancesAvailable = errors.New("no instances available")

	// ErrRegistryUnreachable is returned when the registry lookup failed and
	// no previously cached set exists.
	ErrRegistryUnreachable = errors.New("registry unreachable")

	// ErrServiceNotFound means the registry has never heard of the name.
	ErrServiceNotFound = errors.New("service not found")

	// ErrNoHealthyEndpoints means the name is known but has no healthy instance.
	ErrNoHealthyEndpoints = errors.New("no healthy endpoints found")
)

// HealthStatus represents instance health as reported by the registry.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ServiceInstance is one addressable endpoint of a logical service.
type ServiceInstance struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Address  string            `json:"address"`
	Port     int               `json:"port"`
	Scheme   string            `json:"scheme,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Health   HealthStatus      `json:"health"`
	Weight   int               `json:"weight,omitempty"`
	LastSeen time.Time         `json:"last_seen"`
}

// HostPort returns "address:port", bracketing IPv6 literals.
func (s ServiceInstance) HostPort() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// BaseURL returns scheme://host:port without a trailing slash.
func (s ServiceInstance) BaseURL() string {
	scheme := s.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + s.HostPort()
}

// IsHealthy reports whether the instance may receive traffic. Unknown
// health counts as healthy: registries without checks report nothing.
func (s ServiceInstance) IsHealthy() bool {
	return s.Health != HealthUnhealthy
}

func (s ServiceInstance) weight() int {
	if s.Weight <= 0 {
		return 1
	}
	return s.Weight
}
