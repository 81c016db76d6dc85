package discovery

import (
	"context"
	"time"
)

// ServiceInfo describes the local instance to register.
type ServiceInfo struct {
	ID       string
	Name     string
	Address  string
	Port     int
	Scheme   string
	Tags     []string
	Metadata map[string]string
	Weight   int

	// HealthCheckURL is polled by registries that run active checks (Consul).
	HealthCheckURL string
}

// Instance converts the registration into the ServiceInstance a lookup returns.
func (s *ServiceInfo) Instance() ServiceInstance {
	return ServiceInstance{
		ID:       s.ID,
		Name:     s.Name,
		Address:  s.Address,
		Port:     s.Port,
		Scheme:   s.Scheme,
		Tags:     s.Tags,
		Metadata: s.Metadata,
		Weight:   s.Weight,
		Health:   HealthHealthy,
		LastSeen: time.Now(),
	}
}

// Registry is the contract every discovery backend implements.
type Registry interface {
	// Register announces an instance. Providers with TTL semantics keep it
	// alive until Deregister or Close.
	Register(ctx context.Context, service *ServiceInfo) error

	// Deregister removes an instance by ID. Unknown IDs are not an error.
	Deregister(ctx context.Context, serviceID string) error

	// Lookup returns the instances registered under name. It returns an
	// error wrapping ErrServiceNotFound when the name is unknown and an empty
	// slice when the name is known but has no instances. Any other error
	// means the backend could not be queried.
	Lookup(ctx context.Context, name string) ([]ServiceInstance, error)

	// Close stops heartbeats and releases connections.
	Close() error
}
