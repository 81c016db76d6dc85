// Package static provides an in-memory discovery.Registry seeded from
// configuration. It backs local development and serves as the registry
// fake in tests.
package static

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kbukum/meshnode/discovery"
	"github.com/kbukum/meshnode/logger"
)

func init() {
	discovery.RegisterProviderFactory("static", func(cfg discovery.Config, _ any, _ *logger.Logger) (discovery.Registry, error) {
		return NewProvider(cfg.Static), nil
	})
}

// Provider implements discovery.Registry over a map keyed by service name.
// A name stays known after its last instance is deregistered.
type Provider struct {
	mu        sync.RWMutex
	instances map[string][]discovery.ServiceInstance
	lookups   map[string]int
	failWith  error
}

var _ discovery.Registry = (*Provider)(nil)

// NewProvider creates a Provider pre-populated from static endpoints.
func NewProvider(endpoints []discovery.StaticEndpoint) *Provider {
	p := &Provider{
		instances: make(map[string][]discovery.ServiceInstance),
		lookups:   make(map[string]int),
	}
	now := time.Now()
	for _, ep := range endpoints {
		id := ep.ID
		if id == "" {
			id = fmt.Sprintf("%s-%s-%d", ep.Name, ep.Address, ep.Port)
		}
		health := discovery.HealthHealthy
		if ep.Unhealthy {
			health = discovery.HealthUnhealthy
		}
		p.instances[ep.Name] = append(p.instances[ep.Name], discovery.ServiceInstance{
			ID:       id,
			Name:     ep.Name,
			Address:  ep.Address,
			Port:     ep.Port,
			Scheme:   ep.Scheme,
			Tags:     ep.Tags,
			Metadata: ep.Metadata,
			Weight:   ep.Weight,
			Health:   health,
			LastSeen: now,
		})
	}
	return p
}

// Register adds or replaces an instance by ID.
func (p *Provider) Register(_ context.Context, svc *discovery.ServiceInfo) error {
	if svc == nil || svc.Name == "" {
		return fmt.Errorf("static register: %w", discovery.ErrInvalidServiceName)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	list := slices.DeleteFunc(p.instances[svc.Name], func(i discovery.ServiceInstance) bool {
		return i.ID == svc.ID
	})
	p.instances[svc.Name] = append(list, svc.Instance())
	return nil
}

// Deregister removes an instance by ID.
func (p *Provider) Deregister(_ context.Context, serviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, list := range p.instances {
		p.instances[name] = slices.DeleteFunc(list, func(i discovery.ServiceInstance) bool {
			return i.ID == serviceID
		})
	}
	return nil
}

// Lookup returns a copy of the instances registered under name.
func (p *Provider) Lookup(_ context.Context, name string) ([]discovery.ServiceInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lookups[name]++
	if p.failWith != nil {
		return nil, p.failWith
	}
	list, ok := p.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, name)
	}
	return slices.Clone(list), nil
}

// SetHealth marks every instance with the given ID.
func (p *Provider) SetHealth(id string, health discovery.HealthStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, list := range p.instances {
		for i := range list {
			if list[i].ID == id {
				list[i].Health = health
			}
		}
	}
}

// FailLookups makes every Lookup return err until called again with nil.
// It simulates an unreachable registry.
func (p *Provider) FailLookups(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
}

// Lookups returns how many times name was looked up.
func (p *Provider) Lookups(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lookups[name]
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }
