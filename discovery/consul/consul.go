// Package consul implements discovery.Registry on a HashiCorp Consul agent.
package consul

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/kbukum/meshnode/discovery"
	"github.com/kbukum/meshnode/logger"
)

func init() {
	discovery.RegisterProviderFactory("consul", func(_ discovery.Config, providerCfg any, log *logger.Logger) (discovery.Registry, error) {
		var cfg Config
		switch v := providerCfg.(type) {
		case *Config:
			cfg = *v
		case Config:
			cfg = v
		case nil:
		default:
			return nil, fmt.Errorf("consul provider: unexpected config type %T", providerCfg)
		}
		return NewProvider(cfg, log)
	})
}

// Provider implements discovery.Registry using the Consul HTTP API.
type Provider struct {
	client *api.Client
	cfg    Config
	log    *logger.Logger
}

var _ discovery.Registry = (*Provider)(nil)

// NewProvider creates a Provider. No request is made until first use.
func NewProvider(cfg Config, log *logger.Logger) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address
	apiCfg.Scheme = cfg.Scheme
	apiCfg.Token = cfg.Token
	apiCfg.Datacenter = cfg.Datacenter
	apiCfg.WaitTime = cfg.WaitTime
	if cfg.TLS != nil && cfg.TLS.Enabled {
		apiCfg.TLSConfig = api.TLSConfig{
			CAFile:             cfg.TLS.CACert,
			CertFile:           cfg.TLS.ClientCert,
			KeyFile:            cfg.TLS.ClientKey,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			Address:            cfg.TLS.ServerName,
		}
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &Provider{client: client, cfg: cfg, log: log.WithComponent("consul")}, nil
}

// Register registers an instance with the local agent, with an HTTP check
// when the instance advertises a health URL.
func (p *Provider) Register(ctx context.Context, svc *discovery.ServiceInfo) error {
	meta := make(map[string]string, len(svc.Metadata)+1)
	for k, v := range svc.Metadata {
		meta[k] = v
	}
	if svc.Scheme != "" {
		meta["scheme"] = svc.Scheme
	}

	reg := &api.AgentServiceRegistration{
		ID:      svc.ID,
		Name:    svc.Name,
		Address: svc.Address,
		Port:    svc.Port,
		Tags:    svc.Tags,
		Meta:    meta,
	}
	if svc.Weight > 0 {
		reg.Weights = &api.AgentWeights{Passing: svc.Weight, Warning: 1}
	}
	if svc.HealthCheckURL != "" {
		reg.Check = &api.AgentServiceCheck{
			HTTP:                           svc.HealthCheckURL,
			Interval:                       p.cfg.CheckInterval.String(),
			Timeout:                        p.cfg.CheckTimeout.String(),
			DeregisterCriticalServiceAfter: p.cfg.DeregisterAfter.String(),
		}
	}

	opts := api.ServiceRegisterOpts{}.WithContext(ctx)
	if err := p.client.Agent().ServiceRegisterOpts(reg, opts); err != nil {
		return fmt.Errorf("consul register %q: %w", svc.Name, err)
	}
	p.log.Debug("Service registered", logger.Fields(logger.FieldInstance, svc.ID, "check", svc.HealthCheckURL))
	return nil
}

// Deregister removes an instance from the local agent.
func (p *Provider) Deregister(ctx context.Context, serviceID string) error {
	q := (&api.QueryOptions{}).WithContext(ctx)
	if err := p.client.Agent().ServiceDeregisterOpts(serviceID, q); err != nil {
		return fmt.Errorf("consul deregister %q: %w", serviceID, err)
	}
	return nil
}

// Lookup returns every catalog entry for name with health folded from its
// checks. Consul reports no entries for a name nobody registered, so an
// empty answer is treated as unknown.
func (p *Provider) Lookup(ctx context.Context, name string) ([]discovery.ServiceInstance, error) {
	q := (&api.QueryOptions{}).WithContext(ctx)
	entries, _, err := p.client.Health().Service(name, p.cfg.Tag, false, q)
	if err != nil {
		return nil, fmt.Errorf("consul lookup %q: %w", name, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, name)
	}

	now := time.Now()
	out := make([]discovery.ServiceInstance, 0, len(entries))
	for _, e := range entries {
		out = append(out, toInstance(e, now))
	}
	return out, nil
}

// Close is a no-op; the HTTP client does not require explicit closing.
func (p *Provider) Close() error { return nil }

func toInstance(e *api.ServiceEntry, now time.Time) discovery.ServiceInstance {
	health := discovery.HealthHealthy
	switch e.Checks.AggregatedStatus() {
	case api.HealthCritical, api.HealthMaint:
		health = discovery.HealthUnhealthy
	}

	addr := e.Service.Address
	if addr == "" && e.Node != nil {
		addr = e.Node.Address
	}

	weight := e.Service.Weights.Passing
	if w, err := strconv.Atoi(e.Service.Meta["weight"]); err == nil {
		weight = w
	}

	return discovery.ServiceInstance{
		ID:       e.Service.ID,
		Name:     e.Service.Service,
		Address:  addr,
		Port:     e.Service.Port,
		Scheme:   e.Service.Meta["scheme"],
		Tags:     e.Service.Tags,
		Metadata: e.Service.Meta,
		Health:   health,
		Weight:   weight,
		LastSeen: now,
	}
}
