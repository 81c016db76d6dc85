package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/meshnode/component"
	"github.com/kbukum/meshnode/logger"
)

// ProviderFactory builds a Registry. providerCfg carries the provider's own
// config type (for example *consul.Config); providers type-assert it.
type ProviderFactory func(cfg Config, providerCfg any, log *logger.Logger) (Registry, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]ProviderFactory)
)

// RegisterProviderFactory makes a backend selectable by name. Provider
// packages call it from init.
func RegisterProviderFactory(name string, f ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Providers returns the registered provider names.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func factoryFor(name string) (ProviderFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Component owns the registry backend and the Resolver, registers this node
// on Start and deregisters it on Stop.
type Component struct {
	cfg         Config
	providerCfg any
	log         *logger.Logger

	mu         sync.RWMutex
	registry   Registry
	resolver   *Resolver
	registered *ServiceInfo
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates the discovery component. providerCfg is passed to
// the provider factory untouched.
func NewComponent(cfg Config, providerCfg any, log *logger.Logger) *Component {
	if log == nil {
		log = logger.NewNop()
	}
	cfg.ApplyDefaults()
	return &Component{
		cfg:         cfg,
		providerCfg: providerCfg,
		log:         log.WithComponent("discovery"),
	}
}

// Name returns the component name.
func (c *Component) Name() string { return "discovery" }

// Registry returns the backend, or nil before Start.
func (c *Component) Registry() Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry
}

// Resolver returns the resolver, or nil before Start.
func (c *Component) Resolver() *Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolver
}

// Resolve delegates to the resolver, so the component can be handed to a
// dispatcher before it is started. Before Start it reports the registry as
// unreachable.
func (c *Component) Resolve(ctx context.Context, name string) (ServiceInstance, error) {
	res := c.Resolver()
	if res == nil {
		return ServiceInstance{}, fmt.Errorf("%w: discovery not started", ErrRegistryUnreachable)
	}
	return res.Resolve(ctx, name)
}

// Start builds the provider, starts the resolver and registers this node
// when registration is enabled.
func (c *Component) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}

	f, ok := factoryFor(c.cfg.Provider)
	if !ok {
		return fmt.Errorf("discovery provider %q not registered (have %v)", c.cfg.Provider, Providers())
	}
	reg, err := f(c.cfg, c.providerCfg, c.log)
	if err != nil {
		return fmt.Errorf("discovery provider %s: %w", c.cfg.Provider, err)
	}

	res, err := NewResolver(reg, c.cfg.ResolverConfig(), c.log)
	if err != nil {
		_ = reg.Close()
		return err
	}

	var self *ServiceInfo
	if c.cfg.Registration.Enabled {
		self, err = c.serviceInfo()
		if err == nil {
			err = reg.Register(ctx, self)
		}
		if err != nil {
			_ = reg.Close()
			return fmt.Errorf("discovery: register self: %w", err)
		}
		c.log.Info("Registered with discovery", logger.Fields(
			logger.FieldInstance, self.ID,
			logger.FieldService, self.Name,
			"address", net.JoinHostPort(self.Address, fmt.Sprint(self.Port)),
		))
	}

	if err := res.Start(ctx); err != nil {
		_ = reg.Close()
		return err
	}

	c.mu.Lock()
	c.registry, c.resolver, c.registered = reg, res, self
	c.mu.Unlock()
	return nil
}

// Stop stops the resolver, deregisters this node and closes the backend.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	reg, res, self := c.registry, c.resolver, c.registered
	c.registry, c.resolver, c.registered = nil, nil, nil
	c.mu.Unlock()

	if res != nil {
		res.Stop()
	}
	if reg == nil {
		return nil
	}

	var errs []error
	if self != nil {
		if err := reg.Deregister(ctx, self.ID); err != nil {
			c.log.Warn("Deregister failed", logger.ErrorFields("deregister", err))
			errs = append(errs, fmt.Errorf("deregister %s: %w", self.ID, err))
		}
	}
	if err := reg.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s registry: %w", c.cfg.Provider, err))
	}
	return errors.Join(errs...)
}

// Health reports unhealthy before Start and degraded while the last refresh
// round had failures (the resolver is then serving cached sets).
func (c *Component) Health(ctx context.Context) component.Health {
	res := c.Resolver()
	if res == nil {
		return component.Unhealthy(c.Name(), "not started")
	}
	if err := res.LastRefreshError(); err != nil {
		return component.Degraded(c.Name(), err.Error())
	}
	return component.Healthy(c.Name(), fmt.Sprintf("%s, tracking %d services", c.cfg.Provider, len(res.Known())))
}

// Describe reports the provider for the startup log.
func (c *Component) Describe() component.Description {
	details := "provider=" + c.cfg.Provider + " strategy=" + string(c.cfg.Strategy)
	if c.cfg.Registration.Enabled {
		details += " register=" + c.cfg.Registration.Name
	}
	return component.Description{Type: "discovery", Details: details, Port: c.cfg.Registration.Port}
}

func (c *Component) serviceInfo() (*ServiceInfo, error) {
	r := c.cfg.Registration
	addr := r.Address
	if addr == "" {
		ip, err := localIP()
		if err != nil {
			return nil, fmt.Errorf("resolve local IP: %w", err)
		}
		addr = ip
	}
	id := r.ID
	if id == "" {
		id = r.Name + "-" + uuid.NewString()[:8]
	}

	info := &ServiceInfo{
		ID:       id,
		Name:     r.Name,
		Address:  addr,
		Port:     r.Port,
		Scheme:   r.Scheme,
		Tags:     r.Tags,
		Metadata: r.Meta,
		Weight:   r.Weight,
	}
	if r.HealthCheckPath != "" {
		info.HealthCheckURL = info.Instance().BaseURL() + r.HealthCheckPath
	}
	return info, nil
}

// localIP returns the address of the interface used for outbound traffic.
// UDP dial sends no packets.
func localIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
