package observability

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/meshnode/component"
)

// Component installs the tracer and meter providers on Start and flushes
// them on Stop. Disabled, it leaves the global no-op providers in place.
type Component struct {
	cfg Config
	id  Identity

	mu        sync.Mutex
	providers *Providers
	active    bool
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates the observability component for a service.
func NewComponent(cfg Config, service, version, environment string) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, id: Identity{Service: service, Version: version, Environment: environment}}
}

// Name returns the component name.
func (c *Component) Name() string { return "observability" }

// Start initializes the exporters when enabled.
func (c *Component) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	if !c.cfg.Enabled {
		return nil
	}

	p, err := Install(ctx, c.cfg, c.id)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	c.providers = p
	return nil
}

// Stop flushes and shuts down the providers.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	p := c.providers
	c.providers, c.active = nil, false
	c.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Shutdown(ctx)
}

// Health is healthy once started; export failures surface in the SDK's own error handler.
func (c *Component) Health(_ context.Context) component.Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return component.Unhealthy(c.Name(), "not started")
	}
	msg := "disabled"
	if c.cfg.Enabled {
		msg = "exporting to " + c.cfg.Endpoint
	}
	return component.Healthy(c.Name(), msg)
}

// Describe reports the exporter endpoint for the startup log.
func (c *Component) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("otlp/http %s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Type: "otel", Details: details}
}
