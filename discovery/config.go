package discovery

import (
	"fmt"
	"time"

	"github.com/kbukum/meshnode/validation"
)

const (
	DefaultPollInterval  = 10 * time.Second
	DefaultCacheTTL      = 30 * time.Second
	DefaultLookupTimeout = 2 * time.Second
)

// Config holds resolver, provider and self-registration settings.
type Config struct {
	// Provider selects the registry backend: static, consul, redis or etcd.
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required"`

	// PollInterval is how often every known name is looked up again.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" validate:"gt=0"`

	// CacheTTL is how long a set is served without a lookup.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl" validate:"gt=0"`

	// LookupTimeout bounds a single registry query.
	LookupTimeout time.Duration `yaml:"lookup_timeout" mapstructure:"lookup_timeout" validate:"gt=0"`

	// Strategy is the load-balancing policy.
	Strategy Strategy `yaml:"strategy" mapstructure:"strategy" validate:"oneof=round_robin random weighted"`

	// Services are looked up at start so the first call hits a warm cache.
	Services []string `yaml:"services" mapstructure:"services"`

	Registration RegistrationConfig `yaml:"registration" mapstructure:"registration"`

	// Static lists endpoints served by the static provider.
	Static []StaticEndpoint `yaml:"static" mapstructure:"static"`
}

// RegistrationConfig describes how this node announces itself.
type RegistrationConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// ID defaults to <name>-<random suffix>.
	ID      string            `yaml:"id" mapstructure:"id"`
	Name    string            `yaml:"name" mapstructure:"name"`
	Address string            `yaml:"address" mapstructure:"address"`
	Port    int               `yaml:"port" mapstructure:"port"`
	Scheme  string            `yaml:"scheme" mapstructure:"scheme"`
	Tags    []string          `yaml:"tags" mapstructure:"tags"`
	Meta    map[string]string `yaml:"metadata" mapstructure:"metadata"`
	Weight  int               `yaml:"weight" mapstructure:"weight"`

	// HealthCheckPath is appended to the advertised address for active checks.
	HealthCheckPath string `yaml:"health_check_path" mapstructure:"health_check_path"`
}

// StaticEndpoint describes one statically configured instance.
type StaticEndpoint struct {
	Name      string            `yaml:"name" mapstructure:"name"`
	ID        string            `yaml:"id" mapstructure:"id"`
	Address   string            `yaml:"address" mapstructure:"address"`
	Port      int               `yaml:"port" mapstructure:"port"`
	Scheme    string            `yaml:"scheme" mapstructure:"scheme"`
	Weight    int               `yaml:"weight" mapstructure:"weight"`
	Tags      []string          `yaml:"tags" mapstructure:"tags"`
	Metadata  map[string]string `yaml:"metadata" mapstructure:"metadata"`
	Unhealthy bool              `yaml:"unhealthy" mapstructure:"unhealthy"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "static"
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.LookupTimeout == 0 {
		c.LookupTimeout = DefaultLookupTimeout
	}
	if c.Strategy == "" {
		c.Strategy = StrategyRoundRobin
	}
	if c.Registration.Scheme == "" {
		c.Registration.Scheme = "http"
	}
	if c.Registration.HealthCheckPath == "" {
		c.Registration.HealthCheckPath = "/health"
	}
}

// Validate checks field constraints. Call after ApplyDefaults.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.Registration.Enabled {
		if c.Registration.Name == "" {
			return fmt.Errorf("discovery.registration.name is required when registration is enabled")
		}
		if c.Registration.Port <= 0 {
			return fmt.Errorf("discovery.registration.port must be > 0 when registration is enabled")
		}
	}
	for i, ep := range c.Static {
		if ep.Name == "" || ep.Address == "" || ep.Port <= 0 {
			return fmt.Errorf("discovery.static[%d]: name, address and port are required", i)
		}
	}
	return nil
}

// ResolverConfig extracts the resolver settings.
func (c *Config) ResolverConfig() ResolverConfig {
	return ResolverConfig{
		PollInterval:  c.PollInterval,
		CacheTTL:      c.CacheTTL,
		LookupTimeout: c.LookupTimeout,
		Strategy:      c.Strategy,
		Services:      c.Services,
	}
}
