package dispatch

import (
	"fmt"
	"time"

	"github.com/kbukum/meshnode/resilience"
)

// DefaultTimeout bounds one outbound call when Config.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Config configures a Dispatcher.
type Config struct {
	// Timeout bounds one attempt, including reading the response body.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// DialTimeout bounds connection setup to an instance.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// MaxIdleConnsPerHost sizes the shared connection pool.
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`

	// Retry enables retrying timeouts and connection failures. Nil means a single attempt.
	Retry *resilience.Policy `yaml:"retry" mapstructure:"retry"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DialTimeout == 0 || c.DialTimeout > c.Timeout {
		c.DialTimeout = c.Timeout
	}
	if c.Retry != nil {
		c.Retry.ApplyDefaults()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("dispatch timeout must be > 0, got %s", c.Timeout)
	}
	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
	}
	return nil
}
