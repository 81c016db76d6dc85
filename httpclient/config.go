package httpclient

import (
	"fmt"
	"time"
)

const (
	defaultTimeout             = 30 * time.Second
	defaultDialTimeout         = 5 * time.Second
	defaultMaxIdleConnsPerHost = 16
	defaultIdleConnTimeout     = 90 * time.Second
	defaultMaxBodyBytes        = 4 << 20
)

// Config configures the transport shared by all calls.
type Config struct {
	// Timeout bounds one request including the body read.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// DialTimeout bounds connection setup; never longer than Timeout.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// MaxIdleConnsPerHost sizes the keep-alive pool per instance.
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`

	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" mapstructure:"idle_conn_timeout"`

	// MaxBodyBytes caps a response body. Larger bodies fail as ErrCodeConnection.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.DialTimeout <= 0 || c.DialTimeout > c.Timeout {
		c.DialTimeout = min(defaultDialTimeout, c.Timeout)
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = defaultIdleConnTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.DialTimeout > c.Timeout {
		return fmt.Errorf("httpclient: dial_timeout %s exceeds timeout %s", c.DialTimeout, c.Timeout)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("httpclient: max_body_bytes must not be negative")
	}
	return nil
}
