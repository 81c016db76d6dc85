package etcd

import (
	"fmt"
	"strings"
	"time"
)

// Config holds etcd connection settings and the key layout of the registry.
type Config struct {
	Endpoints   []string      `yaml:"endpoints" mapstructure:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	Username    string        `yaml:"username" mapstructure:"username"`
	Password    string        `yaml:"password" mapstructure:"password"`

	// KeyPrefix is the root of every registry key; it starts with "/".
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`

	// LeaseTTL is the lease attached to registered instances, in whole seconds.
	LeaseTTL time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`

	// RetryInterval is the pause before re-registering after a lost lease.
	RetryInterval time.Duration `yaml:"retry_interval" mapstructure:"retry_interval"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Endpoints) == 0 {
		c.Endpoints = []string{"localhost:2379"}
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "/meshnode"
	}
	c.KeyPrefix = strings.TrimSuffix(c.KeyPrefix, "/")
	if c.LeaseTTL == 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 5 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if !strings.HasPrefix(c.KeyPrefix, "/") {
		return fmt.Errorf("etcd key_prefix must start with '/', got %q", c.KeyPrefix)
	}
	if c.LeaseTTL < time.Second {
		return fmt.Errorf("etcd lease_ttl must be at least 1s, got %s", c.LeaseTTL)
	}
	return nil
}

func (c *Config) leaseSeconds() int64 {
	return int64(c.LeaseTTL / time.Second)
}
