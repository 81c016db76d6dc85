package redis

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/meshnode/validation"
)

// Config selects the Redis server and the key layout of the registry.
// A registered instance expires InstanceTTL after its last heartbeat.
type Config struct {
	Addr     string `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db" validate:"gte=0"`

	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size" validate:"gte=1"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	KeyPrefix         string        `yaml:"key_prefix" mapstructure:"key_prefix" validate:"required"`
	InstanceTTL       time.Duration `yaml:"instance_ttl" mapstructure:"instance_ttl" validate:"gte=1s"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval" validate:"gt=0,ltfield=InstanceTTL"`
}

// ApplyDefaults heartbeats three times per 30s TTL under the "meshnode" prefix.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	c.DialTimeout = orDefault(c.DialTimeout, 5*time.Second)
	c.ReadTimeout = orDefault(c.ReadTimeout, 3*time.Second)
	c.WriteTimeout = orDefault(c.WriteTimeout, 3*time.Second)
	if c.KeyPrefix == "" {
		c.KeyPrefix = "meshnode"
	}
	c.InstanceTTL = orDefault(c.InstanceTTL, 30*time.Second)
	c.HeartbeatInterval = orDefault(c.HeartbeatInterval, c.InstanceTTL/3)
}

func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if strings.ContainsAny(c.KeyPrefix, " \t") {
		return fmt.Errorf("redis: key_prefix %q contains whitespace", c.KeyPrefix)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}
