package consul

import (
	"errors"
	"time"

	"github.com/kbukum/meshnode/validation"
)

// Config points the provider at a Consul agent and shapes the HTTP check
// Consul runs against a registered instance.
type Config struct {
	Address    string        `yaml:"address" mapstructure:"address" validate:"required,hostname_port"`
	Scheme     string        `yaml:"scheme" mapstructure:"scheme" validate:"oneof=http https"`
	Datacenter string        `yaml:"datacenter" mapstructure:"datacenter"`
	Token      string        `yaml:"token" mapstructure:"token"`
	Tag        string        `yaml:"tag" mapstructure:"tag"` // lookups only see instances with this tag
	WaitTime   time.Duration `yaml:"wait_time" mapstructure:"wait_time" validate:"gte=0"`

	CheckInterval   time.Duration `yaml:"check_interval" mapstructure:"check_interval" validate:"gte=0"`
	CheckTimeout    time.Duration `yaml:"check_timeout" mapstructure:"check_timeout" validate:"gte=0"`
	DeregisterAfter time.Duration `yaml:"deregister_after" mapstructure:"deregister_after" validate:"gte=0"`

	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// TLSConfig holds the client certificates for an https agent.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	CACert             string `yaml:"ca_cert" mapstructure:"ca_cert"`
	ClientCert         string `yaml:"client_cert" mapstructure:"client_cert"`
	ClientKey          string `yaml:"client_key" mapstructure:"client_key"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	ServerName         string `yaml:"server_name" mapstructure:"server_name"`
}

func (c *Config) tlsEnabled() bool { return c.TLS != nil && c.TLS.Enabled }

// ApplyDefaults targets the local agent over http. Consul checks the
// instance every 10s and drops it after a minute critical.
func (c *Config) ApplyDefaults() {
	if c.Address == "" {
		c.Address = "localhost:8500"
	}
	if c.Scheme == "" {
		c.Scheme = "http"
		if c.tlsEnabled() {
			c.Scheme = "https"
		}
	}
	if c.WaitTime == 0 {
		c.WaitTime = 5 * time.Second
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = 10 * time.Second
	}
	if c.CheckTimeout == 0 {
		c.CheckTimeout = 5 * time.Second
	}
	if c.DeregisterAfter == 0 {
		c.DeregisterAfter = time.Minute
	}
}

func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.tlsEnabled() && c.Scheme != "https" {
		return errors.New("consul: tls.enabled requires scheme https")
	}
	return nil
}
