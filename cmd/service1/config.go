package main

import (
	"fmt"

	"github.com/kbukum/meshnode/config"
	"github.com/kbukum/meshnode/discovery"
	"github.com/kbukum/meshnode/discovery/consul"
	"github.com/kbukum/meshnode/discovery/etcd"
	redisdisc "github.com/kbukum/meshnode/discovery/redis"
	"github.com/kbukum/meshnode/dispatch"
	"github.com/kbukum/meshnode/observability"
	"github.com/kbukum/meshnode/server"
	"github.com/kbukum/meshnode/service1"
)

// Config is the service1 configuration, loaded from cmd/service1/config.yml,
// .env files and the environment (DISPATCH_TIMEOUT overrides dispatch.timeout).
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Discovery     discovery.Config     `yaml:"discovery" mapstructure:"discovery"`
	Consul        consul.Config        `yaml:"consul" mapstructure:"consul"`
	Redis         redisdisc.Config     `yaml:"redis" mapstructure:"redis"`
	Etcd          etcd.Config          `yaml:"etcd" mapstructure:"etcd"`
	Dispatch      dispatch.Config      `yaml:"dispatch" mapstructure:"dispatch"`
	Service1      service1.Config      `yaml:"service1" mapstructure:"service1"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every section and derives the self-registration from
// the service name and server port.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "service1"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Dispatch.ApplyDefaults()
	c.Service1.ApplyDefaults()
	c.Observability.ApplyDefaults()

	reg := &c.Discovery.Registration
	if reg.Name == "" {
		reg.Name = c.Name
	}
	if reg.Port == 0 {
		reg.Port = c.Server.Port
	}
	if len(c.Discovery.Services) == 0 {
		c.Discovery.Services = []string{c.Service1.Downstream}
	}
	c.Discovery.ApplyDefaults()

	switch c.Discovery.Provider {
	case "consul":
		c.Consul.ApplyDefaults()
	case "redis":
		c.Redis.ApplyDefaults()
	case "etcd":
		c.Etcd.ApplyDefaults()
	}
}

// Validate checks every section. Only the selected provider's section is validated.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if err := c.Service1.Validate(); err != nil {
		return fmt.Errorf("service1: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	if w := c.Server.WriteTimeout; w > 0 && w <= c.Dispatch.Timeout {
		return fmt.Errorf("server.write_timeout (%s) must exceed dispatch.timeout (%s)", w, c.Dispatch.Timeout)
	}

	switch c.Discovery.Provider {
	case "consul":
		return c.Consul.Validate()
	case "redis":
		return c.Redis.Validate()
	case "etcd":
		return c.Etcd.Validate()
	}
	return nil
}

// providerConfig returns the section handed to the selected provider factory.
func (c *Config) providerConfig() any {
	switch c.Discovery.Provider {
	case "consul":
		return &c.Consul
	case "redis":
		return &c.Redis
	case "etcd":
		return &c.Etcd
	default:
		return nil
	}
}
