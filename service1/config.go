package service1

import "github.com/kbukum/meshnode/validation"

const (
	DefaultDownstream     = "service2"
	DefaultDownstreamPath = "/service2/api/data"
)

// Config names the downstream the handler calls.
type Config struct {
	// Downstream is the logical service name resolved through discovery.
	Downstream string `yaml:"downstream" mapstructure:"downstream" validate:"required"`
	// DownstreamPath is requested on the resolved instance.
	DownstreamPath string `yaml:"downstream_path" mapstructure:"downstream_path" validate:"required,startswith=/"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Downstream == "" {
		c.Downstream = DefaultDownstream
	}
	if c.DownstreamPath == "" {
		c.DownstreamPath = DefaultDownstreamPath
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
