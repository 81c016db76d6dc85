package bootstrap

import "github.com/kbukum/meshnode/config"

// Config is the constraint for application configuration types. Any struct
// embedding config.ServiceConfig satisfies it through promoted methods,
// provided it does not shadow ApplyDefaults or Validate without calling
// the embedded versions.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
