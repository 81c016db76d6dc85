// Package config loads service configuration from YAML files, .env files and
// environment variables using Viper.
//
// # Usage
//
//	var cfg MyConfig
//	err := config.LoadConfig("service1", &cfg)
//
// Every mapstructure key of the target struct can be overridden by an
// environment variable named after its upper-cased path with dots replaced by
// underscores (dispatch.timeout becomes DISPATCH_TIMEOUT).
package config
