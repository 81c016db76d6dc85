// Package validation validates configuration structs through
// go-playground/validator struct tags and reports failures as
// INVALID_INPUT application errors.
//
//	type Config struct {
//	    Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
//	    Target  string        `mapstructure:"target" validate:"required"`
//	}
//	err := validation.Validate(cfg)
//
// Field names in messages use the mapstructure key path (dispatch.timeout),
// which is also the key an operator writes in config.yml.
package validation
