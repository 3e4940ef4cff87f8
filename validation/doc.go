// Package validation provides struct-tag validation for policy types using
// the validator library.
//
//	type Limiter struct {
//	    Max    int           `validate:"min=1"`
//	    Window time.Duration `validate:"min=1ms"`
//	}
//	err := validation.Validate(limiter)
package validation
