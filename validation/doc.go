// Package validation checks inputs and reports failures as INVALID_INPUT
// *errors.AppError values carrying per-field details.
//
// Struct tags cover value objects and decoded request bodies:
//
//	type planInput struct {
//	    Providers  []string `json:"providers" validate:"min=1,dive,nonblank"`
//	    MaxRetries int      `json:"max_retries" validate:"gte=0"`
//	}
//	err := validation.Validate(in)
//
// The programmatic Validator suits checks that depend on computed values:
//
//	v := validation.New()
//	v.Required("format", format).OneOf("policy", policy, policies)
//	if err := v.Validate(); err != nil { ... }
package validation
