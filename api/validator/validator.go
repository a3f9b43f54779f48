package validator

import (
	"github.com/go-playground/validator/v10"
)

// Validator wraps the underlying validator library behind a small API that
// returns per-field errors suitable for a JSON response.
type Validator struct {
	cli *validator.Validate
}

// ValidationError describes a single failed field.
type ValidationError struct {
	Field   string
	Message interface{}
}

// New returns a ready to use Validator.
func New() *Validator {
	return &Validator{
		cli: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateStruct validates s against its `validate` tags.
func (v *Validator) ValidateStruct(s interface{}) []ValidationError {
	if err := v.cli.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// Validate checks a single value against the given validation tag.
func (v *Validator) Validate(value interface{}, tag string) []ValidationError {
	if err := v.cli.Var(value, tag); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) []ValidationError {
	errors := make([]ValidationError, 0)
	for _, err := range err.(validator.ValidationErrors) {
		errors = append(errors, ValidationError{
			Field:   err.StructField(),
			Message: err.Error(),
		})
	}
	return errors
}
