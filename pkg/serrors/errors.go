// Package serrors provides coded errors with stable, machine-readable codes.
package serrors

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Base struct {
	Code    string
	Message string
	Detail  string
}

func (e *Base) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
}

// WithDetail returns a copy of the error carrying additional detail.
// The copy still matches the original via errors.Is.
func (e *Base) WithDetail(format string, args ...any) *Base {
	return &Base{
		Code:    e.Code,
		Message: e.Message,
		Detail:  fmt.Sprintf(format, args...),
	}
}

func (e *Base) Is(target error) bool {
	other, ok := target.(*Base)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

func NewError(code, message, detail string) *Base {
	return &Base{Code: code, Message: message, Detail: detail}
}

// ValidationErrors maps a field name to a human-readable problem description.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(v))
}

// FromValidator converts validator.ValidationErrors into ValidationErrors.
func FromValidator(errs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fmt.Sprintf("failed on the %q rule", fe.Tag())
	}
	return out
}
