package guardrail

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("guardrail not found")
	// ErrReferenced is returned when hard-deleting a definition that a
	// function override still points at. Disable it instead.
	ErrReferenced = errors.New("guardrail is referenced by a function override")
	ErrConflict   = errors.New("guardrail already exists")
)

// ValidationError is a configuration error in a definition or override.
// Its message is safe to show to administrators.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
