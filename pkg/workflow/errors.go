package workflow

import (
	"errors"
	"fmt"
)

// ErrValidation marks bad request input: raised before the pipeline starts
// and surfaced to the caller with no stream.
var ErrValidation = errors.New("validation error")

// ErrCancelled marks a cancelled request scope.
var ErrCancelled = errors.New("request cancelled")

// validationError wraps a field-level problem under ErrValidation.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
