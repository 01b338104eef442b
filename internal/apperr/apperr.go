// Package apperr defines the error kinds shared by every use case.
// Transports map a kind to a status code with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrExternal   = errors.New("external service")
	ErrSecurity   = errors.New("security")
	ErrForbidden  = errors.New("forbidden")
)

// Validation reports a malformed request field.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Wrap tags err with kind so both errors.Is(err, kind) and errors.Is(err, cause) hold.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Kind returns the first kind err carries, or nil for an unclassified error.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrForbidden, ErrSecurity, ErrConflict, ErrExternal} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
