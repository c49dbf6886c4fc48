package store

import (
	"errors"
	"fmt"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrConflict            = errors.New("conflicting write")
	ErrVersionConflict     = errors.New("call state version conflict")
)

// ValidationError reports malformed input rejected before any storage access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
