package utils

import (
	"errors"
	"fmt"
)

var (
	ErrorRecordNotFound  = errors.New("record not found")
	ErrorCompanyRequired = errors.New("company id is required")
	ErrorUnauthorized    = errors.New("unauthorized")
	ErrorForbidden       = errors.New("permission denied")
	ErrorInvalidInput    = errors.New("invalid input")
)

// DuplicateError is returned by ValidateUnique.
type DuplicateError struct {
	Column string
}

func (e *DuplicateError) Error() string {
	return "duplicate " + e.Column
}

// InputError is a message about request data the caller has to fix.
// It matches ErrorInvalidInput under errors.Is.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Is(target error) bool {
	return target == ErrorInvalidInput
}

func InvalidInput(format string, args ...any) error {
	if len(args) == 0 {
		return &InputError{Message: format}
	}
	return &InputError{Message: fmt.Sprintf(format, args...)}
}
