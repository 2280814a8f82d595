package service

import (
	"errors"
	"fmt"
)

var ErrQuestionNotFound = errors.New("question not found")

// ValidationError reports caller input that was rejected before anything was
// loaded or stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
