// Package apperrors holds the error kinds shared by the stores, the newsletter
// services and the HTTP layer. Callers match them with errors.Is / errors.As.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrAlreadySending    = errors.New("campaign is already being sent")
	ErrAlreadySent       = errors.New("campaign has already been sent")
	ErrNoRecipients      = errors.New("no active subscribers to send to")
	ErrInvalidTransition = errors.New("invalid campaign status transition")

	// ErrStatusMismatch is returned by stores when a conditional status update
	// matched no document. Services re-read the record to classify it.
	ErrStatusMismatch = errors.New("status precondition not met")
)

// ValidationError describes malformed input rejected before persistence.
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

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidation builds a ValidationError for a field.
func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFound wraps ErrNotFound with the kind of record and the key that missed.
func NotFound(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, ErrNotFound)
}
