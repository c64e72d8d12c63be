package model

import (
	"errors"
	"strings"
)

// Common errors used across the application
var (
	// Validation errors
	ErrInvalid      = errors.New("invalid input")
	ErrInvalidLimit = errors.New("limit must be a positive integer")

	// Participant errors
	ErrParticipantExists   = errors.New("participant name already in use")
	ErrParticipantNotFound = errors.New("participant not found")

	// Message errors
	ErrUnknownSender = errors.New("sender is not a registered participant")

	// Storage errors
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError carries every violated field message found in one pass
type ValidationError struct {
	Details []string
	cause   error
}

// NewValidationError creates a ValidationError wrapping ErrInvalid
func NewValidationError(details ...string) *ValidationError {
	return &ValidationError{Details: details, cause: ErrInvalid}
}

// NewLimitError creates a ValidationError for a rejected result limit
func NewLimitError(detail string) *ValidationError {
	return &ValidationError{Details: []string{detail}, cause: ErrInvalidLimit}
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.cause.Error()
	}
	return e.cause.Error() + ": " + strings.Join(e.Details, "; ")
}

// Is lets errors.Is match both the specific cause and ErrInvalid
func (e *ValidationError) Is(target error) bool {
	return target == e.cause || target == ErrInvalid
}
