// Package pulseerrors provides sentinel and custom error types for the application.
package pulseerrors

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrStaleState is the sentinel for lost claim races: an item's current
// ledger state no longer matches the state a transition expected. The loser
// skips the item; another claim cycle will pick it up.
var ErrStaleState = &StaleStateError{}

// StaleStateError is a sentinel error for ledger transitions that lost a race.
type StaleStateError struct {
	Expected string
	Message  string
}

// NewStaleStateError creates a StaleStateError recording the expected state.
func NewStaleStateError(expected, message string) *StaleStateError {
	return &StaleStateError{Expected: expected, Message: message}
}

// Error implements the error interface.
func (e *StaleStateError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Expected != "" {
		return "stale state: item is no longer " + e.Expected
	}

	return "stale state"
}

// Is implements the error interface for error comparison.
func (e *StaleStateError) Is(target error) bool {
	_, ok := target.(*StaleStateError)

	return ok
}

// ErrStoreUnavailable is the sentinel for vector-store unavailability.
// Retried with backoff; exhausting the budget marks the item FAILED.
var ErrStoreUnavailable = &StoreUnavailableError{}

// StoreUnavailableError is a sentinel error for vector-store outages.
type StoreUnavailableError struct {
	Message string
}

// NewStoreUnavailableError creates a StoreUnavailableError with a custom message.
func NewStoreUnavailableError(message string) *StoreUnavailableError {
	return &StoreUnavailableError{Message: message}
}

// Error implements the error interface.
func (e *StoreUnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "vector store unavailable"
}

// Is implements the error interface for error comparison.
func (e *StoreUnavailableError) Is(target error) bool {
	_, ok := target.(*StoreUnavailableError)

	return ok
}
