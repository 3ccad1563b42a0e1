package errors

import (
	"errors"
	"fmt"
)

var (
	// Order errors
	ErrNoAmountSource  = errors.New("order has no amount, products or items")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidQuantity = errors.New("invalid quantity")

	// Provider errors
	ErrProviderRejected    = errors.New("transaction rejected by provider")
	ErrProviderUnreachable = errors.New("payment provider unreachable")
	ErrInvalidProviderBody = errors.New("invalid provider response")

	// Configuration errors
	ErrMissingSecret = errors.New("provider secret key is not configured")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a malformed or incomplete order request.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match the sentinel behind a validation failure.
func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// WrapValidationError ties a validation error to one of the sentinel errors above.
func WrapValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// ConfigurationError is returned when a required setting is absent at startup.
// It is never produced while serving requests.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// UpstreamError is a non-2xx answer from the payment provider. StatusCode and
// Body are relayed to the caller unchanged.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: provider responded with status %d", e.Operation, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return ErrProviderRejected
}

// TransportError is a failure to obtain any HTTP response from the provider.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrProviderUnreachable, e.Err}
}
