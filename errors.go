package aad

import "fmt"

// Error codes grouping authentication failures by how the host should treat them.
const (
	// ErrorCodeConfiguration marks missing or invalid provider settings.
	// Fatal to the request, never retried.
	ErrorCodeConfiguration = "configuration_error"

	// ErrorCodeProtocol marks failures in the OAuth/OIDC exchange itself:
	// bad authorization codes, token endpoint errors, signature or claims
	// validation failures. Fatal to the request.
	ErrorCodeProtocol = "protocol_error"

	// ErrorCodeEnrichment marks failures of the best-effort group sync step.
	// Non-fatal: login proceeds with an empty group set.
	ErrorCodeEnrichment = "enrichment_error"
)

// AuthError represents a categorized authentication failure.
// Description is safe to log; it never carries token material.
type AuthError struct {
	Code        string // One of the ErrorCode* constants
	Description string // Human-readable error description
	Err         error  // Underlying cause, if any
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new categorized authentication error.
func NewAuthError(code, description string, err error) *AuthError {
	return &AuthError{
		Code:        code,
		Description: description,
		Err:         err,
	}
}

// Constructor helpers for the three failure categories.
var (
	// ErrConfiguration indicates settings are missing or invalid.
	ErrConfiguration = func(desc string, err error) *AuthError {
		return NewAuthError(ErrorCodeConfiguration, desc, err)
	}

	// ErrProtocol indicates the authorization-code exchange or token
	// validation failed.
	ErrProtocol = func(desc string, err error) *AuthError {
		return NewAuthError(ErrorCodeProtocol, desc, err)
	}

	// ErrEnrichment indicates the group membership lookup failed.
	ErrEnrichment = func(desc string, err error) *AuthError {
		return NewAuthError(ErrorCodeEnrichment, desc, err)
	}
)

// IsEnrichment reports whether err is a non-fatal enrichment failure.
func IsEnrichment(err error) bool {
	if e, ok := err.(*AuthError); ok {
		return e.Code == ErrorCodeEnrichment
	}
	return false
}
