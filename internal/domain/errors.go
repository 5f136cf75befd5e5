package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ============================================================
// Agent call errors
// ============================================================

// ErrConfig indicates required settings are missing. Never retried.
type ErrConfig struct {
	Missing []string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("missing configuration: %s", strings.Join(e.Missing, ", "))
}

// ErrAuthConfig indicates the credential exchange cannot start (no API key).
type ErrAuthConfig struct {
	Message string
}

func (e *ErrAuthConfig) Error() string {
	if e.Message != "" {
		return "auth configuration: " + e.Message
	}
	return "auth configuration: API key is not set"
}

// ErrAuthExchange indicates the identity provider refused or returned no token.
type ErrAuthExchange struct {
	StatusCode int
	Err        error
}

func (e *ErrAuthExchange) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *ErrAuthExchange) Unwrap() error {
	return e.Err
}

// ErrEndpointAttempt is one failed try against one endpoint URL.
// StatusCode is zero for network faults.
type ErrEndpointAttempt struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *ErrEndpointAttempt) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%d %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("status %d from %s", e.StatusCode, e.URL)
	default:
		return fmt.Sprintf("request to %s: %v", e.URL, e.Err)
	}
}

func (e *ErrEndpointAttempt) Unwrap() error {
	return e.Err
}

// IsAuthRejected reports whether the endpoint rejected the credential.
func (e *ErrEndpointAttempt) IsAuthRejected() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// ErrAllEndpointsExhausted is returned when no candidate endpoint answered 200.
type ErrAllEndpointsExhausted struct {
	Agent   string
	LastErr error
	Tried   []string
}

func (e *ErrAllEndpointsExhausted) Error() string {
	var b strings.Builder
	b.WriteString("no working endpoint found")
	if e.Agent != "" {
		b.WriteString(" for agent ")
		b.WriteString(e.Agent)
	}
	fmt.Fprintf(&b, "\nlast error: %v\ntried URLs:", e.LastErr)
	for _, u := range e.Tried {
		b.WriteString("\n- ")
		b.WriteString(u)
	}
	return b.String()
}

func (e *ErrAllEndpointsExhausted) Unwrap() error {
	return e.LastErr
}
