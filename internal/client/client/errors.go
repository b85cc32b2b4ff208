package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/restosession/internal/common"
)

// APIError is the single error type returned by the transport. Kind is one
// of the sentinels in package common; errors.Is matches it, and a malformed
// response additionally matches common.ErrServerUnavailable.
type APIError struct {
	Kind     error
	Endpoint string
	Status   int
	// Message is the server-provided detail, if any.
	Message string
	Err     error
}

func (e *APIError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Endpoint, e.Kind)
	if e.Status != 0 {
		s += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *APIError) Unwrap() []error {
	errs := []error{e.Kind}
	if errors.Is(e.Kind, common.ErrMalformedResponse) {
		errs = append(errs, common.ErrServerUnavailable)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ServerMessage returns the server-provided detail carried by err, if any.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func transportError(endpoint string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	return &APIError{Kind: common.ErrNetworkUnavailable, Endpoint: endpoint, Err: err}
}

func malformed(endpoint string, status int, err error) error {
	return &APIError{Kind: common.ErrMalformedResponse, Endpoint: endpoint, Status: status, Err: err}
}

// statusKind maps a non-2xx status to an error kind. unauthorizedKind is
// the endpoint-specific meaning of 401.
func statusKind(status int, unauthorizedKind error) error {
	if status == http.StatusUnauthorized {
		return unauthorizedKind
	}
	return common.ErrServerUnavailable
}

// loginStatusKind makes only 401 final. Any other rejection may be
// retried by the caller.
func loginStatusKind(status int) error {
	return statusKind(status, common.ErrInvalidCredentials)
}

// registerStatusKind reports a rejected registration (duplicate email,
// invalid fields) as invalid credentials.
func registerStatusKind(status int) error {
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return common.ErrInvalidCredentials
	}
	return common.ErrServerUnavailable
}

// detailMessage extracts a human-readable message from common error body
// shapes: {"detail": "..."}, {"message": "..."} or {"error": "..."}.
func detailMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var detail string
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
		return detail
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
