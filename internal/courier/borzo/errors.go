// Package borzo provides the client for the Borzo same-day courier API,
// used to book and track reverse-pickup shipments for returns.
package borzo

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard domain errors.
var (
	ErrUnauthorized       = errors.New("invalid Borzo auth token")
	ErrRateLimited        = errors.New("Borzo API rate limit exceeded")
	ErrInvalidRequest     = errors.New("invalid Borzo request parameters")
	ErrServiceUnavailable = errors.New("Borzo service temporarily unavailable")
)

// APIError represents a structured error from the Borzo API.
type APIError struct {
	Codes           []string            `json:"errors"`
	ParameterErrors map[string][]string `json:"parameter_errors,omitempty"`
	StatusCode      int                 `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.Codes) > 0 {
		return fmt.Sprintf("borzo [%s] (http %d)", strings.Join(e.Codes, ","), e.StatusCode)
	}
	return fmt.Sprintf("borzo request failed (http %d)", e.StatusCode)
}

// Is implements errors.Is for APIError.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.hasCode("unauthorized")
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests || e.hasCode("requests_limit_exceeded")
	case ErrInvalidRequest:
		return e.StatusCode == http.StatusBadRequest || len(e.ParameterErrors) > 0
	case ErrServiceUnavailable:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// IsRetryable returns true if this error is safe to retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusServiceUnavailable ||
		e.StatusCode >= 500
}

func (e *APIError) hasCode(code string) bool {
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}
