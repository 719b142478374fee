package relay

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried in APIError.Code.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeNoKey        = "no_key"
	CodeConflict     = "conflict"
	CodeExpired      = "device_expired"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"
)

// APIError is a non-2xx answer of the key server.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("key server: %d %s: %s (request %s)", e.Status, e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("key server: %d %s: %s", e.Status, e.Code, e.Message)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// HasCode reports whether err is an *APIError with the given code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsNotFound reports whether err is a key server 404.
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }
