package httpapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when the API reports an unknown listing.
	ErrNotFound = errors.New("listing not found")

	// ErrRetryExhausted is returned when all retry attempts failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and an exhausted local quota.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a failed listings API call.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("listings api %s error (status %d): %s: %v", e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("listings api %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classify maps a status code to an error class. Network errors never reach
// here since they carry no response.
func classify(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// shouldRetry reports whether a failure of the given class is transient.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classOf extracts the class of err, or "" if it is not an APIError.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}
