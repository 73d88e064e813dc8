package orcid

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the ORCID client.
var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("not found in ORCID")

	// ErrAuthError indicates rejected or missing credentials.
	ErrAuthError = errors.New("ORCID authentication error")

	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("ORCID rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with ORCID")

	// ErrInvalidResponse indicates an unexpected response body.
	ErrInvalidResponse = errors.New("invalid response from ORCID")
)

// APIError is a non-2xx response from the ORCID API.
type APIError struct {
	StatusCode int
	Message    string
	ORCID      string
}

func (e *APIError) Error() string {
	if e.ORCID != "" {
		return fmt.Sprintf("ORCID API error (status %d): %s (record: %s)", e.StatusCode, e.Message, e.ORCID)
	}
	return fmt.Sprintf("ORCID API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsRateLimited reports whether err is a throttling response.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

func checkHTTPErrors(resp *http.Response, id string) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), ORCID: id}
	}
	return nil
}
