package ai

import (
	"fmt"
	"net/http"
)

// ConfigurationError means no API key is stored for the provider
type ConfigurationError struct {
	Provider string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s API key not configured. Go to Settings to add it.", e.Provider)
}

// TimeoutError means the vendor did not answer within the request timeout
type TimeoutError struct {
	Provider string
}

func (e *TimeoutError) Error() string {
	return "Request timed out. Please try again."
}

// RemoteError carries a non-2xx vendor response. Body is the raw response text.
type RemoteError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Body)
}

// IsUnauthorized reports whether the vendor rejected the key
func (e *RemoteError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsRateLimited reports whether the vendor throttled the request
func (e *RemoteError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsServerError reports a 5xx from the vendor
func (e *RemoteError) IsServerError() bool {
	return e.StatusCode >= 500
}

// EmptyResponseError means the envelope held no completion text
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("No response from %s", e.Provider)
}

// ExtractionError means no JSON object could be located in the completion text
type ExtractionError struct {
	Provider string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("Could not extract JSON from %s response", e.Provider)
}

// ParseError wraps a JSON decoding failure of the extracted completion
type ParseError struct {
	Provider string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Could not parse %s response: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
