package llm

import "fmt"

// TransportError wraps a network-level failure (connect, TLS, reset) before
// any HTTP status was received. Retryable per RetryConfig.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx response. Retryable only if the status code
// is in the configured retryable set. Body carries the response text for
// diagnosability.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// DecodeError is a fatal stream decode failure: a buffered tool call whose
// arguments are still invalid JSON when the provider signals completion.
// Malformed individual stream lines are skipped, never surfaced as this.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "stream decode failed: " + e.Reason
}

// ConfigError is a fatal pre-flight failure: missing API key, missing or
// invalid base URL, contradictory token limits. Surfaced before any network
// call.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid model config: " + e.Reason
}
