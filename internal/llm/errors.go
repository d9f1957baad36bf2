package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigurationError means the gateway cannot run at all, typically because
// the API key is missing. It is terminal.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// UpstreamError carries a non-success response from the completion provider.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Message)
}

// TransportError wraps a network-level failure reaching the provider.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusCode maps a gateway error to the HTTP status the ingestion endpoint
// responds with.
func StatusCode(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.Status >= 400 {
		return upstream.Status
	}
	return http.StatusInternalServerError
}
