package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/proposalmesh/core"
)

// ClassifyHTTPStatus maps an HTTP response status onto the failure taxonomy.
// Providers use it to build *core.ToolFailureError values from non-2xx
// responses.
func ClassifyHTTPStatus(status int) core.FailureKind {
	switch status {
	case http.StatusTooManyRequests:
		return core.FailureRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.FailureAuthError
	case http.StatusNotFound:
		return core.FailureNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return core.FailureTimeout
	default:
		return core.FailureTransportError
	}
}

// FailureFromStatus builds the classified error providers return for a
// non-2xx response.
func FailureFromStatus(provider string, status int) *core.ToolFailureError {
	return &core.ToolFailureError{
		Provider: provider,
		Kind:     ClassifyHTTPStatus(status),
		Detail:   fmt.Sprintf("unexpected status %d (%s)", status, http.StatusText(status)),
	}
}

// MalformedResponse builds the classified error providers return when a
// payload cannot be decoded into the expected shape.
func MalformedResponse(provider string, err error) *core.ToolFailureError {
	return &core.ToolFailureError{
		Provider: provider,
		Kind:     core.FailureMalformedResponse,
		Detail:   fmt.Sprintf("decode response: %v", err),
	}
}

// classifyError normalizes a provider error into a failure kind plus detail.
// Pre-classified *core.ToolFailureError values pass through unchanged;
// context deadline errors become timeouts; everything else is a transport
// error.
func classifyError(err error) (core.FailureKind, string) {
	var fe *core.ToolFailureError
	if errors.As(err, &fe) {
		return fe.Kind, fe.Detail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.FailureTimeout, "call exceeded its time budget"
	}
	return core.FailureTransportError, err.Error()
}
