package core

import (
	"context"
	"fmt"
	"time"
)

// FailureKind classifies a normalized provider failure. Every backend's
// errors are mapped into this closed set so agents need exactly one handling
// path regardless of the concrete provider.
type FailureKind string

// Normalized failure taxonomy at the gateway boundary.
const (
	FailureRateLimited       FailureKind = "rate_limited"
	FailureAuthError         FailureKind = "auth_error"
	FailureNotFound          FailureKind = "not_found"
	FailureMalformedResponse FailureKind = "malformed_response"
	FailureTimeout           FailureKind = "timeout"
	FailureTransportError    FailureKind = "transport_error"
)

// Retryable reports whether a failure of this kind may be retried by caller
// policy. Auth and malformed-response failures are configuration/logic
// errors and are reported immediately; a missing result cannot be retried
// into existence.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureRateLimited, FailureTimeout, FailureTransportError:
		return true
	}
	return false
}

// ToolQuery is the uniform structured query accepted by every provider.
// Field tags feed the reflection-built schema used for pre-dispatch
// validation.
type ToolQuery struct {
	Text    string            `json:"text" description:"Search text submitted to the provider."`
	Limit   int               `json:"limit,omitempty" description:"Maximum number of results to return."`
	Filters map[string]string `json:"filters,omitempty" description:"Provider-specific filter key/value pairs."`
}

// ToolResult is the uniform result shape all providers normalize into.
type ToolResult struct {
	Title    string         `json:"title"`
	URL      string         `json:"url,omitempty"`
	Snippet  string         `json:"snippet,omitempty"`
	Source   string         `json:"source,omitempty"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToolFailure carries the normalized kind plus human-readable detail.
type ToolFailure struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

// ToolOutcome is the terminal result of one gateway invocation: either a
// result list or a normalized failure, never both. Attempts counts the
// gateway calls spent including retries.
type ToolOutcome struct {
	Provider string        `json:"provider"`
	Results  []ToolResult  `json:"results,omitempty"`
	Failure  *ToolFailure  `json:"failure,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// Success constructs a successful outcome for provider with results.
func Success(provider string, results []ToolResult) ToolOutcome {
	return ToolOutcome{Provider: provider, Results: results, Attempts: 1}
}

// Failed constructs a failure outcome of the given kind.
func Failed(provider string, kind FailureKind, detail string) ToolOutcome {
	return ToolOutcome{Provider: provider, Failure: &ToolFailure{Kind: kind, Detail: detail}, Attempts: 1}
}

// OK reports whether the outcome is a success.
func (o ToolOutcome) OK() bool { return o.Failure == nil }

// Err converts a failure outcome into a *ToolFailureError, or nil for
// success. Convenient for error aggregation inside agents.
func (o ToolOutcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return &ToolFailureError{Provider: o.Provider, Kind: o.Failure.Kind, Detail: o.Failure.Detail}
}

// ToolFailureError is the error form of a normalized provider failure.
// Providers return it for conditions only they can classify (HTTP status
// codes, payload decode errors); the gateway maps everything else.
type ToolFailureError struct {
	Provider string
	Kind     FailureKind
	Detail   string
}

// Error implements the error interface with a stable, parseable format.
func (e *ToolFailureError) Error() string {
	return fmt.Sprintf("tool failure [%s] from %s: %s", e.Kind, e.Provider, e.Detail)
}

// ToolCall is the ephemeral record of one provider invocation, kept for the
// duration of the owning agent's execution and folded into task bookkeeping.
type ToolCall struct {
	ID        string      `json:"id"`
	Provider  string      `json:"provider"`
	Query     ToolQuery   `json:"query"`
	Outcome   ToolOutcome `json:"outcome"`
	StartedAt time.Time   `json:"started_at"`
}

// ToolCaller is the contract through which agents reach external providers.
// Implementations must normalize every failure into the ToolOutcome
// taxonomy; the error return is reserved for contract violations (unknown
// provider, query failing schema validation).
type ToolCaller interface {
	Invoke(ctx context.Context, providerID string, q ToolQuery) (ToolOutcome, error)
}
