package gateway

import (
	"context"
	"time"

	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/logging"
)

// CallPolicy bounds retries of transient tool failures. Attempts beyond the
// first back off exponentially from BaseDelay (base, 2*base, 4*base, ...).
type CallPolicy struct {
	// MaxAttempts is the total number of gateway calls allowed per Invoke,
	// including the first. Values below 1 are treated as 1.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt.
	BaseDelay time.Duration
}

// DefaultCallPolicy returns the policy used when none is configured.
func DefaultCallPolicy() CallPolicy {
	return CallPolicy{MaxAttempts: 3, BaseDelay: 300 * time.Millisecond}
}

// RetryingCallerOptions configure a RetryingCaller.
type RetryingCallerOptions struct {
	Policy CallPolicy
	Logger logging.Logger
	// Sleep waits for d or until ctx is done. Injectable for deterministic
	// tests; defaults to a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RetryingCaller wraps a Gateway with the retry policy agents rely on. Only
// failures whose kind is retryable (rate_limited, timeout, transport_error)
// are retried; auth errors, missing results and malformed payloads surface
// immediately. It implements core.ToolCaller.
type RetryingCaller struct {
	gw   *Gateway
	opts RetryingCallerOptions
}

var _ core.ToolCaller = (*RetryingCaller)(nil)

// NewRetryingCaller wraps gw with retry behavior.
func NewRetryingCaller(gw *Gateway, optFns ...func(o *RetryingCallerOptions)) *RetryingCaller {
	opts := RetryingCallerOptions{
		Policy: DefaultCallPolicy(),
		Logger: logging.NoOpLogger{},
		Sleep:  sleepContext,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy.MaxAttempts = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &RetryingCaller{gw: gw, opts: opts}
}

// Invoke calls the gateway, retrying retryable failures per policy. The
// returned outcome carries the total attempts spent and the elapsed wall
// time across all attempts. Contract-violation errors from the gateway are
// returned unchanged and never retried.
func (c *RetryingCaller) Invoke(ctx context.Context, providerID string, q core.ToolQuery) (core.ToolOutcome, error) {
	start := time.Now()
	attempts := 0

	var out core.ToolOutcome
	for i := 0; i < c.opts.Policy.MaxAttempts; i++ {
		attempts++

		var err error
		out, err = c.gw.Invoke(ctx, providerID, q)
		if err != nil {
			return out, err
		}
		if out.OK() || !out.Failure.Kind.Retryable() {
			break
		}
		if i == c.opts.Policy.MaxAttempts-1 {
			break
		}

		delay := c.opts.Policy.BaseDelay * time.Duration(1<<i)
		c.opts.Logger.Debug("gateway.call.retry",
			"provider", providerID,
			"attempt", attempts,
			"kind", string(out.Failure.Kind),
			"delay_ms", delay.Milliseconds())

		if err := c.opts.Sleep(ctx, delay); err != nil {
			// Canceled mid-backoff: report the last failure as final.
			break
		}
	}

	out.Attempts = attempts
	out.Duration = time.Since(start)
	return out, nil
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
