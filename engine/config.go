package engine

import "time"

// Config defines tuning parameters for pipeline execution. The Coordinator
// consumes the scheduling half directly; the gateway-facing half
// (CallTimeout, MaxCallAttempts, RetryBaseDelay, ProviderConcurrency) is
// read by the proposalmesh façade when it wires the tool gateway, and is
// carried here so one struct describes a deployment end to end.
type Config struct {
	// MaxConcurrentTasks bounds agent executions across all runs. Zero
	// means unlimited.
	MaxConcurrentTasks int

	// DependencyWait is how long a task may wait for a pending dependency
	// before the coordinator degrades or skips it.
	DependencyWait time.Duration

	// MaxRunDuration is the watchdog budget for a whole run. When it
	// expires, in-flight provider calls are aborted and the run is driven
	// to a terminal state with whatever has been produced.
	MaxRunDuration time.Duration

	// CallTimeout bounds each provider call.
	CallTimeout time.Duration

	// MaxCallAttempts is the per-call attempt ceiling for retryable
	// failures.
	MaxCallAttempts int

	// RetryBaseDelay is the base for exponential retry backoff.
	RetryBaseDelay time.Duration

	// ProviderConcurrency bounds concurrent in-flight calls per provider.
	ProviderConcurrency int

	// MaxToolCallsPerRun caps total provider calls per run across all
	// agents, retries included. Zero means unlimited.
	MaxToolCallsPerRun int

	// Retention is how long terminal runs stay queryable in the default
	// in-memory store.
	Retention time.Duration

	// MaxRetainedRuns caps retained terminal runs in the default store.
	MaxRetainedRuns int

	// EventBufferSize is the per-watcher event channel buffer.
	EventBufferSize int
}

// DefaultConfig provides production-ready defaults: enough parallelism for
// the four-agent graph across a handful of concurrent runs, wait budgets
// well under the run watchdog, and bounded retention.
var DefaultConfig = Config{
	MaxConcurrentTasks:  8,
	DependencyWait:      45 * time.Second,
	MaxRunDuration:      5 * time.Minute,
	CallTimeout:         30 * time.Second,
	MaxCallAttempts:     3,
	RetryBaseDelay:      300 * time.Millisecond,
	ProviderConcurrency: 4,
	MaxToolCallsPerRun:  64,
	Retention:           time.Hour,
	MaxRetainedRuns:     1024,
	EventBufferSize:     64,
}
