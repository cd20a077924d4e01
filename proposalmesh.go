// Package proposalmesh provides a high-level façade over the pipeline
// Coordinator and its supporting services (tool gateway, run store, document
// archive, logging) enabling rapid construction of research-and-proposal
// pipelines. Most applications interact with this package by:
//  1. Creating a ProposalMesh via New() with the providers they hold
//     credentials for (optionally overriding stores, archive or graph)
//  2. Submitting requests asynchronously (Submit) or synchronously
//     (SubmitAndWait)
//  3. Observing progress through Status, Watch and Wait
//
// The façade delegates orchestration to engine.Coordinator while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable run store, an
// object-store archive and a structured logger.
package proposalmesh

import (
	"context"

	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/engine"
	"github.com/hupe1980/proposalmesh/gateway"
	"github.com/hupe1980/proposalmesh/logging"
	"github.com/hupe1980/proposalmesh/stage"
)

// Options configures the ProposalMesh instance.
type Options struct {
	// EngineConfig carries the operational parameters (concurrency, wait
	// budgets, retry policy, retention).
	EngineConfig engine.Config

	// Providers are registered on the internal gateway. Calls addressed to
	// a provider that was never registered are contract violations and fail
	// the calling agent; degraded operation covers provider failures, not
	// missing wiring.
	Providers []gateway.Provider

	// Caller overrides the internal gateway + retrying caller entirely.
	// When set, Providers is ignored.
	Caller core.ToolCaller

	// Agents overrides the default four pipeline agents.
	Agents []core.Agent

	// Graph overrides the default stage dependency graph.
	Graph *stage.Graph

	// RunStore overrides the in-memory run store.
	RunStore core.RunStore

	// Archive, when set, receives rendered proposals of finished runs.
	Archive core.DocumentArchive

	// Logger defaults to a NoOp logger if nil.
	Logger logging.Logger
}

// ProposalMesh is the high-level façade aggregating the coordinator and its
// services.
type ProposalMesh struct {
	opts        Options
	coordinator *engine.Coordinator
}

// New creates a new ProposalMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation; the tool caller
// is assembled from the given providers behind the retry policy in
// EngineConfig.
func New(optFns ...func(o *Options)) (*ProposalMesh, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	caller := opts.Caller
	if caller == nil {
		gw := gateway.New(func(o *gateway.Options) {
			o.CallTimeout = opts.EngineConfig.CallTimeout
			o.ProviderConcurrency = opts.EngineConfig.ProviderConcurrency
			o.Logger = opts.Logger
		})
		for _, p := range opts.Providers {
			if err := gw.Register(p); err != nil {
				return nil, err
			}
		}
		caller = gateway.NewRetryingCaller(gw, func(o *gateway.RetryingCallerOptions) {
			o.Policy = gateway.CallPolicy{
				MaxAttempts: opts.EngineConfig.MaxCallAttempts,
				BaseDelay:   opts.EngineConfig.RetryBaseDelay,
			}
			o.Logger = opts.Logger
		})
	}

	coordinator, err := engine.New(caller, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Logger = opts.Logger
		o.Archive = opts.Archive
		if opts.Agents != nil {
			o.Agents = opts.Agents
		}
		if opts.Graph != nil {
			o.Graph = opts.Graph
		}
		if opts.RunStore != nil {
			o.Store = opts.RunStore
		}
	})
	if err != nil {
		return nil, err
	}

	return &ProposalMesh{opts: opts, coordinator: coordinator}, nil
}

// Submit starts an asynchronous pipeline run and returns its ID.
func (m *ProposalMesh) Submit(ctx context.Context, req core.Request) (string, error) {
	return m.coordinator.Submit(ctx, req)
}

// SubmitAndWait is a synchronous helper: it submits the request, waits for
// the run to reach a terminal status and returns the resulting document.
// When ctx expires the run keeps executing in the background; its outcome
// stays retrievable through Result.
func (m *ProposalMesh) SubmitAndWait(ctx context.Context, req core.Request) (*core.ProposalDocument, error) {
	runID, err := m.coordinator.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := m.coordinator.Wait(ctx, runID); err != nil {
		return nil, err
	}
	return m.coordinator.Result(runID)
}

// Status returns a snapshot of the run's bookkeeping.
func (m *ProposalMesh) Status(runID string) (*core.PipelineRun, error) {
	return m.coordinator.Status(runID)
}

// Result returns the final document of a terminal run. It reports
// core.ErrNotReady while the run is in flight and *core.RunFailedError for
// terminal runs without a document.
func (m *ProposalMesh) Result(runID string) (*core.ProposalDocument, error) {
	return m.coordinator.Result(runID)
}

// Cancel aborts an in-flight run and discards its artifacts.
func (m *ProposalMesh) Cancel(runID string) error {
	return m.coordinator.Cancel(runID)
}

// Watch subscribes to the run's live event stream.
func (m *ProposalMesh) Watch(runID string) (<-chan core.RunEvent, func(), error) {
	return m.coordinator.Watch(runID)
}

// Wait blocks until the run is terminal or ctx is done.
func (m *ProposalMesh) Wait(ctx context.Context, runID string) (*core.PipelineRun, error) {
	return m.coordinator.Wait(ctx, runID)
}

// Close cancels all in-flight runs and releases coordinator resources.
func (m *ProposalMesh) Close() error {
	return m.coordinator.Close()
}
