package core

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/proposalmesh/logging"
)

// TaskContext carries execution state and helpers for one agent task. It
// encapsulates the per-task execution scope passed to an Agent's Run method:
//
//   - The ambient cancellation Context
//   - Identifiers (RunID, agent Kind) and the original Request
//   - The dependency subset of prior artifacts, plus the reasons any
//     dependency is absent (failed upstream, wait budget expired)
//   - The ToolCaller through which all provider calls are issued
//   - The per-run CallBudget and the tool-call log
//
// Dependency artifacts are seeded by the coordinator before dispatch and are
// read-only. CallTool is safe for concurrent use; agents routinely fan
// provider calls out across goroutines.
type TaskContext struct {
	Context context.Context
	RunID   string
	Kind    AgentKind
	Request Request
	Tools   ToolCaller
	Budget  *CallBudget
	Logger  logging.Logger

	mu        sync.Mutex
	artifacts map[ArtifactKind]Artifact
	missing   map[ArtifactKind]string
	calls     []ToolCall
}

// NewTaskContext constructs a TaskContext with empty dependency and call
// logs. A nil logger is replaced with a NoOpLogger.
func NewTaskContext(ctx context.Context, runID string, kind AgentKind, req Request, tools ToolCaller, logger logging.Logger) *TaskContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &TaskContext{
		Context:   ctx,
		RunID:     runID,
		Kind:      kind,
		Request:   req,
		Tools:     tools,
		Logger:    logger,
		artifacts: make(map[ArtifactKind]Artifact),
		missing:   make(map[ArtifactKind]string),
	}
}

// Done mirrors context.Context's Done.
func (tc *TaskContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TaskContext) Err() error { return tc.Context.Err() }

// PutDependency seeds a dependency artifact. Called by the coordinator
// before dispatch; agents must not call it.
func (tc *TaskContext) PutDependency(a Artifact) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.artifacts[a.Kind()] = a
}

// MarkMissing records why a dependency artifact is absent (upstream failure
// or expired wait budget) so the agent can degrade that portion of its
// output.
func (tc *TaskContext) MarkMissing(kind ArtifactKind, reason string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.missing[kind] = reason
}

// Artifact returns the dependency artifact of the given kind if present.
func (tc *TaskContext) Artifact(kind ArtifactKind) (Artifact, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	a, ok := tc.artifacts[kind]
	return a, ok
}

// MissingReason returns the recorded absence reason for a dependency kind.
func (tc *TaskContext) MissingReason(kind ArtifactKind) (string, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	reason, ok := tc.missing[kind]
	return reason, ok
}

// ResearchProfile returns the seeded research profile dependency, if any.
func (tc *TaskContext) ResearchProfile() (*ResearchProfile, bool) {
	a, ok := tc.Artifact(ArtifactResearchProfile)
	if !ok {
		return nil, false
	}
	p, ok := a.(*ResearchProfile)
	return p, ok
}

// MarketTrends returns the seeded market trends dependency, if any.
func (tc *TaskContext) MarketTrends() (*MarketTrendsReport, bool) {
	a, ok := tc.Artifact(ArtifactMarketTrends)
	if !ok {
		return nil, false
	}
	m, ok := a.(*MarketTrendsReport)
	return m, ok
}

// Resources returns the seeded resource bundle dependency, if any.
func (tc *TaskContext) Resources() (*ResourceBundle, bool) {
	a, ok := tc.Artifact(ArtifactResourceBundle)
	if !ok {
		return nil, false
	}
	b, ok := a.(*ResourceBundle)
	return b, ok
}

// CallTool invokes a provider through the configured ToolCaller, charging
// the run's call budget and recording the ToolCall. The error return is
// reserved for contract violations (unknown provider, invalid query); all
// provider failures arrive normalized inside the outcome.
func (tc *TaskContext) CallTool(providerID string, q ToolQuery) (ToolOutcome, error) {
	started := time.Now().UTC()

	if tc.Budget != nil {
		if err := tc.Budget.Increment(); err != nil {
			outcome := Failed(providerID, FailureRateLimited, err.Error())
			tc.record(providerID, q, outcome, started)
			return outcome, nil
		}
	}

	outcome, err := tc.Tools.Invoke(tc.Context, providerID, q)
	if err != nil {
		tc.Logger.Warn("tool.call.rejected", "run_id", tc.RunID, "provider", providerID, "error", err)
		return ToolOutcome{Provider: providerID}, err
	}

	tc.record(providerID, q, outcome, started)
	return outcome, nil
}

// record appends a ToolCall entry under the context lock.
func (tc *TaskContext) record(providerID string, q ToolQuery, outcome ToolOutcome, started time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.calls = append(tc.calls, ToolCall{
		ID:        NewID(),
		Provider:  providerID,
		Query:     q,
		Outcome:   outcome,
		StartedAt: started,
	})
}

// ToolCalls returns a copy of the tool-call log.
func (tc *TaskContext) ToolCalls() []ToolCall {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	calls := make([]ToolCall, len(tc.calls))
	copy(calls, tc.calls)
	return calls
}

// RetrySpend sums the retries consumed across all recorded calls (attempts
// beyond the first per call). Folded into AgentTask.RetryCount.
func (tc *TaskContext) RetrySpend() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	spend := 0
	for _, c := range tc.calls {
		if c.Outcome.Attempts > 1 {
			spend += c.Outcome.Attempts - 1
		}
	}
	return spend
}
