// Package agent implements the four pipeline agents: Research,
// MarketStandards, ResourceAsset and FinalProposal. Each agent is a pure
// consumer of its TaskContext: it fans provider calls out concurrently,
// joins every goroutine before returning, and assembles its artifact from
// whatever subset of calls succeeded. An agent fails only when every call
// it depends on is exhausted (or, for FinalProposal, on an internal
// assembly defect).
package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/proposalmesh/core"
)

// providerCall pairs a provider ID with the query to submit.
type providerCall struct {
	Provider string
	Query    core.ToolQuery
}

// fanOut issues all calls concurrently through tc.CallTool and returns the
// outcomes in call order. All goroutines are joined before returning;
// the first contract violation encountered (if any) is returned after the
// join, along with any cancellation of the task context.
func fanOut(tc *core.TaskContext, calls []providerCall) ([]core.ToolOutcome, error) {
	var wg sync.WaitGroup
	outcomes := make([]core.ToolOutcome, len(calls))
	errCh := make(chan error, len(calls))

	for i, c := range calls {
		wg.Add(1)
		go func(idx int, pc providerCall) {
			defer wg.Done()

			out, err := tc.CallTool(pc.Provider, pc.Query)
			if err != nil {
				errCh <- fmt.Errorf("call to %s rejected: %w", pc.Provider, err)
				return
			}
			outcomes[idx] = out
		}(i, c)
	}

	wg.Wait()
	close(errCh)

	if len(errCh) > 0 {
		return outcomes, <-errCh
	}
	if err := tc.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// splitOutcomes partitions outcomes into successes and failures.
func splitOutcomes(outcomes []core.ToolOutcome) (ok, failed []core.ToolOutcome) {
	for _, o := range outcomes {
		if o.OK() {
			ok = append(ok, o)
		} else {
			failed = append(failed, o)
		}
	}
	return ok, failed
}

// failureSummary renders failed outcomes as a single semicolon-joined
// detail string for degradation notes and error messages.
func failureSummary(failed []core.ToolOutcome) string {
	parts := make([]string, 0, len(failed))
	for _, o := range failed {
		parts = append(parts, o.Err().Error())
	}
	return strings.Join(parts, "; ")
}

// exhausted builds the error for an agent whose every provider call failed.
func exhausted(kind core.AgentKind, failed []core.ToolOutcome) *core.AgentError {
	return core.NewAgentError(kind, core.AgentErrCallsExhausted, failureSummary(failed))
}
