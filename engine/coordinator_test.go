package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/proposalmesh/core"
)

// stubCaller satisfies core.ToolCaller for coordinator tests; the stub
// agents below never reach it.
type stubCaller struct{}

var _ core.ToolCaller = stubCaller{}

func (stubCaller) Invoke(_ context.Context, providerID string, _ core.ToolQuery) (core.ToolOutcome, error) {
	return core.Success(providerID, nil), nil
}

// stubAgent executes a scripted function for its kind.
type stubAgent struct {
	kind core.AgentKind
	run  func(tc *core.TaskContext) (core.Artifact, error)
}

var _ core.Agent = (*stubAgent)(nil)

func (a *stubAgent) Kind() core.AgentKind { return a.kind }

func (a *stubAgent) Run(tc *core.TaskContext) (core.Artifact, error) { return a.run(tc) }

func succeedAgent(kind core.AgentKind, artifact core.Artifact) *stubAgent {
	return &stubAgent{kind: kind, run: func(_ *core.TaskContext) (core.Artifact, error) {
		return artifact, nil
	}}
}

func failAgent(kind core.AgentKind, err error) *stubAgent {
	return &stubAgent{kind: kind, run: func(_ *core.TaskContext) (core.Artifact, error) {
		return nil, err
	}}
}

// blockAgent parks until the task context is canceled.
func blockAgent(kind core.AgentKind) *stubAgent {
	return &stubAgent{kind: kind, run: func(tc *core.TaskContext) (core.Artifact, error) {
		<-tc.Done()
		return nil, tc.Err()
	}}
}

// gatedAgent parks until the gate closes, then succeeds.
func gatedAgent(kind core.AgentKind, artifact core.Artifact, gate <-chan struct{}) *stubAgent {
	return &stubAgent{kind: kind, run: func(tc *core.TaskContext) (core.Artifact, error) {
		select {
		case <-gate:
			return artifact, nil
		case <-tc.Done():
			return nil, tc.Err()
		}
	}}
}

// finalObservation records what the final-proposal stub saw at dispatch.
type finalObservation struct {
	mu                   sync.Mutex
	sawProfile           bool
	sawTrends            bool
	sawResources         bool
	missingProfileReason string
}

// assemblingFinal mimics the real assembler's contract: it always returns a
// document, complete only when every dependency artifact arrived.
func assemblingFinal(obs *finalObservation) *stubAgent {
	return &stubAgent{kind: core.AgentFinalProposal, run: func(tc *core.TaskContext) (core.Artifact, error) {
		_, hasProfile := tc.ResearchProfile()
		_, hasTrends := tc.MarketTrends()
		_, hasResources := tc.Resources()

		if obs != nil {
			obs.mu.Lock()
			obs.sawProfile = hasProfile
			obs.sawTrends = hasTrends
			obs.sawResources = hasResources
			obs.missingProfileReason, _ = tc.MissingReason(core.ArtifactResearchProfile)
			obs.mu.Unlock()
		}

		doc := &core.ProposalDocument{
			Company:  tc.Request.Company,
			Industry: tc.Request.Industry,
			Complete: hasProfile && hasTrends && hasResources,
		}
		if !doc.Complete {
			doc.MissingSections = []string{"Company Summary"}
		}
		return doc, nil
	}}
}

func profileArtifact() *core.ResearchProfile {
	return &core.ResearchProfile{Company: "Acme Logistics", Industry: "supply-chain", Overview: "Acme moves freight."}
}

func trendsArtifact() *core.MarketTrendsReport {
	return &core.MarketTrendsReport{Industry: "supply-chain", Trends: []core.MarketTrend{{Title: "Predictive ETA"}}}
}

func bundleArtifact() *core.ResourceBundle {
	return &core.ResourceBundle{SearchTerms: []string{"supply-chain"}}
}

// testAgents returns a full agent set where every stage succeeds, with the
// given overrides applied by kind.
func testAgents(overrides ...core.Agent) []core.Agent {
	byKind := map[core.AgentKind]core.Agent{
		core.AgentResearch:        succeedAgent(core.AgentResearch, profileArtifact()),
		core.AgentMarketStandards: succeedAgent(core.AgentMarketStandards, trendsArtifact()),
		core.AgentResourceAsset:   succeedAgent(core.AgentResourceAsset, bundleArtifact()),
		core.AgentFinalProposal:   assemblingFinal(nil),
	}
	for _, o := range overrides {
		byKind[o.Kind()] = o
	}

	agents := make([]core.Agent, 0, len(byKind))
	for _, kind := range core.AgentKinds() {
		agents = append(agents, byKind[kind])
	}
	return agents
}

func fastConfig() Config {
	cfg := DefaultConfig
	cfg.MaxConcurrentTasks = 4
	cfg.DependencyWait = 50 * time.Millisecond
	cfg.MaxRunDuration = 2 * time.Second
	cfg.EventBufferSize = 16
	return cfg
}

func newTestCoordinator(t *testing.T, cfg Config, agents []core.Agent) *Coordinator {
	t.Helper()

	c, err := New(stubCaller{}, func(o *Options) {
		o.Config = cfg
		o.Agents = agents
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func testRequest() core.Request {
	return core.Request{Company: "Acme Logistics", Industry: "supply-chain"}
}

func waitTerminal(t *testing.T, c *Coordinator, runID string) *core.PipelineRun {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run, err := c.Wait(ctx, runID)
	require.NoError(t, err)
	return run
}

func TestNewRequiresCaller(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool caller is required")
}

func TestNewRequiresAgentCoverage(t *testing.T) {
	_, err := New(stubCaller{}, func(o *Options) {
		o.Agents = []core.Agent{succeedAgent(core.AgentResearch, profileArtifact())}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no agent registered")
}

func TestSubmitValidatesRequest(t *testing.T) {
	c := newTestCoordinator(t, fastConfig(), testAgents())

	_, err := c.Submit(context.Background(), core.Request{Industry: "supply-chain"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company is required")
}

func TestRunCompletesWhenAllAgentsSucceed(t *testing.T) {
	c := newTestCoordinator(t, fastConfig(), testAgents())

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	run := waitTerminal(t, c, id)
	assert.Equal(t, core.RunCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)

	for _, kind := range core.AgentKinds() {
		assert.Equal(t, core.TaskSucceeded, run.Tasks[kind].Status, "task %s", kind)
	}

	doc, err := c.Result(id)
	require.NoError(t, err)
	assert.True(t, doc.Complete)
	assert.Equal(t, "Acme Logistics", doc.Company)
}

func TestRunPartiallyFailedWhenAgentFails(t *testing.T) {
	obs := &finalObservation{}
	agents := testAgents(
		failAgent(core.AgentResourceAsset, errors.New("all registry calls exhausted")),
		assemblingFinal(obs),
	)
	c := newTestCoordinator(t, fastConfig(), agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	run := waitTerminal(t, c, id)
	assert.Equal(t, core.RunPartiallyFailed, run.Status)
	assert.Equal(t, core.TaskFailed, run.Tasks[core.AgentResourceAsset].Status)
	assert.Contains(t, run.Tasks[core.AgentResourceAsset].LastError, "exhausted")
	assert.Equal(t, core.TaskSucceeded, run.Tasks[core.AgentFinalProposal].Status)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.True(t, obs.sawProfile)
	assert.True(t, obs.sawTrends)
	assert.False(t, obs.sawResources)

	doc, err := c.Result(id)
	require.NoError(t, err)
	assert.False(t, doc.Complete)
	assert.NotEmpty(t, doc.MissingSections)
}

// A total research failure must degrade its dependents, never fail the run:
// the resource agent dispatches without the profile and the final proposal
// still assembles.
func TestResearchFailureDegradesDependentsNotTheRun(t *testing.T) {
	obs := &finalObservation{}
	agents := testAgents(
		failAgent(core.AgentResearch, errors.New("every research call failed")),
		assemblingFinal(obs),
	)
	c := newTestCoordinator(t, fastConfig(), agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	run := waitTerminal(t, c, id)
	assert.Equal(t, core.RunPartiallyFailed, run.Status)
	assert.Equal(t, core.TaskFailed, run.Tasks[core.AgentResearch].Status)
	assert.Equal(t, core.TaskSucceeded, run.Tasks[core.AgentResourceAsset].Status)
	assert.Equal(t, core.TaskSucceeded, run.Tasks[core.AgentFinalProposal].Status)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.False(t, obs.sawProfile)
	assert.True(t, obs.sawTrends)
	assert.True(t, obs.sawResources)
	assert.Contains(t, obs.missingProfileReason, "every research call failed")
}

func TestRunFailedWhenFinalProposalFails(t *testing.T) {
	agents := testAgents(failAgent(core.AgentFinalProposal, errors.New("assembler defect")))
	c := newTestCoordinator(t, fastConfig(), agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	run := waitTerminal(t, c, id)
	assert.Equal(t, core.RunFailed, run.Status)
	assert.Contains(t, run.FailureReason, "assembler defect")

	_, err = c.Result(id)
	var rfe *core.RunFailedError
	require.ErrorAs(t, err, &rfe)
	assert.Equal(t, core.RunFailed, rfe.Status)
}

func TestCancelDiscardsArtifactsAndSkipsPendingTasks(t *testing.T) {
	researchDone := make(chan struct{})
	research := &stubAgent{kind: core.AgentResearch, run: func(_ *core.TaskContext) (core.Artifact, error) {
		defer close(researchDone)
		return profileArtifact(), nil
	}}
	agents := testAgents(research, blockAgent(core.AgentMarketStandards))

	// A generous wait budget keeps the final stage Waiting until Cancel.
	cfg := fastConfig()
	cfg.DependencyWait = time.Second
	c := newTestCoordinator(t, cfg, agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	<-researchDone
	require.NoError(t, c.Cancel(id))

	run := waitTerminal(t, c, id)
	assert.Equal(t, core.RunCanceled, run.Status)
	assert.Empty(t, run.Artifacts)
	assert.Equal(t, core.TaskFailed, run.Tasks[core.AgentMarketStandards].Status)
	assert.Equal(t, core.TaskSkipped, run.Tasks[core.AgentFinalProposal].Status)

	_, err = c.Result(id)
	var rfe *core.RunFailedError
	require.ErrorAs(t, err, &rfe)
	assert.Equal(t, core.RunCanceled, rfe.Status)

	// Canceling a terminal run is a no-op.
	assert.NoError(t, c.Cancel(id))
}

func TestCancelUnknownRun(t *testing.T) {
	c := newTestCoordinator(t, fastConfig(), testAgents())

	err := c.Cancel("no-such-run")
	require.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestWatchDeliversEventsUntilTerminal(t *testing.T) {
	gate := make(chan struct{})
	agents := testAgents(gatedAgent(core.AgentResearch, profileArtifact(), gate))

	// A generous wait budget prevents degraded dispatch while the gate is
	// closed, so the run completes cleanly once research is released.
	cfg := fastConfig()
	cfg.DependencyWait = time.Second
	c := newTestCoordinator(t, cfg, agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	ch, cancel, err := c.Watch(id)
	require.NoError(t, err)
	defer cancel()

	close(gate)

	var events []core.RunEvent
	deadline := time.After(5 * time.Second)
collect:
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				break collect
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("event stream never closed")
		}
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, core.EventRunFinished, last.Type)
	assert.Equal(t, core.RunCompleted, last.RunStatus)

	sawTask := false
	for _, ev := range events {
		if ev.Type == core.EventTaskStatus {
			sawTask = true
			break
		}
	}
	assert.True(t, sawTask, "expected at least one task.status event")
}

func TestWatchTerminalRunYieldsClosedChannel(t *testing.T) {
	c := newTestCoordinator(t, fastConfig(), testAgents())

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	waitTerminal(t, c, id)

	ch, cancel, err := c.Watch(id)
	require.NoError(t, err)
	defer cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestWatchUnknownRun(t *testing.T) {
	c := newTestCoordinator(t, fastConfig(), testAgents())

	_, _, err := c.Watch("no-such-run")
	require.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestWaitHonorsContext(t *testing.T) {
	agents := testAgents(blockAgent(core.AgentResearch))
	c := newTestCoordinator(t, fastConfig(), agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = c.Wait(ctx, id)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, c.Cancel(id))
	waitTerminal(t, c, id)
}

func TestResultNotReadyWhileRunning(t *testing.T) {
	agents := testAgents(blockAgent(core.AgentResearch))
	c := newTestCoordinator(t, fastConfig(), agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	_, err = c.Result(id)
	require.ErrorIs(t, err, core.ErrNotReady)

	require.NoError(t, c.Cancel(id))
	waitTerminal(t, c, id)
}

func TestDependencyWaitExpiryDegradesDownstream(t *testing.T) {
	slowResearch := &stubAgent{kind: core.AgentResearch, run: func(tc *core.TaskContext) (core.Artifact, error) {
		select {
		case <-time.After(300 * time.Millisecond):
			return profileArtifact(), nil
		case <-tc.Done():
			return nil, tc.Err()
		}
	}}
	obs := &finalObservation{}
	agents := testAgents(slowResearch, assemblingFinal(obs))
	c := newTestCoordinator(t, fastConfig(), agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	run := waitTerminal(t, c, id)

	// Downstream stages proceeded without the late profile; the run is
	// partial even though research eventually succeeded.
	assert.Equal(t, core.RunPartiallyFailed, run.Status)
	assert.Equal(t, core.TaskSucceeded, run.Tasks[core.AgentResearch].Status)
	assert.Equal(t, core.TaskSucceeded, run.Tasks[core.AgentFinalProposal].Status)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.False(t, obs.sawProfile)
	assert.True(t, obs.sawTrends)
	assert.Contains(t, obs.missingProfileReason, "expired")
}

func TestWatchdogUnblocksStuckAgents(t *testing.T) {
	cfg := fastConfig()
	cfg.DependencyWait = 20 * time.Millisecond
	cfg.MaxRunDuration = 100 * time.Millisecond

	agents := testAgents(blockAgent(core.AgentResearch))
	c := newTestCoordinator(t, cfg, agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	run := waitTerminal(t, c, id)

	// The watchdog cancels stuck agents but the run still terminates
	// through the normal degraded path, not as canceled.
	assert.Equal(t, core.RunPartiallyFailed, run.Status)
	assert.Equal(t, core.TaskFailed, run.Tasks[core.AgentResearch].Status)
	assert.Equal(t, core.TaskSucceeded, run.Tasks[core.AgentFinalProposal].Status)
}

func TestConcurrencyLimitRespected(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrentTasks = 1

	var (
		mu       sync.Mutex
		inflight int
		peak     int
	)
	tracked := func(kind core.AgentKind, artifact core.Artifact) *stubAgent {
		return &stubAgent{kind: kind, run: func(_ *core.TaskContext) (core.Artifact, error) {
			mu.Lock()
			inflight++
			if inflight > peak {
				peak = inflight
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			inflight--
			mu.Unlock()
			return artifact, nil
		}}
	}

	agents := testAgents(
		tracked(core.AgentResearch, profileArtifact()),
		tracked(core.AgentMarketStandards, trendsArtifact()),
		tracked(core.AgentResourceAsset, bundleArtifact()),
	)
	c := newTestCoordinator(t, cfg, agents)

	id, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	waitTerminal(t, c, id)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, peak)
}

func TestSubmitAfterClose(t *testing.T) {
	c, err := New(stubCaller{}, func(o *Options) {
		o.Config = fastConfig()
		o.Agents = testAgents()
	})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Submit(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}
