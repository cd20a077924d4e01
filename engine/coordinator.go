package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/proposalmesh/agent"
	"github.com/hupe1980/proposalmesh/assembler"
	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/logging"
	"github.com/hupe1980/proposalmesh/runstore"
	"github.com/hupe1980/proposalmesh/stage"
)

// Options configure a Coordinator.
type Options struct {
	// Config contains the operational parameters. Defaults to
	// DefaultConfig.
	Config Config

	// Agents are the executable agent implementations, one per stage-graph
	// node. Defaults to the four pipeline agents with their default
	// provider IDs.
	Agents []core.Agent

	// Graph declares the dependency structure between agents. Defaults to
	// stage.Default().
	Graph *stage.Graph

	// Store persists run bookkeeping. Defaults to an in-memory store
	// honoring Config retention.
	Store core.RunStore

	// Archive, when set, receives the rendered proposal of every run that
	// produced a document. Nil disables archiving.
	Archive core.DocumentArchive

	// Logger defaults to a NoOpLogger.
	Logger logging.Logger
}

// Coordinator owns the lifecycle of pipeline runs. All public methods are
// safe for concurrent use; per-run mutation happens exclusively inside that
// run's loop goroutine.
type Coordinator struct {
	config  Config
	caller  core.ToolCaller
	graph   *stage.Graph
	store   core.RunStore
	archive core.DocumentArchive
	logger  logging.Logger
	agents  map[core.AgentKind]core.Agent

	sem chan struct{}
	hub *watchHub

	mu     sync.Mutex
	active map[string]*activeRun
	closed bool
	wg     sync.WaitGroup
}

// activeRun tracks an in-flight run loop for cancellation and waiting.
type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Coordinator around the given tool caller. The caller is
// how every agent reaches its providers; routing happens by provider ID, so
// a gateway.RetryingCaller over a configured gateway is the usual choice.
func New(caller core.ToolCaller, optFns ...func(o *Options)) (*Coordinator, error) {
	opts := Options{
		Config: DefaultConfig,
		Graph:  stage.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if caller == nil {
		return nil, fmt.Errorf("engine: tool caller is required")
	}
	if err := opts.Graph.Validate(); err != nil {
		return nil, err
	}
	if opts.Agents == nil {
		opts.Agents = []core.Agent{
			agent.NewResearch(),
			agent.NewMarketStandards(),
			agent.NewResourceAsset(),
			agent.NewFinalProposal(),
		}
	}
	if opts.Store == nil {
		opts.Store = runstore.NewInMemoryStore(func(o *runstore.InMemoryOptions) {
			o.MaxRetainedRuns = opts.Config.MaxRetainedRuns
			o.Retention = opts.Config.Retention
		})
	}

	agents := make(map[core.AgentKind]core.Agent, len(opts.Agents))
	for _, a := range opts.Agents {
		agents[a.Kind()] = a
	}
	for _, kind := range opts.Graph.Agents() {
		if _, ok := agents[kind]; !ok {
			return nil, fmt.Errorf("engine: no agent registered for %s", kind)
		}
	}

	var sem chan struct{}
	if opts.Config.MaxConcurrentTasks > 0 {
		sem = make(chan struct{}, opts.Config.MaxConcurrentTasks)
	}

	return &Coordinator{
		config:  opts.Config,
		caller:  caller,
		graph:   opts.Graph,
		store:   opts.Store,
		archive: opts.Archive,
		logger:  opts.Logger,
		agents:  agents,
		sem:     sem,
		hub:     newWatchHub(opts.Config.EventBufferSize),
		active:  make(map[string]*activeRun),
	}, nil
}

// Submit validates the request, creates the run and starts its loop. It
// returns as soon as the run is Pending; progress is observable through
// Status, Watch and Wait.
func (c *Coordinator) Submit(ctx context.Context, req core.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	run := core.NewPipelineRun(core.NewID(), req)
	for _, kind := range c.graph.Agents() {
		run.Tasks[kind] = core.NewAgentTask(kind, c.graph.ArtifactKinds(kind))
	}
	if err := c.store.Create(run); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		_ = c.store.Delete(run.ID)
		return "", fmt.Errorf("engine: coordinator is closed")
	}
	c.active[run.ID] = ar
	c.wg.Add(1)
	c.mu.Unlock()

	c.hub.publish(core.NewRunEvent(run.ID, core.EventRunCreated))
	c.logger.Info("run.submitted", "run_id", run.ID, "company", req.Company, "industry", req.Industry)

	go c.runLoop(runCtx, run, ar)

	return run.ID, nil
}

// Status returns a snapshot (clone) of the run's bookkeeping.
func (c *Coordinator) Status(runID string) (*core.PipelineRun, error) {
	return c.store.Get(runID)
}

// Result returns the final document once the run is terminal. It reports
// ErrNotReady while the run is in flight and a RunFailedError for terminal
// runs without a document (Failed and Canceled).
func (c *Coordinator) Result(runID string) (*core.ProposalDocument, error) {
	run, err := c.store.Get(runID)
	if err != nil {
		return nil, err
	}
	if !run.Terminal() {
		return nil, fmt.Errorf("run %s: %w", runID, core.ErrNotReady)
	}
	if doc, ok := run.Document(); ok {
		return doc, nil
	}
	return nil, &core.RunFailedError{RunID: runID, Status: run.Status, Reason: run.FailureReason}
}

// Cancel aborts an in-flight run: its provider calls are interrupted, no
// further tasks dispatch, and produced artifacts are discarded. Canceling
// a terminal run is a no-op.
func (c *Coordinator) Cancel(runID string) error {
	c.mu.Lock()
	ar, ok := c.active[runID]
	c.mu.Unlock()
	if ok {
		ar.cancel()
		return nil
	}

	run, err := c.store.Get(runID)
	if err != nil {
		return err
	}
	if run.Terminal() {
		return nil
	}
	return fmt.Errorf("engine: run %s is not cancellable", runID)
}

// Watch subscribes to the run's event stream from now on; it does not
// replay past events. The channel closes when the run reaches a terminal
// status or the returned cancel function is called.
func (c *Coordinator) Watch(runID string) (<-chan core.RunEvent, func(), error) {
	run, err := c.store.Get(runID)
	if err != nil {
		return nil, nil, err
	}
	if run.Terminal() {
		return closedEventChan(), func() {}, nil
	}

	ch, cancel := c.hub.subscribe(runID)

	// The run may have finished between the snapshot and the subscription;
	// re-check so the caller never waits on a stream nobody will close.
	run, err = c.store.Get(runID)
	if err != nil || run.Terminal() {
		cancel()
		return closedEventChan(), func() {}, nil
	}
	return ch, cancel, nil
}

// Wait blocks until the run reaches a terminal status (returning its final
// snapshot) or the context is done.
func (c *Coordinator) Wait(ctx context.Context, runID string) (*core.PipelineRun, error) {
	c.mu.Lock()
	ar, ok := c.active[runID]
	c.mu.Unlock()

	if !ok {
		return c.store.Get(runID)
	}
	select {
	case <-ar.done:
		return c.store.Get(runID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels all in-flight runs and waits for their loops to finish.
// The coordinator accepts no new submissions afterwards.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	for _, ar := range c.active {
		ar.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func closedEventChan() <-chan core.RunEvent {
	ch := make(chan core.RunEvent)
	close(ch)
	return ch
}

// taskResult carries one agent execution's outcome back into the run loop.
type taskResult struct {
	kind     core.AgentKind
	artifact core.Artifact
	calls    []core.ToolCall
	retries  int
	err      error
}

// runLoop drives one run to a terminal status. It is the only goroutine
// that mutates the run.
func (c *Coordinator) runLoop(ctx context.Context, run *core.PipelineRun, ar *activeRun) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.active, run.ID)
		c.mu.Unlock()
		c.hub.finish(run.ID)
		close(ar.done)
	}()

	// agentCtx bounds provider calls. The watchdog cancels it without
	// cancelling the loop, so the final degraded assembly can still run.
	agentCtx, cancelAgents := context.WithCancel(ctx)
	defer cancelAgents()

	c.setRunStatus(run, core.RunRunning, "")

	budget := core.NewCallBudget(c.config.MaxToolCallsPerRun)
	results := make(chan taskResult)
	missing := make(map[core.ArtifactKind]string)

	waitTimer := time.NewTimer(c.config.DependencyWait)
	defer waitTimer.Stop()
	watchdog := time.NewTimer(c.config.MaxRunDuration)
	defer watchdog.Stop()

	var (
		running     int
		waitExpired bool
		canceled    bool
	)

	for {
		if !canceled {
			running += c.evaluateAndDispatch(ctx, agentCtx, run, budget, missing, results, waitExpired)
		}
		if running == 0 && c.allTasksTerminal(run) {
			break
		}

		select {
		case res := <-results:
			running--
			c.applyResult(run, res, missing)

		case <-waitTimer.C:
			waitExpired = true

		case <-watchdog.C:
			waitExpired = true
			cancelAgents()
			c.logger.Warn("run.watchdog", "run_id", run.ID, "max_run_duration", c.config.MaxRunDuration)

		case <-ctx.Done():
			canceled = true
			cancelAgents()
			c.skipPending(run, "run canceled")
		}
	}

	c.finalize(run, canceled)
}

// evaluateAndDispatch asks the stage graph what can run under the current
// view and dispatches it. Returns the number of workers started.
func (c *Coordinator) evaluateAndDispatch(ctx, agentCtx context.Context, run *core.PipelineRun, budget *core.CallBudget, missing map[core.ArtifactKind]string, results chan<- taskResult, waitExpired bool) int {
	waiting := make([]core.AgentKind, 0, len(run.Tasks))
	for _, kind := range c.graph.Agents() {
		if task, ok := run.Tasks[kind]; ok && task.Status == core.TaskWaiting {
			waiting = append(waiting, kind)
		}
	}
	if len(waiting) == 0 {
		return 0
	}

	view := stage.View{
		States:      make(map[core.ArtifactKind]stage.DepState, len(run.Tasks)),
		WaitExpired: make(map[core.AgentKind]bool, len(waiting)),
	}
	for kind, task := range run.Tasks {
		prod := kind.Produces()
		switch {
		case task.Status == core.TaskSucceeded:
			view.States[prod] = stage.DepAvailable
		case task.Status.Terminal():
			view.States[prod] = stage.DepFailed
		default:
			view.States[prod] = stage.DepPending
		}
	}
	for _, kind := range waiting {
		view.WaitExpired[kind] = waitExpired
	}

	dispatched, changed := 0, false
	for _, d := range c.graph.Evaluate(waiting, view) {
		switch d.Action {
		case stage.ActionSkip:
			c.skipTask(run, d.Agent, d.Skip.Detail)
			missing[d.Agent.Produces()] = d.Skip.Detail
			changed = true

		case stage.ActionDispatch:
			c.dispatch(ctx, agentCtx, run, d, budget, missing, results)
			dispatched++
			changed = true
		}
	}
	if changed {
		c.persist(run)
	}
	return dispatched
}

// dispatch transitions the task to Running, seeds its TaskContext and hands
// it to a worker goroutine.
func (c *Coordinator) dispatch(ctx, agentCtx context.Context, run *core.PipelineRun, d stage.Decision, budget *core.CallBudget, missing map[core.ArtifactKind]string, results chan<- taskResult) {
	task := run.Tasks[d.Agent]
	c.transitionTask(run, task, core.TaskReady, "")

	detail := ""
	if len(d.Degraded) > 0 {
		detail = fmt.Sprintf("degraded: proceeding without %v", d.Degraded)
	}
	now := time.Now().UTC()
	task.StartedAt = &now
	c.transitionTask(run, task, core.TaskRunning, detail)

	tc := core.NewTaskContext(agentCtx, run.ID, d.Agent, run.Request, c.caller, c.logger)
	tc.Budget = budget
	for _, dep := range c.graph.Dependencies(d.Agent) {
		if a, ok := run.Artifacts[dep.Kind]; ok {
			tc.PutDependency(a)
			continue
		}
		reason := missing[dep.Kind]
		if reason == "" {
			reason = "dependency wait expired before the artifact was produced"
		}
		tc.MarkMissing(dep.Kind, reason)
	}

	go c.execute(ctx, c.agents[d.Agent], tc, results)
}

// execute runs one agent under the shared concurrency semaphore and always
// reports back, so the loop's running counter stays exact.
func (c *Coordinator) execute(ctx context.Context, a core.Agent, tc *core.TaskContext, results chan<- taskResult) {
	res := taskResult{kind: a.Kind()}

	if err := c.acquire(ctx); err != nil {
		res.err = err
	} else {
		res.artifact, res.err = a.Run(tc)
		c.release()
		res.calls = tc.ToolCalls()
		res.retries = tc.RetrySpend()
	}

	results <- res
}

// applyResult folds a completed execution into the run.
func (c *Coordinator) applyResult(run *core.PipelineRun, res taskResult, missing map[core.ArtifactKind]string) {
	task := run.Tasks[res.kind]
	now := time.Now().UTC()
	task.FinishedAt = &now
	task.RetryCount = res.retries

	for _, call := range res.calls {
		c.hub.publish(core.NewToolCallEvent(run.ID, res.kind, call))
	}

	if res.err == nil && (res.artifact == nil || res.artifact.Kind() != res.kind.Produces()) {
		res.err = fmt.Errorf("agent %s returned an artifact of unexpected kind", res.kind)
	}

	if res.err != nil {
		task.LastError = res.err.Error()
		missing[res.kind.Produces()] = res.err.Error()
		c.transitionTask(run, task, core.TaskFailed, res.err.Error())
	} else {
		run.Artifacts[res.kind.Produces()] = res.artifact
		c.transitionTask(run, task, core.TaskSucceeded, "")
	}
	c.persist(run)
}

// skipPending skips every task that has not started yet. Used on
// cancellation; running tasks drain through the results channel instead.
func (c *Coordinator) skipPending(run *core.PipelineRun, reason string) {
	for _, kind := range c.graph.Agents() {
		task := run.Tasks[kind]
		if task.Status == core.TaskWaiting || task.Status == core.TaskReady {
			c.skipTask(run, kind, reason)
		}
	}
	c.persist(run)
}

func (c *Coordinator) skipTask(run *core.PipelineRun, kind core.AgentKind, reason string) {
	task := run.Tasks[kind]
	task.LastError = reason
	c.transitionTask(run, task, core.TaskSkipped, reason)
}

// finalize computes the terminal status, persists it and archives the
// document when one was produced.
func (c *Coordinator) finalize(run *core.PipelineRun, canceled bool) {
	if canceled {
		// Produced artifacts are discarded on cancellation; nothing from
		// this run may be observed as a result.
		run.Artifacts = make(map[core.ArtifactKind]core.Artifact)
		c.setRunStatus(run, core.RunCanceled, "run canceled")
		return
	}

	final := run.Tasks[core.AgentFinalProposal]
	doc, hasDoc := run.Document()

	switch {
	case final != nil && final.Status == core.TaskSucceeded && hasDoc && doc.Complete:
		c.setRunStatus(run, core.RunCompleted, "")
	case final != nil && final.Status == core.TaskSucceeded && hasDoc:
		c.setRunStatus(run, core.RunPartiallyFailed, "")
	case final != nil && final.Status == core.TaskFailed:
		c.setRunStatus(run, core.RunFailed, final.LastError)
	default:
		c.setRunStatus(run, core.RunFailed, "final proposal was never executed")
	}

	if hasDoc && c.archive != nil && run.Status != core.RunFailed {
		c.archiveDocument(run.ID, doc)
	}
}

// archiveDocument stores the rendered markdown and the structured document.
// Archive failures are logged, not fatal: the run result remains available
// through the store.
func (c *Coordinator) archiveDocument(runID string, doc *core.ProposalDocument) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.archive.Save(ctx, runID, "proposal.md", []byte(assembler.Markdown(doc))); err != nil {
		c.logger.Warn("run.archive.failed", "run_id", runID, "name", "proposal.md", "error", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		c.logger.Warn("run.archive.failed", "run_id", runID, "name", "proposal.json", "error", err)
		return
	}
	if err := c.archive.Save(ctx, runID, "proposal.json", data); err != nil {
		c.logger.Warn("run.archive.failed", "run_id", runID, "name", "proposal.json", "error", err)
	}
}

func (c *Coordinator) allTasksTerminal(run *core.PipelineRun) bool {
	for _, task := range run.Tasks {
		if !task.Status.Terminal() {
			return false
		}
	}
	return true
}

// transitionTask applies a validated status move and publishes the event.
// Illegal transitions indicate a coordinator bug and are logged loudly.
func (c *Coordinator) transitionTask(run *core.PipelineRun, task *core.AgentTask, to core.TaskStatus, detail string) {
	if err := task.Transition(to); err != nil {
		c.logger.Error("task.transition.illegal", "run_id", run.ID, "task", task.Kind, "error", err)
		return
	}
	c.hub.publish(core.NewTaskStatusEvent(run.ID, task.Kind, to, detail))
	c.logger.Debug("task.transition", "run_id", run.ID, "task", task.Kind, "status", to, "detail", detail)
}

// setRunStatus updates the run status, stamps terminal completion time,
// publishes the status event and persists.
func (c *Coordinator) setRunStatus(run *core.PipelineRun, status core.RunStatus, detail string) {
	run.Status = status
	run.FailureReason = detail
	if status.Terminal() {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	c.persist(run)
	c.hub.publish(core.NewRunStatusEvent(run.ID, status, detail))
	c.logger.Info("run.status", "run_id", run.ID, "status", status, "detail", detail)
}

func (c *Coordinator) persist(run *core.PipelineRun) {
	if err := c.store.Update(run); err != nil {
		c.logger.Warn("run.persist.failed", "run_id", run.ID, "error", err)
	}
}

func (c *Coordinator) acquire(ctx context.Context) error {
	if c.sem == nil {
		return nil
	}
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) release() {
	if c.sem != nil {
		<-c.sem
	}
}
