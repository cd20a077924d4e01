// Package engine contains the Coordinator that drives pipeline runs from
// submission to a terminal status.
//
// Execution model:
//
//   - Submit creates a PipelineRun with one AgentTask per stage-graph node
//     and starts a dedicated run-loop goroutine. That goroutine is the
//     single writer of the run's bookkeeping; every other reader gets
//     clones through the run store.
//   - The loop repeatedly evaluates the stage graph against current
//     artifact availability (stage.Evaluate is pure), dispatches every
//     ready task onto a worker pool bounded by a semaphore shared across
//     runs, and folds completions back into the run.
//   - A dependency-wait timer converts indefinite waits into degraded
//     dispatches or skips, and a max-run-duration watchdog aborts in-flight
//     provider calls, so no run stays Running forever.
//   - Every status change is published to the run's event stream. Watchers
//     receive events on buffered channels; a slow watcher loses the oldest
//     events rather than blocking the loop.
//
// Terminal mapping: Completed when the final document has no missing
// sections, PartiallyFailed when it has gaps, Failed only when the final
// assembly itself errors, Canceled on external cancellation.
package engine
