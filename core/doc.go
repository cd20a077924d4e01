// Package core provides the foundational domain types, interfaces and execution
// contexts used by ProposalMesh. It defines the core abstractions for:
//
//   - PipelineRuns (one end-to-end execution from request to proposal)
//   - AgentTasks (scheduled agent executions with a validated state machine)
//   - Artifacts (immutable typed outputs of successful agent executions)
//   - Tool queries, results and the normalized failure taxonomy
//   - TaskContext (scoped execution state handed to an Agent's Run)
//   - Pluggable stores for run bookkeeping and document archiving
//
// The package intentionally keeps implementation concerns (persistence, the
// coordinator, concrete agents and providers) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
