package core

// Agent is a unit of orchestrated work: it consumes the dependency subset of
// prior artifacts plus the original request (via TaskContext), issues zero or
// more gateway calls, and produces exactly one typed Artifact.
//
// Implementations must:
//   - Return an artifact whose Kind matches Kind().Produces()
//   - Treat dependency artifacts as read-only
//   - Respect TaskContext cancellation on every blocking operation
//   - Join all internally spawned goroutines before returning
type Agent interface {
	// Kind identifies the agent variant.
	Kind() AgentKind

	// Run executes the agent to completion. Returning an error marks the
	// owning AgentTask Failed; the coordinator decides how downstream tasks
	// degrade.
	Run(tc *TaskContext) (Artifact, error)
}
