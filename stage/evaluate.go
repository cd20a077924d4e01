package stage

import (
	"fmt"

	"github.com/hupe1980/proposalmesh/core"
)

// DepState describes one artifact kind's availability as seen by the
// coordinator at evaluation time.
type DepState int

const (
	// DepPending means the producer has not reached a terminal state yet.
	DepPending DepState = iota
	// DepAvailable means the artifact has been recorded on the run.
	DepAvailable
	// DepFailed means the producer permanently failed or was skipped, so
	// the artifact will never arrive.
	DepFailed
)

// View is the input to Evaluate: artifact availability per kind, plus which
// waiting agents have exhausted their dependency-wait budget. Kinds absent
// from States are treated as DepPending.
type View struct {
	States      map[core.ArtifactKind]DepState
	WaitExpired map[core.AgentKind]bool
}

// Action is the outcome of evaluating one waiting agent.
type Action int

const (
	// ActionWait keeps the task waiting for a later re-evaluation.
	ActionWait Action = iota
	// ActionDispatch marks the task ready to run, possibly degraded.
	ActionDispatch
	// ActionSkip marks the task skipped without running.
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionWait:
		return "wait"
	case ActionDispatch:
		return "dispatch"
	case ActionSkip:
		return "skip"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// SkipReason explains why an agent was skipped instead of dispatched.
type SkipReason struct {
	Code   SkipReasonCode
	Detail string
}

// SkipReasonCode is a stable machine-readable skip cause.
type SkipReasonCode string

const (
	// SkipRequiredFailed means a required dependency's producer failed or
	// was itself skipped.
	SkipRequiredFailed SkipReasonCode = "required_dependency_failed"
	// SkipRequiredExpired means a required dependency did not arrive within
	// the dependency-wait budget.
	SkipRequiredExpired SkipReasonCode = "required_dependency_expired"
)

// Decision is the evaluation result for one waiting agent.
type Decision struct {
	Agent  core.AgentKind
	Action Action
	// Degraded lists optional dependencies the agent proceeds without, in
	// declaration order. Only set for ActionDispatch.
	Degraded []core.ArtifactKind
	// Skip carries the cause when Action is ActionSkip.
	Skip *SkipReason
}

// Evaluate decides, for each waiting agent, whether it should be dispatched,
// skipped, or kept waiting under the given view. It is pure: no graph or run
// state is mutated, and identical inputs yield identical decisions. Agents
// are evaluated in the order given; dependencies in declaration order.
//
// Rules, applied per dependency:
//
//   - available: satisfied.
//   - failed: optional degrades, required skips the agent.
//   - pending with wait budget left: the agent keeps waiting.
//   - pending with the budget expired: optional degrades, required skips.
//
// A skip verdict wins over waiting, which wins over dispatch: an agent is
// dispatched only when every dependency is satisfied or degraded.
func (g *Graph) Evaluate(waiting []core.AgentKind, view View) []Decision {
	decisions := make([]Decision, 0, len(waiting))
	for _, agent := range waiting {
		decisions = append(decisions, g.evaluateOne(agent, view))
	}
	return decisions
}

func (g *Graph) evaluateOne(agent core.AgentKind, view View) Decision {
	d := Decision{Agent: agent, Action: ActionDispatch}
	expired := view.WaitExpired[agent]
	mustWait := false

	for _, dep := range g.deps[agent] {
		switch view.States[dep.Kind] {
		case DepAvailable:
			continue
		case DepFailed:
			if !dep.Optional {
				return Decision{
					Agent:  agent,
					Action: ActionSkip,
					Skip: &SkipReason{
						Code:   SkipRequiredFailed,
						Detail: fmt.Sprintf("required dependency %s failed", dep.Kind),
					},
				}
			}
			d.Degraded = append(d.Degraded, dep.Kind)
		case DepPending:
			if !expired {
				mustWait = true
				continue
			}
			if !dep.Optional {
				return Decision{
					Agent:  agent,
					Action: ActionSkip,
					Skip: &SkipReason{
						Code:   SkipRequiredExpired,
						Detail: fmt.Sprintf("required dependency %s unavailable within wait budget", dep.Kind),
					},
				}
			}
			d.Degraded = append(d.Degraded, dep.Kind)
		}
	}

	if mustWait {
		return Decision{Agent: agent, Action: ActionWait}
	}
	return d
}
