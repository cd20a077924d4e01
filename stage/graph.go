// Package stage declares the dependency structure between agents and exposes
// readiness evaluation as a pure function. The coordinator re-evaluates the
// graph against the run's current artifact availability each time a task
// completes or a wait budget expires; the graph itself holds no run state, so
// identical views always produce identical decisions.
package stage

import (
	"fmt"

	"github.com/hupe1980/proposalmesh/core"
)

// Dependency declares one upstream artifact requirement of an agent.
// Optional dependencies are degradable: the dependent may proceed without
// the artifact once its producer permanently failed or the wait budget
// expired. Required dependencies without a degrade path skip the dependent
// instead.
type Dependency struct {
	Kind     core.ArtifactKind
	Optional bool
}

// Graph is the declarative dependency structure between agent kinds.
// Construct it once, Validate it, and treat it as immutable.
type Graph struct {
	deps map[core.AgentKind][]Dependency
}

// New builds a Graph from the given dependency declarations. The map is
// copied; later mutation of the argument does not affect the graph.
func New(deps map[core.AgentKind][]Dependency) *Graph {
	g := &Graph{deps: make(map[core.AgentKind][]Dependency, len(deps))}
	for kind, dd := range deps {
		cp := make([]Dependency, len(dd))
		copy(cp, dd)
		g.deps[kind] = cp
	}
	return g
}

// Default returns the canonical four-agent graph: Research and
// MarketStandards are independent roots, ResourceAsset optionally refines
// its queries with Research's profile, and FinalProposal consumes all three
// upstream artifacts as optional-degradable inputs so it can always run.
func Default() *Graph {
	return New(map[core.AgentKind][]Dependency{
		core.AgentResearch:        nil,
		core.AgentMarketStandards: nil,
		core.AgentResourceAsset: {
			{Kind: core.ArtifactResearchProfile, Optional: true},
		},
		core.AgentFinalProposal: {
			{Kind: core.ArtifactResearchProfile, Optional: true},
			{Kind: core.ArtifactMarketTrends, Optional: true},
			{Kind: core.ArtifactResourceBundle, Optional: true},
		},
	})
}

// Agents returns the declared agent kinds in canonical dispatch order.
func (g *Graph) Agents() []core.AgentKind {
	agents := make([]core.AgentKind, 0, len(g.deps))
	for _, kind := range core.AgentKinds() {
		if _, ok := g.deps[kind]; ok {
			agents = append(agents, kind)
		}
	}
	return agents
}

// Dependencies returns a copy of the declared dependencies for kind.
func (g *Graph) Dependencies(kind core.AgentKind) []Dependency {
	dd := g.deps[kind]
	cp := make([]Dependency, len(dd))
	copy(cp, dd)
	return cp
}

// ArtifactKinds returns the artifact kinds kind depends on, in declaration
// order. Used to seed AgentTask dependency sets.
func (g *Graph) ArtifactKinds(kind core.AgentKind) []core.ArtifactKind {
	dd := g.deps[kind]
	kinds := make([]core.ArtifactKind, 0, len(dd))
	for _, d := range dd {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}

// Validate rejects graphs referencing artifacts no declared agent produces,
// unknown agent kinds, and dependency cycles.
func (g *Graph) Validate() error {
	producers := make(map[core.ArtifactKind]core.AgentKind, len(g.deps))
	for kind := range g.deps {
		if !kind.Valid() {
			return fmt.Errorf("stage: unknown agent kind %q", kind)
		}
		producers[kind.Produces()] = kind
	}

	for kind, dd := range g.deps {
		for _, d := range dd {
			if _, ok := producers[d.Kind]; !ok {
				return fmt.Errorf("stage: agent %s depends on %s which no declared agent produces", kind, d.Kind)
			}
		}
	}

	// Cycle detection over agent -> producer edges.
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[core.AgentKind]int, len(g.deps))
	var visit func(kind core.AgentKind) error
	visit = func(kind core.AgentKind) error {
		switch state[kind] {
		case visiting:
			return fmt.Errorf("stage: dependency cycle through agent %s", kind)
		case done:
			return nil
		}
		state[kind] = visiting
		for _, d := range g.deps[kind] {
			if err := visit(producers[d.Kind]); err != nil {
				return err
			}
		}
		state[kind] = done
		return nil
	}
	for _, kind := range g.Agents() {
		if err := visit(kind); err != nil {
			return err
		}
	}
	return nil
}
