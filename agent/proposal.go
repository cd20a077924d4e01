package agent

import (
	"github.com/hupe1980/proposalmesh/assembler"
	"github.com/hupe1980/proposalmesh/core"
)

// FinalProposal folds the upstream artifacts into the ProposalDocument. It
// makes zero tool calls and never fails because of missing inputs; absent
// dependencies become placeholder sections. The only failure mode is an
// internal assembly defect, which is the one error that fails a whole run.
type FinalProposal struct{}

var _ core.Agent = (*FinalProposal)(nil)

// NewFinalProposal creates the FinalProposal agent.
func NewFinalProposal() *FinalProposal { return &FinalProposal{} }

// Kind implements core.Agent.
func (a *FinalProposal) Kind() core.AgentKind { return core.AgentFinalProposal }

// Run gathers whatever dependencies were seeded and assembles the document.
func (a *FinalProposal) Run(tc *core.TaskContext) (core.Artifact, error) {
	in := assembler.Inputs{
		Missing: make(map[core.ArtifactKind]string),
	}
	if p, ok := tc.ResearchProfile(); ok {
		in.Profile = p
	} else if reason, ok := tc.MissingReason(core.ArtifactResearchProfile); ok {
		in.Missing[core.ArtifactResearchProfile] = reason
	}
	if t, ok := tc.MarketTrends(); ok {
		in.Trends = t
	} else if reason, ok := tc.MissingReason(core.ArtifactMarketTrends); ok {
		in.Missing[core.ArtifactMarketTrends] = reason
	}
	if r, ok := tc.Resources(); ok {
		in.Resources = r
	} else if reason, ok := tc.MissingReason(core.ArtifactResourceBundle); ok {
		in.Missing[core.ArtifactResourceBundle] = reason
	}

	doc, err := assembler.Assemble(tc.Request, in)
	if err != nil {
		aerr := core.NewAgentError(a.Kind(), core.AgentErrInternalAssembly, err.Error())
		aerr.Err = err
		return nil, aerr
	}

	return doc, nil
}
