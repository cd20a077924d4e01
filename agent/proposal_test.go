package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/proposalmesh/assembler"
	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/logging"
)

func TestFinalProposalAssemblesCompleteDocument(t *testing.T) {
	tc := newTestContext(t, core.AgentFinalProposal, newScriptedCaller())
	tc.PutDependency(&core.ResearchProfile{
		Company:  "Acme Logistics",
		Industry: "supply-chain",
		Overview: "Acme Logistics runs a regional freight network.",
		Terms:    []string{"fleet telematics"},
	})
	tc.PutDependency(&core.MarketTrendsReport{
		Industry: "supply-chain",
		Trends:   []core.MarketTrend{{Title: "Predictive ETA", Summary: "ML arrival estimates."}},
		UseCases: []core.UseCase{{Title: "Dynamic Routing", Priority: 1, Complexity: "high"}},
	})
	tc.PutDependency(&core.ResourceBundle{
		SearchTerms: []string{"fleet telematics"},
		Datasets:    []core.Resource{{Title: "Fleet Telemetry Records", Source: "kaggle"}},
		Repos:       []core.Resource{{Title: "acme/route-optimizer", Source: "github"}},
	})

	art, err := NewFinalProposal().Run(tc)
	require.NoError(t, err)

	doc, ok := art.(*core.ProposalDocument)
	require.True(t, ok)

	assert.True(t, doc.Complete)
	assert.Empty(t, doc.MissingSections)

	require.Len(t, doc.Sections, 6)
	titles := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		titles = append(titles, s.Title)
		assert.True(t, s.Available, "section %s should be available", s.Title)
	}
	assert.Equal(t, []string{
		assembler.SectionSummary,
		assembler.SectionTrends,
		assembler.SectionUseCases,
		assembler.SectionFeasibility,
		assembler.SectionResources,
		assembler.SectionNextSteps,
	}, titles)
}

func TestFinalProposalRendersPlaceholdersForMissingInputs(t *testing.T) {
	tc := newTestContext(t, core.AgentFinalProposal, newScriptedCaller())
	tc.PutDependency(&core.ResearchProfile{
		Company:  "Acme Logistics",
		Industry: "supply-chain",
		Overview: "Acme Logistics runs a regional freight network.",
	})
	tc.MarkMissing(core.ArtifactMarketTrends, "required dependency failed upstream")
	tc.MarkMissing(core.ArtifactResourceBundle, "wait budget expired")

	art, err := NewFinalProposal().Run(tc)
	require.NoError(t, err)

	doc := art.(*core.ProposalDocument)
	assert.False(t, doc.Complete)
	assert.Contains(t, doc.MissingSections, assembler.SectionTrends)
	assert.Contains(t, doc.MissingSections, assembler.SectionUseCases)
	assert.Contains(t, doc.MissingSections, assembler.SectionResources)
	assert.NotContains(t, doc.MissingSections, assembler.SectionSummary)
	assert.NotContains(t, doc.MissingSections, assembler.SectionNextSteps)

	for _, s := range doc.Sections {
		switch s.Title {
		case assembler.SectionTrends:
			assert.Contains(t, s.Body, "required dependency failed upstream")
		case assembler.SectionResources:
			assert.Contains(t, s.Body, "wait budget expired")
		case assembler.SectionNextSteps:
			assert.True(t, s.Available)
		}
	}
}

func TestFinalProposalFailsOnInvalidRequest(t *testing.T) {
	tc := core.NewTaskContext(context.Background(), "run-1", core.AgentFinalProposal, core.Request{}, newScriptedCaller(), logging.NoOpLogger{})

	art, err := NewFinalProposal().Run(tc)

	require.Nil(t, art)
	aerr := requireAgentError(t, err, core.AgentErrInternalAssembly)
	assert.Equal(t, core.AgentFinalProposal, aerr.Agent)
	assert.Contains(t, aerr.Message, "invalid request")
}
