package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/proposalmesh/core"
)

func fullRequest() core.Request {
	return core.Request{Company: "Acme Logistics", Industry: "supply-chain"}
}

func fullInputs() Inputs {
	return Inputs{
		Profile: &core.ResearchProfile{
			Company:   "Acme Logistics",
			Industry:  "supply-chain",
			Overview:  "Acme Logistics runs a regional freight network.",
			Offerings: []string{"Fleet telematics", "Cold-chain transport"},
			Terms:     []string{"fleet telematics", "cold chain"},
		},
		Trends: &core.MarketTrendsReport{
			Industry: "supply-chain",
			Trends: []core.MarketTrend{
				{Title: "Predictive ETA", Summary: "Carriers adopt ML arrival estimates.", Source: "https://news.example.com/eta"},
			},
			UseCases: []core.UseCase{
				{Title: "Demand Forecasting", Description: "Forecast regional demand.", Impact: "lower stockouts", Complexity: "low", Priority: 2},
				{Title: "Dynamic Routing", Description: "Reroute fleets in real time.", Impact: "fuel savings", Complexity: "high", Priority: 1},
			},
		},
		Resources: &core.ResourceBundle{
			SearchTerms: []string{"fleet telematics", "cold chain"},
			Datasets: []core.Resource{
				{Title: "Fleet Telemetry Records", URL: "https://kaggle.example.com/ds/fleet", Source: "kaggle"},
				{Title: "Cold Chain Shipments", URL: "https://huggingface.example.com/ds/cold-chain", Source: "huggingface"},
			},
			Repos: []core.Resource{{Title: "acme/route-optimizer", URL: "https://github.example.com/acme/route-optimizer", Source: "github"}},
		},
	}
}

func sectionByTitle(t *testing.T, doc *core.ProposalDocument, title string) core.ProposalSection {
	t.Helper()
	for _, s := range doc.Sections {
		if s.Title == title {
			return s
		}
	}
	t.Fatalf("section %q not found", title)
	return core.ProposalSection{}
}

func TestAssembleCompleteDocument(t *testing.T) {
	doc, err := Assemble(fullRequest(), fullInputs())
	require.NoError(t, err)

	assert.Equal(t, "Acme Logistics", doc.Company)
	assert.Equal(t, "supply-chain", doc.Industry)
	assert.True(t, doc.Complete)
	assert.Empty(t, doc.MissingSections)

	titles := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{
		SectionSummary, SectionTrends, SectionUseCases,
		SectionFeasibility, SectionResources, SectionNextSteps,
	}, titles)

	summary := sectionByTitle(t, doc, SectionSummary)
	assert.Contains(t, summary.Body, "Acme Logistics runs a regional freight network.")
	assert.Contains(t, summary.Body, "Core offerings:")
	assert.Contains(t, summary.Body, "- Fleet telematics")
	assert.NotContains(t, summary.Body, "research coverage was partial")

	trends := sectionByTitle(t, doc, SectionTrends)
	assert.Contains(t, trends.Body, "- Predictive ETA: Carriers adopt ML arrival estimates. (https://news.example.com/eta)")

	useCases := sectionByTitle(t, doc, SectionUseCases)
	assert.Contains(t, useCases.Body, "1. Dynamic Routing [high complexity]: Reroute fleets in real time. Impact: fuel savings")
	assert.Contains(t, useCases.Body, "2. Demand Forecasting [low complexity]")

	feasibility := sectionByTitle(t, doc, SectionFeasibility)
	assert.Contains(t, feasibility.Body, "Of the 2 proposed use cases, 1 are low complexity, 1 are high complexity.")
	assert.NotContains(t, feasibility.Body, "Caveats")

	resources := sectionByTitle(t, doc, SectionResources)
	assert.Contains(t, resources.Body, "Search terms: fleet telematics, cold chain")
	assert.Contains(t, resources.Body, "Datasets:")
	assert.Contains(t, resources.Body, "- Fleet Telemetry Records (kaggle) — https://kaggle.example.com/ds/fleet")
	assert.Contains(t, resources.Body, "- Cold Chain Shipments (huggingface) — https://huggingface.example.com/ds/cold-chain")
	assert.Contains(t, resources.Body, "Reference implementations:")
	assert.Contains(t, resources.Body, "- acme/route-optimizer (github) — https://github.example.com/acme/route-optimizer")

	next := sectionByTitle(t, doc, SectionNextSteps)
	assert.Contains(t, next.Body, "1. Validate the top-priority use case (Dynamic Routing) with Acme Logistics stakeholders.")
	assert.Contains(t, next.Body, "Evaluate the Fleet Telemetry Records dataset")
	assert.Contains(t, next.Body, "Review the acme/route-optimizer reference implementation")
	assert.Contains(t, next.Body, "Schedule a scoping workshop")
}

func TestAssembleRejectsInvalidRequest(t *testing.T) {
	_, err := Assemble(core.Request{}, fullInputs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request")
}

func TestAssembleMissingInputsBecomePlaceholders(t *testing.T) {
	in := Inputs{
		Missing: map[core.ArtifactKind]string{
			core.ArtifactResearchProfile: "required dependency unavailable within wait budget",
			core.ArtifactMarketTrends:    "agent market_standards: ALL_REQUIRED_CALLS_EXHAUSTED",
		},
	}

	doc, err := Assemble(fullRequest(), in)
	require.NoError(t, err)

	assert.False(t, doc.Complete)
	assert.ElementsMatch(t, []string{
		SectionSummary, SectionTrends, SectionUseCases, SectionFeasibility, SectionResources,
	}, doc.MissingSections)

	summary := sectionByTitle(t, doc, SectionSummary)
	assert.Equal(t, "This section is not available: required dependency unavailable within wait budget.", summary.Body)

	trends := sectionByTitle(t, doc, SectionTrends)
	assert.Contains(t, trends.Body, "ALL_REQUIRED_CALLS_EXHAUSTED")

	// No recorded reason falls back to the generic one.
	resources := sectionByTitle(t, doc, SectionResources)
	assert.Equal(t, "This section is not available: no upstream data was produced.", resources.Body)

	next := sectionByTitle(t, doc, SectionNextSteps)
	assert.True(t, next.Available)
	assert.Contains(t, next.Body, "Re-run market analysis for supply-chain")
	assert.Contains(t, next.Body, "Inventory internal data sources")
}

func TestAssembleEmptyTrendRowsStillYieldUseCases(t *testing.T) {
	in := fullInputs()
	in.Trends.Trends = nil

	doc, err := Assemble(fullRequest(), in)
	require.NoError(t, err)

	assert.False(t, doc.Complete)
	assert.Equal(t, []string{SectionTrends}, doc.MissingSections)

	trends := sectionByTitle(t, doc, SectionTrends)
	assert.Contains(t, trends.Body, "the trend search returned no material")
	assert.True(t, sectionByTitle(t, doc, SectionUseCases).Available)
}

func TestAssembleSurfacesDegradationCaveats(t *testing.T) {
	in := fullInputs()
	in.Profile.Degraded = true
	in.Profile.DegradedNote = "analysis call failed"
	in.Trends.Degraded = true
	in.Resources = nil
	in.Missing = map[core.ArtifactKind]string{core.ArtifactResourceBundle: "upstream failed"}

	doc, err := Assemble(fullRequest(), in)
	require.NoError(t, err)

	summary := sectionByTitle(t, doc, SectionSummary)
	assert.Contains(t, summary.Body, "Note: research coverage was partial (analysis call failed).")

	feasibility := sectionByTitle(t, doc, SectionFeasibility)
	assert.Contains(t, feasibility.Body, "company research was partially degraded")
	assert.Contains(t, feasibility.Body, "market analysis was partially degraded")
	assert.Contains(t, feasibility.Body, "no resource inventory is available")
}

func TestAssembleIsDeterministicAndDoesNotMutateInputs(t *testing.T) {
	in := fullInputs()
	originalFirst := in.Trends.UseCases[0].Title

	doc1, err := Assemble(fullRequest(), in)
	require.NoError(t, err)
	doc2, err := Assemble(fullRequest(), in)
	require.NoError(t, err)

	assert.Equal(t, doc1, doc2)
	assert.Equal(t, originalFirst, in.Trends.UseCases[0].Title)
}

func TestMarkdownRendersDocument(t *testing.T) {
	doc, err := Assemble(fullRequest(), fullInputs())
	require.NoError(t, err)

	md := Markdown(doc)
	assert.True(t, strings.HasPrefix(md, "# AI/ML Implementation Proposal: Acme Logistics\n"))
	assert.Contains(t, md, "_Industry: supply-chain_")
	assert.NotContains(t, md, "> Partial document")
	for _, s := range doc.Sections {
		assert.Contains(t, md, "## "+s.Title+"\n")
	}
	assert.True(t, strings.HasSuffix(md, "\n"))
	assert.False(t, strings.HasSuffix(md, "\n\n"))
}

func TestMarkdownFlagsPartialDocument(t *testing.T) {
	in := fullInputs()
	in.Resources = nil

	doc, err := Assemble(fullRequest(), in)
	require.NoError(t, err)

	md := Markdown(doc)
	assert.Contains(t, md, "> Partial document: missing Datasets & Reference Implementations.")
}
