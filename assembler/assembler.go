// Package assembler builds the final ProposalDocument from whatever subset
// of upstream artifacts a run produced. Assembly is pure and deterministic:
// the same request and inputs always yield an identical document, sections
// appear in a fixed order, and a missing input renders an explicit
// placeholder section instead of being dropped. Re-assembling after a
// partial failure is therefore idempotent.
package assembler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/proposalmesh/core"
)

// Canonical section titles in document order.
const (
	SectionSummary     = "Executive Summary"
	SectionTrends      = "Market Trends"
	SectionUseCases    = "Proposed Use Cases"
	SectionFeasibility = "Feasibility Assessment"
	SectionResources   = "Datasets & Reference Implementations"
	SectionNextSteps   = "Next Steps"
)

// Inputs carries the optional upstream artifacts plus the recorded reason
// each absent artifact is missing.
type Inputs struct {
	Profile   *core.ResearchProfile
	Trends    *core.MarketTrendsReport
	Resources *core.ResourceBundle
	// Missing maps an absent artifact kind to the reason recorded by the
	// coordinator (upstream failure, expired wait).
	Missing map[core.ArtifactKind]string
}

// Assemble builds the proposal document. It never fails on missing inputs;
// the error return is reserved for genuine contract violations.
func Assemble(req core.Request, in Inputs) (*core.ProposalDocument, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("assembler: invalid request: %w", err)
	}

	doc := &core.ProposalDocument{
		Company:  req.Company,
		Industry: req.Industry,
	}

	doc.Sections = []core.ProposalSection{
		summarySection(in),
		trendsSection(in),
		useCasesSection(in),
		feasibilitySection(in),
		resourcesSection(in),
		nextStepsSection(req, in),
	}

	for _, s := range doc.Sections {
		if !s.Available {
			doc.MissingSections = append(doc.MissingSections, s.Title)
		}
	}
	doc.Complete = len(doc.MissingSections) == 0

	return doc, nil
}

// placeholder renders the section stub used when upstream data is absent.
func placeholder(title, reason string) core.ProposalSection {
	if reason == "" {
		reason = "no upstream data was produced"
	}
	return core.ProposalSection{
		Title:     title,
		Body:      fmt.Sprintf("This section is not available: %s.", reason),
		Available: false,
	}
}

func summarySection(in Inputs) core.ProposalSection {
	p := in.Profile
	if p == nil {
		return placeholder(SectionSummary, in.Missing[core.ArtifactResearchProfile])
	}

	var b strings.Builder
	b.WriteString(p.Overview)
	if len(p.Offerings) > 0 {
		b.WriteString("\n\nCore offerings:\n")
		for _, o := range p.Offerings {
			b.WriteString("- " + o + "\n")
		}
	}
	if p.Degraded {
		fmt.Fprintf(&b, "\nNote: research coverage was partial (%s).", p.DegradedNote)
	}

	return core.ProposalSection{Title: SectionSummary, Body: strings.TrimRight(b.String(), "\n"), Available: true}
}

func trendsSection(in Inputs) core.ProposalSection {
	t := in.Trends
	if t == nil {
		return placeholder(SectionTrends, in.Missing[core.ArtifactMarketTrends])
	}
	if len(t.Trends) == 0 {
		return placeholder(SectionTrends, "the trend search returned no material")
	}

	var b strings.Builder
	for _, tr := range t.Trends {
		b.WriteString("- " + tr.Title)
		if tr.Summary != "" {
			b.WriteString(": " + tr.Summary)
		}
		if tr.Source != "" {
			b.WriteString(" (" + tr.Source + ")")
		}
		b.WriteString("\n")
	}

	return core.ProposalSection{Title: SectionTrends, Body: strings.TrimRight(b.String(), "\n"), Available: true}
}

func useCasesSection(in Inputs) core.ProposalSection {
	t := in.Trends
	if t == nil {
		return placeholder(SectionUseCases, in.Missing[core.ArtifactMarketTrends])
	}
	if len(t.UseCases) == 0 {
		return placeholder(SectionUseCases, "no use cases were generated")
	}

	ordered := make([]core.UseCase, len(t.UseCases))
	copy(ordered, t.UseCases)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	var b strings.Builder
	for i, uc := range ordered {
		fmt.Fprintf(&b, "%d. %s", i+1, uc.Title)
		if uc.Complexity != "" {
			fmt.Fprintf(&b, " [%s complexity]", uc.Complexity)
		}
		if uc.Description != "" {
			b.WriteString(": " + uc.Description)
		}
		if uc.Impact != "" {
			b.WriteString(" Impact: " + uc.Impact)
		}
		b.WriteString("\n")
	}

	return core.ProposalSection{Title: SectionUseCases, Body: strings.TrimRight(b.String(), "\n"), Available: true}
}

// feasibilitySection synthesizes a deterministic readiness view from the
// use-case complexity mix and any degradation notes.
func feasibilitySection(in Inputs) core.ProposalSection {
	t := in.Trends
	if t == nil || len(t.UseCases) == 0 {
		return placeholder(SectionFeasibility, "feasibility requires generated use cases")
	}

	counts := map[string]int{}
	for _, uc := range t.UseCases {
		c := uc.Complexity
		if c == "" {
			c = "unrated"
		}
		counts[c]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Of the %d proposed use cases, ", len(t.UseCases))
	order := []string{"low", "medium", "high", "unrated"}
	var parts []string
	for _, c := range order {
		if n := counts[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d are %s complexity", n, c))
		}
	}
	b.WriteString(strings.Join(parts, ", ") + ".")

	var caveats []string
	if in.Profile != nil && in.Profile.Degraded {
		caveats = append(caveats, "company research was partially degraded")
	}
	if t.Degraded {
		caveats = append(caveats, "market analysis was partially degraded")
	}
	if in.Resources != nil && in.Resources.Degraded {
		caveats = append(caveats, "resource discovery was partially degraded")
	}
	if in.Resources == nil {
		caveats = append(caveats, "no resource inventory is available")
	}
	if len(caveats) > 0 {
		b.WriteString(" Caveats: " + strings.Join(caveats, "; ") + ".")
	}

	return core.ProposalSection{Title: SectionFeasibility, Body: b.String(), Available: true}
}

func resourcesSection(in Inputs) core.ProposalSection {
	r := in.Resources
	if r == nil {
		return placeholder(SectionResources, in.Missing[core.ArtifactResourceBundle])
	}
	if len(r.Datasets) == 0 && len(r.Repos) == 0 {
		return placeholder(SectionResources, "the registry searches returned no material")
	}

	var b strings.Builder
	if len(r.SearchTerms) > 0 {
		b.WriteString("Search terms: " + strings.Join(r.SearchTerms, ", ") + "\n\n")
	}
	if len(r.Datasets) > 0 {
		b.WriteString("Datasets:\n")
		for _, d := range r.Datasets {
			writeResource(&b, d)
		}
	}
	if len(r.Repos) > 0 {
		if len(r.Datasets) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Reference implementations:\n")
		for _, repo := range r.Repos {
			writeResource(&b, repo)
		}
	}

	return core.ProposalSection{Title: SectionResources, Body: strings.TrimRight(b.String(), "\n"), Available: true}
}

func writeResource(b *strings.Builder, r core.Resource) {
	b.WriteString("- " + r.Title)
	if r.Source != "" {
		b.WriteString(" (" + r.Source + ")")
	}
	if r.URL != "" {
		b.WriteString(" — " + r.URL)
	}
	b.WriteString("\n")
}

// nextStepsSection is always available: concrete steps when inputs exist,
// recovery steps otherwise.
func nextStepsSection(req core.Request, in Inputs) core.ProposalSection {
	var steps []string

	if in.Trends != nil && len(in.Trends.UseCases) > 0 {
		top := in.Trends.UseCases[0]
		for _, uc := range in.Trends.UseCases {
			if uc.Priority < top.Priority {
				top = uc
			}
		}
		steps = append(steps, fmt.Sprintf("Validate the top-priority use case (%s) with %s stakeholders.", top.Title, req.Company))
	} else {
		steps = append(steps, fmt.Sprintf("Re-run market analysis for %s to generate candidate use cases.", req.Industry))
	}

	if in.Resources != nil && len(in.Resources.Datasets) > 0 {
		steps = append(steps, fmt.Sprintf("Evaluate the %s dataset for a proof of concept.", in.Resources.Datasets[0].Title))
	} else {
		steps = append(steps, "Inventory internal data sources before selecting external datasets.")
	}

	if in.Resources != nil && len(in.Resources.Repos) > 0 {
		steps = append(steps, fmt.Sprintf("Review the %s reference implementation for architectural guidance.", in.Resources.Repos[0].Title))
	}

	steps = append(steps, "Schedule a scoping workshop to size the first implementation phase.")

	var b strings.Builder
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}

	return core.ProposalSection{Title: SectionNextSteps, Body: strings.TrimRight(b.String(), "\n"), Available: true}
}
