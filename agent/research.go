package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/proposalmesh/core"
)

// ResearchOptions configure the Research agent.
type ResearchOptions struct {
	// WebSearchProvider is the gateway ID of the web search backend.
	WebSearchProvider string
	// AnalysisProvider is the gateway ID of the analysis backend.
	AnalysisProvider string
	// SearchLimit is the per-call result cap.
	SearchLimit int
	// MaxSources caps the links recorded on the profile.
	MaxSources int
}

// Research builds a company/industry profile from web search plus an
// analysis pass. It has no artifact dependencies.
type Research struct {
	opts ResearchOptions
}

var _ core.Agent = (*Research)(nil)

// NewResearch creates the Research agent.
func NewResearch(optFns ...func(o *ResearchOptions)) *Research {
	opts := ResearchOptions{
		WebSearchProvider: "web_search",
		AnalysisProvider:  "analysis",
		SearchLimit:       5,
		MaxSources:        8,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Research{opts: opts}
}

// Kind implements core.Agent.
func (a *Research) Kind() core.AgentKind { return core.AgentResearch }

// Run fans out two web searches (company profile, industry landscape) and
// one analysis overview, then folds every successful outcome into a
// ResearchProfile. Any failed call degrades the profile; only all three
// failing fails the task.
func (a *Research) Run(tc *core.TaskContext) (core.Artifact, error) {
	req := tc.Request

	outcomes, err := fanOut(tc, []providerCall{
		{a.opts.WebSearchProvider, core.ToolQuery{
			Text:  fmt.Sprintf("%s company profile products services", req.Company),
			Limit: a.opts.SearchLimit,
		}},
		{a.opts.WebSearchProvider, core.ToolQuery{
			Text:  fmt.Sprintf("%s industry landscape %s competitors technology", req.Industry, req.Company),
			Limit: a.opts.SearchLimit,
		}},
		{a.opts.AnalysisProvider, core.ToolQuery{
			Text:    req.Topic(),
			Limit:   a.opts.SearchLimit,
			Filters: map[string]string{"focus": "overview"},
		}},
	})
	if err != nil {
		return nil, err
	}

	ok, failed := splitOutcomes(outcomes)
	if len(ok) == 0 {
		return nil, exhausted(a.Kind(), failed)
	}

	profile := &core.ResearchProfile{
		Company:  req.Company,
		Industry: req.Industry,
	}
	a.foldWeb(profile, outcomes[0], outcomes[1])
	a.foldAnalysis(profile, outcomes[2])

	if profile.Overview == "" {
		profile.Overview = fmt.Sprintf("%s operates in the %s industry.", req.Company, req.Industry)
	}
	if len(profile.Terms) == 0 {
		profile.Terms = []string{strings.ToLower(req.Industry)}
	}
	if len(failed) > 0 {
		profile.Degraded = true
		profile.DegradedNote = failureSummary(failed)
	}

	return profile, nil
}

// foldWeb collects source links from the web search outcomes.
func (a *Research) foldWeb(profile *core.ResearchProfile, webOutcomes ...core.ToolOutcome) {
	for _, out := range webOutcomes {
		if !out.OK() {
			continue
		}
		for _, r := range out.Results {
			if len(profile.Sources) >= a.opts.MaxSources {
				return
			}
			if r.URL == "" {
				continue
			}
			profile.Sources = append(profile.Sources, core.Link{
				Title:  r.Title,
				URL:    r.URL,
				Source: r.Source,
			})
		}
	}
}

// foldAnalysis maps the analysis elements onto the profile: snippets join
// into the overview, titles become offering labels and lower-cased search
// terms for downstream query refinement.
func (a *Research) foldAnalysis(profile *core.ResearchProfile, out core.ToolOutcome) {
	if !out.OK() {
		return
	}

	var overview []string
	seen := make(map[string]bool)
	for _, r := range out.Results {
		if r.Snippet != "" {
			overview = append(overview, r.Snippet)
		}
		if r.Title == "" {
			continue
		}
		profile.Offerings = append(profile.Offerings, r.Title)

		term := strings.ToLower(r.Title)
		if !seen[term] {
			seen[term] = true
			profile.Terms = append(profile.Terms, term)
		}
	}
	profile.Overview = strings.Join(overview, " ")
}
