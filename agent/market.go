package agent

import (
	"fmt"
	"sort"

	"github.com/hupe1980/proposalmesh/core"
)

// MarketStandardsOptions configure the MarketStandards agent.
type MarketStandardsOptions struct {
	// MarketDataProvider is the gateway ID of the trend search backend.
	MarketDataProvider string
	// AnalysisProvider is the gateway ID of the analysis backend.
	AnalysisProvider string
	// TrendLimit is the result cap for the trend search.
	TrendLimit int
	// UseCaseLimit is the result cap for use-case generation.
	UseCaseLimit int
}

// MarketStandards surveys industry trends and proposes AI/ML use cases. It
// has no artifact dependencies; the use-case half and the trend half
// degrade independently.
type MarketStandards struct {
	opts MarketStandardsOptions
}

var _ core.Agent = (*MarketStandards)(nil)

// NewMarketStandards creates the MarketStandards agent.
func NewMarketStandards(optFns ...func(o *MarketStandardsOptions)) *MarketStandards {
	opts := MarketStandardsOptions{
		MarketDataProvider: "market_data",
		AnalysisProvider:   "analysis",
		TrendLimit:         5,
		UseCaseLimit:       5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &MarketStandards{opts: opts}
}

// Kind implements core.Agent.
func (a *MarketStandards) Kind() core.AgentKind { return core.AgentMarketStandards }

// Run fans out a trend search and a use-case analysis call, then builds the
// MarketTrendsReport from whichever halves succeeded.
func (a *MarketStandards) Run(tc *core.TaskContext) (core.Artifact, error) {
	req := tc.Request

	outcomes, err := fanOut(tc, []providerCall{
		{a.opts.MarketDataProvider, core.ToolQuery{
			Text:  fmt.Sprintf("%s industry AI and machine learning trends", req.Industry),
			Limit: a.opts.TrendLimit,
		}},
		{a.opts.AnalysisProvider, core.ToolQuery{
			Text:    req.Topic(),
			Limit:   a.opts.UseCaseLimit,
			Filters: map[string]string{"focus": "use_cases"},
		}},
	})
	if err != nil {
		return nil, err
	}

	ok, failed := splitOutcomes(outcomes)
	if len(ok) == 0 {
		return nil, exhausted(a.Kind(), failed)
	}

	report := &core.MarketTrendsReport{Industry: req.Industry}
	a.foldTrends(report, outcomes[0])
	a.foldUseCases(report, outcomes[1])

	if len(failed) > 0 {
		report.Degraded = true
		report.DegradedNote = failureSummary(failed)
	}

	return report, nil
}

// foldTrends maps trend search results onto the report.
func (a *MarketStandards) foldTrends(report *core.MarketTrendsReport, out core.ToolOutcome) {
	if !out.OK() {
		return
	}
	for _, r := range out.Results {
		report.Trends = append(report.Trends, core.MarketTrend{
			Title:   r.Title,
			Summary: r.Snippet,
			Source:  r.URL,
		})
	}
}

// foldUseCases maps analysis elements onto prioritized use cases. Elements
// without an explicit priority sort after explicit ones, in arrival order.
func (a *MarketStandards) foldUseCases(report *core.MarketTrendsReport, out core.ToolOutcome) {
	if !out.OK() {
		return
	}
	for i, r := range out.Results {
		uc := core.UseCase{
			Title:       r.Title,
			Description: r.Snippet,
			Priority:    len(out.Results) + i + 1,
		}
		if v, ok := r.Metadata["impact"].(string); ok {
			uc.Impact = v
		}
		if v, ok := r.Metadata["complexity"].(string); ok {
			uc.Complexity = v
		}
		if v, ok := r.Metadata["priority"].(int64); ok && v > 0 {
			uc.Priority = int(v)
		}
		report.UseCases = append(report.UseCases, uc)
	}

	sort.SliceStable(report.UseCases, func(i, j int) bool {
		return report.UseCases[i].Priority < report.UseCases[j].Priority
	})
}
