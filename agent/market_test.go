package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/proposalmesh/core"
)

func TestMarketStandardsBuildsReport(t *testing.T) {
	caller := newScriptedCaller()
	caller.succeed("market_data",
		core.ToolResult{Title: "Predictive ETA", Snippet: "Carriers adopt ML-based arrival estimates.", URL: "https://news.example.com/eta", Source: "news"},
		core.ToolResult{Title: "Warehouse robotics", Source: "news"},
	)
	caller.succeed("analysis",
		core.ToolResult{Title: "Demand Forecasting", Snippet: "Forecast regional demand.", Metadata: map[string]any{
			"impact": "lower stockouts", "complexity": "medium", "priority": int64(2),
		}},
		core.ToolResult{Title: "Dynamic Routing", Snippet: "Reroute fleets in real time.", Metadata: map[string]any{
			"impact": "fuel savings", "complexity": "high", "priority": int64(1),
		}},
		core.ToolResult{Title: "Churn Watch", Snippet: "Spot at-risk shippers."},
	)

	tc := newTestContext(t, core.AgentMarketStandards, caller)
	art, err := NewMarketStandards().Run(tc)
	require.NoError(t, err)

	report, ok := art.(*core.MarketTrendsReport)
	require.True(t, ok)

	assert.Equal(t, "supply-chain", report.Industry)
	assert.False(t, report.Degraded)

	require.Len(t, report.Trends, 2)
	assert.Equal(t, "Predictive ETA", report.Trends[0].Title)
	assert.Equal(t, "Carriers adopt ML-based arrival estimates.", report.Trends[0].Summary)
	assert.Equal(t, "https://news.example.com/eta", report.Trends[0].Source)

	// Explicit priorities order first; the unrated use case sorts last.
	require.Len(t, report.UseCases, 3)
	assert.Equal(t, "Dynamic Routing", report.UseCases[0].Title)
	assert.Equal(t, 1, report.UseCases[0].Priority)
	assert.Equal(t, "fuel savings", report.UseCases[0].Impact)
	assert.Equal(t, "high", report.UseCases[0].Complexity)
	assert.Equal(t, "Demand Forecasting", report.UseCases[1].Title)
	assert.Equal(t, "Churn Watch", report.UseCases[2].Title)
	assert.Greater(t, report.UseCases[2].Priority, report.UseCases[1].Priority)

	trendQueries := caller.queriesFor("market_data")
	require.Len(t, trendQueries, 1)
	assert.Equal(t, "supply-chain industry AI and machine learning trends", trendQueries[0].Text)

	analysisQueries := caller.queriesFor("analysis")
	require.Len(t, analysisQueries, 1)
	assert.Equal(t, "use_cases", analysisQueries[0].Filters["focus"])
}

func TestMarketStandardsDegradesWhenTrendSearchFails(t *testing.T) {
	caller := newScriptedCaller()
	caller.fail("market_data", core.FailureRateLimited, "unexpected status 429 (rate_limited)")
	caller.succeed("analysis",
		core.ToolResult{Title: "Demand Forecasting", Snippet: "Forecast regional demand."},
	)

	tc := newTestContext(t, core.AgentMarketStandards, caller)
	art, err := NewMarketStandards().Run(tc)
	require.NoError(t, err)

	report := art.(*core.MarketTrendsReport)
	assert.True(t, report.Degraded)
	assert.Contains(t, report.DegradedNote, "429")
	assert.Empty(t, report.Trends)
	require.Len(t, report.UseCases, 1)
}

func TestMarketStandardsFailsWhenAllCallsExhausted(t *testing.T) {
	caller := newScriptedCaller()
	caller.fail("market_data", core.FailureTransportError, "connection refused")
	caller.fail("analysis", core.FailureMalformedResponse, "completion is not a JSON array")

	tc := newTestContext(t, core.AgentMarketStandards, caller)
	art, err := NewMarketStandards().Run(tc)

	require.Nil(t, art)
	aerr := requireAgentError(t, err, core.AgentErrCallsExhausted)
	assert.Equal(t, core.AgentMarketStandards, aerr.Agent)
}
