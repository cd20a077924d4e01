// Package websearch implements a gateway.Provider backed by a Tavily-style
// JSON search API. Responses are normalized into core.ToolResult values with
// the provider-native relevance score preserved.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/gateway"
	"github.com/hupe1980/proposalmesh/internal/util"
)

// ProviderID is the gateway registration ID.
const ProviderID = "web_search"

// Options configure the web search provider.
type Options struct {
	// BaseURL is the API root without a trailing slash.
	BaseURL string
	// APIKey authenticates requests. Defaults to TAVILY_API_KEY.
	APIKey string
	// SearchDepth selects the backend effort level ("basic" or "advanced").
	SearchDepth string
	// MaxResults bounds result count when the query does not set a limit.
	MaxResults int
	// HTTPClient performs requests. Per-call deadlines come from the
	// gateway's context; the client timeout is a backstop.
	HTTPClient *http.Client
}

// Provider queries the web search API.
type Provider struct {
	opts Options
}

var _ gateway.Provider = (*Provider)(nil)

// New creates a web search provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		BaseURL:     "https://api.tavily.com",
		APIKey:      os.Getenv("TAVILY_API_KEY"),
		SearchDepth: "basic",
		MaxResults:  5,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{opts: opts}
}

// ID returns the gateway registration ID.
func (p *Provider) ID() string { return ProviderID }

// Description summarizes the provider for diagnostics and tooling.
func (p *Provider) Description() string {
	return "Search the web for company and industry information."
}

// QuerySchema describes the accepted query parameters.
func (p *Provider) QuerySchema() map[string]any {
	return util.BuildQuerySchema(core.ToolQuery{})
}

// Search posts the query and normalizes the response. Non-2xx statuses and
// undecodable payloads are returned as classified failures; transport
// problems as plain errors for the gateway to classify.
func (p *Provider) Search(ctx context.Context, q core.ToolQuery) ([]core.ToolResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = p.opts.MaxResults
	}

	body := map[string]any{
		"api_key":      p.opts.APIKey,
		"query":        q.Text,
		"search_depth": p.opts.SearchDepth,
		"max_results":  limit,
	}
	if topic, ok := q.Filters["topic"]; ok {
		body["topic"] = topic
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("websearch: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("websearch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, gateway.FailureFromStatus(ProviderID, res.StatusCode)
	}
	if !gjson.ValidBytes(data) {
		return nil, gateway.MalformedResponse(ProviderID, errors.New("response is not valid JSON"))
	}

	items := gjson.GetBytes(data, "results")
	if !items.IsArray() {
		return nil, gateway.MalformedResponse(ProviderID, errors.New(`response is missing the "results" array`))
	}

	results := make([]core.ToolResult, 0, len(items.Array()))
	items.ForEach(func(_, item gjson.Result) bool {
		results = append(results, core.ToolResult{
			Title:   item.Get("title").String(),
			URL:     item.Get("url").String(),
			Snippet: item.Get("content").String(),
			Source:  "web",
			Score:   item.Get("score").Float(),
		})
		return true
	})
	return results, nil
}
