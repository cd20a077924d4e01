// Package marketdata implements a gateway.Provider for industry trend and
// market intelligence search. It speaks the same JSON POST dialect as the
// web search backend but pins the news topic and a recency window, so
// callers get current-trend material rather than evergreen pages.
package marketdata

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
const ProviderID = "market_data"

// Options configure the market data provider.
type Options struct {
	// BaseURL is the API root without a trailing slash.
	BaseURL string
	// APIKey authenticates requests. Defaults to TAVILY_API_KEY.
	APIKey string
	// Days is the recency window for trend material.
	Days int
	// MaxResults bounds result count when the query does not set a limit.
	MaxResults int
	// HTTPClient performs requests.
	HTTPClient *http.Client
}

// Provider queries the market intelligence API.
type Provider struct {
	opts Options
}

var _ gateway.Provider = (*Provider)(nil)

// New creates a market data provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		BaseURL:    "https://api.tavily.com",
		APIKey:     os.Getenv("TAVILY_API_KEY"),
		Days:       90,
		MaxResults: 5,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
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
	return "Search recent market and industry trend coverage."
}

// QuerySchema describes the accepted query parameters.
func (p *Provider) QuerySchema() map[string]any {
	return util.BuildQuerySchema(core.ToolQuery{})
}

// Search posts the trend query and normalizes the response.
func (p *Provider) Search(ctx context.Context, q core.ToolQuery) ([]core.ToolResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = p.opts.MaxResults
	}

	body := map[string]any{
		"api_key":     p.opts.APIKey,
		"query":       q.Text,
		"topic":       "news",
		"days":        p.opts.Days,
		"max_results": limit,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marketdata: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("marketdata: build request: %w", err)
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
		r := core.ToolResult{
			Title:   item.Get("title").String(),
			URL:     item.Get("url").String(),
			Snippet: item.Get("content").String(),
			Source:  "news",
			Score:   item.Get("score").Float(),
		}
		if published := item.Get("published_date").String(); published != "" {
			r.Metadata = map[string]any{"published_date": published}
		}
		results = append(results, r)
		return true
	})
	return results, nil
}
