// Package codehost implements a gateway.Provider for GitHub-style repository
// search (`/search/repositories?q=`). Results point at reference
// implementations the resource agent folds into proposals.
package codehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/gateway"
	"github.com/hupe1980/proposalmesh/internal/util"
)

// ProviderID is the gateway registration ID.
const ProviderID = "code_search"

// Options configure the code host provider.
type Options struct {
	// BaseURL is the API root without a trailing slash.
	BaseURL string
	// Token authenticates requests when set. Defaults to GITHUB_TOKEN.
	// Anonymous search works under a tighter rate limit.
	Token string
	// MaxResults bounds result count when the query does not set a limit.
	MaxResults int
	// HTTPClient performs requests.
	HTTPClient *http.Client
}

// Provider searches a GitHub-style repository index.
type Provider struct {
	opts Options
}

var _ gateway.Provider = (*Provider)(nil)

// New creates a code host provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		BaseURL:    "https://api.github.com",
		Token:      os.Getenv("GITHUB_TOKEN"),
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
	return "Search code hosting for reference implementations."
}

// QuerySchema describes the accepted query parameters.
func (p *Provider) QuerySchema() map[string]any {
	return util.BuildQuerySchema(core.ToolQuery{})
}

// Search queries the repository index sorted by stars and normalizes the
// item list.
func (p *Provider) Search(ctx context.Context, q core.ToolQuery) ([]core.ToolResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = p.opts.MaxResults
	}

	query := q.Text
	if lang, ok := q.Filters["language"]; ok {
		query += " language:" + lang
	}

	endpoint := fmt.Sprintf("%s/search/repositories?q=%s&sort=stars&per_page=%s",
		p.opts.BaseURL, url.QueryEscape(query), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("codehost: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if p.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.opts.Token)
	}

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

	items := gjson.GetBytes(data, "items")
	if !items.IsArray() {
		return nil, gateway.MalformedResponse(ProviderID, errors.New(`response is missing the "items" array`))
	}

	results := make([]core.ToolResult, 0, limit)
	items.ForEach(func(_, item gjson.Result) bool {
		if len(results) >= limit {
			return false
		}
		results = append(results, core.ToolResult{
			Title:   item.Get("full_name").String(),
			URL:     item.Get("html_url").String(),
			Snippet: item.Get("description").String(),
			Source:  "github",
			Score:   item.Get("score").Float(),
			Metadata: map[string]any{
				"stars":    item.Get("stargazers_count").Int(),
				"language": item.Get("language").String(),
			},
		})
		return true
	})
	return results, nil
}
