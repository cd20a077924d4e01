// Package datasets implements gateway.Providers for public dataset
// registries. Two backends share the package: a Kaggle-style registry
// (`/api/v1/search/datasets?search=`) and a HuggingFace-style registry
// (`/api/datasets?search=`). Both normalize catalog entries into
// core.ToolResult values linking to the dataset page.
package datasets

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

// Gateway registration IDs.
const (
	KaggleProviderID      = "kaggle_datasets"
	HuggingFaceProviderID = "huggingface_datasets"
)

// KaggleOptions configure the Kaggle-style backend.
type KaggleOptions struct {
	// BaseURL is the registry root without a trailing slash.
	BaseURL string
	// APIToken is sent as a bearer token. Defaults to KAGGLE_API_TOKEN.
	APIToken string
	// MaxResults bounds result count when the query does not set a limit.
	MaxResults int
	// HTTPClient performs requests.
	HTTPClient *http.Client
}

// Kaggle searches a Kaggle-style dataset registry.
type Kaggle struct {
	opts KaggleOptions
}

var _ gateway.Provider = (*Kaggle)(nil)

// NewKaggle creates the Kaggle-style backend.
func NewKaggle(optFns ...func(o *KaggleOptions)) *Kaggle {
	opts := KaggleOptions{
		BaseURL:    "https://www.kaggle.com",
		APIToken:   os.Getenv("KAGGLE_API_TOKEN"),
		MaxResults: 5,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Kaggle{opts: opts}
}

// ID returns the gateway registration ID.
func (p *Kaggle) ID() string { return KaggleProviderID }

// Description summarizes the provider for diagnostics and tooling.
func (p *Kaggle) Description() string {
	return "Search the Kaggle registry for datasets."
}

// QuerySchema describes the accepted query parameters.
func (p *Kaggle) QuerySchema() map[string]any {
	return util.BuildQuerySchema(core.ToolQuery{})
}

// Search queries the registry and normalizes catalog entries. The registry
// answers either a bare array or an object wrapping a "datasets" array;
// both shapes are accepted.
func (p *Kaggle) Search(ctx context.Context, q core.ToolQuery) ([]core.ToolResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/search/datasets?search=%s", p.opts.BaseURL, url.QueryEscape(q.Text))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("datasets: build request: %w", err)
	}
	if p.opts.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.opts.APIToken)
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
		return nil, gateway.FailureFromStatus(KaggleProviderID, res.StatusCode)
	}
	if !gjson.ValidBytes(data) {
		return nil, gateway.MalformedResponse(KaggleProviderID, errors.New("response is not valid JSON"))
	}

	items := gjson.GetBytes(data, "datasets")
	if !items.IsArray() {
		items = gjson.ParseBytes(data)
	}
	if !items.IsArray() {
		return nil, gateway.MalformedResponse(KaggleProviderID, errors.New("response holds no dataset array"))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = p.opts.MaxResults
	}

	results := make([]core.ToolResult, 0, limit)
	items.ForEach(func(_, item gjson.Result) bool {
		if len(results) >= limit {
			return false
		}
		ref := item.Get("ref").String()
		link := item.Get("url").String()
		if link == "" && ref != "" {
			link = p.opts.BaseURL + "/datasets/" + ref
		}
		results = append(results, core.ToolResult{
			Title:   item.Get("title").String(),
			URL:     link,
			Snippet: item.Get("subtitle").String(),
			Source:  "kaggle",
			Metadata: map[string]any{
				"ref":         ref,
				"downloads":   item.Get("downloadCount").Int(),
				"total_bytes": item.Get("totalBytes").Int(),
			},
		})
		return true
	})
	return results, nil
}

// HuggingFaceOptions configure the HuggingFace-style backend.
type HuggingFaceOptions struct {
	// BaseURL is the hub root without a trailing slash.
	BaseURL string
	// MaxResults bounds result count when the query does not set a limit.
	MaxResults int
	// HTTPClient performs requests.
	HTTPClient *http.Client
}

// HuggingFace searches a HuggingFace-style dataset hub. The hub endpoint is
// unauthenticated.
type HuggingFace struct {
	opts HuggingFaceOptions
}

var _ gateway.Provider = (*HuggingFace)(nil)

// NewHuggingFace creates the HuggingFace-style backend.
func NewHuggingFace(optFns ...func(o *HuggingFaceOptions)) *HuggingFace {
	opts := HuggingFaceOptions{
		BaseURL:    "https://huggingface.co",
		MaxResults: 5,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &HuggingFace{opts: opts}
}

// ID returns the gateway registration ID.
func (p *HuggingFace) ID() string { return HuggingFaceProviderID }

// Description summarizes the provider for diagnostics and tooling.
func (p *HuggingFace) Description() string {
	return "Search the HuggingFace hub for datasets."
}

// QuerySchema describes the accepted query parameters.
func (p *HuggingFace) QuerySchema() map[string]any {
	return util.BuildQuerySchema(core.ToolQuery{})
}

// Search queries the hub and normalizes dataset entries.
func (p *HuggingFace) Search(ctx context.Context, q core.ToolQuery) ([]core.ToolResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = p.opts.MaxResults
	}

	endpoint := fmt.Sprintf("%s/api/datasets?search=%s&limit=%s",
		p.opts.BaseURL, url.QueryEscape(q.Text), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("datasets: build request: %w", err)
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
		return nil, gateway.FailureFromStatus(HuggingFaceProviderID, res.StatusCode)
	}
	if !gjson.ValidBytes(data) {
		return nil, gateway.MalformedResponse(HuggingFaceProviderID, errors.New("response is not valid JSON"))
	}

	items := gjson.ParseBytes(data)
	if !items.IsArray() {
		return nil, gateway.MalformedResponse(HuggingFaceProviderID, errors.New("response is not a dataset array"))
	}

	results := make([]core.ToolResult, 0, limit)
	items.ForEach(func(_, item gjson.Result) bool {
		if len(results) >= limit {
			return false
		}
		id := item.Get("id").String()
		results = append(results, core.ToolResult{
			Title:   id,
			URL:     p.opts.BaseURL + "/datasets/" + id,
			Snippet: item.Get("description").String(),
			Source:  "huggingface",
			Score:   item.Get("likes").Float(),
			Metadata: map[string]any{
				"downloads": item.Get("downloads").Int(),
			},
		})
		return true
	})
	return results, nil
}
