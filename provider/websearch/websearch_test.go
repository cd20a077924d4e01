package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/proposalmesh/core"
)

func newTestProvider(srv *httptest.Server) *Provider {
	return New(func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test-key"
		o.HTTPClient = srv.Client()
	})
}

func TestSearch_NormalizesResults(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_, _ = w.Write([]byte(`{
			"results": [
				{"title": "Acme Logistics overview", "url": "https://example.com/acme", "content": "Acme runs cold-chain freight.", "score": 0.93},
				{"title": "Supply chain outlook", "url": "https://example.com/outlook", "content": "Industry analysis.", "score": 0.71}
			]
		}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	results, err := p.Search(context.Background(), core.ToolQuery{
		Text:    "Acme Logistics company profile",
		Limit:   2,
		Filters: map[string]string{"topic": "general"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Acme Logistics overview", results[0].Title)
	assert.Equal(t, "https://example.com/acme", results[0].URL)
	assert.Equal(t, "Acme runs cold-chain freight.", results[0].Snippet)
	assert.Equal(t, "web", results[0].Source)
	assert.InDelta(t, 0.93, results[0].Score, 1e-9)

	assert.Equal(t, "test-key", captured["api_key"])
	assert.Equal(t, "Acme Logistics company profile", captured["query"])
	assert.Equal(t, float64(2), captured["max_results"])
	assert.Equal(t, "general", captured["topic"])
}

func TestSearch_ClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	_, err := p.Search(context.Background(), core.ToolQuery{Text: "acme"})
	require.Error(t, err)

	var fe *core.ToolFailureError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.FailureRateLimited, fe.Kind)
	assert.Equal(t, ProviderID, fe.Provider)
}

func TestSearch_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	_, err := p.Search(context.Background(), core.ToolQuery{Text: "acme"})
	require.Error(t, err)

	var fe *core.ToolFailureError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.FailureMalformedResponse, fe.Kind)
}

func TestSearch_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	_, err := p.Search(context.Background(), core.ToolQuery{Text: "acme"})
	require.Error(t, err)

	var fe *core.ToolFailureError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.FailureMalformedResponse, fe.Kind)
}
