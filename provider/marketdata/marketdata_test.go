package marketdata

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

func TestSearch_PinsNewsTopic(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{
			"results": [
				{"title": "AI adoption in supply chain accelerates", "url": "https://example.com/trend", "content": "Logistics firms deploy demand forecasting.", "score": 0.88, "published_date": "2026-07-01"}
			]
		}`))
	}))
	defer srv.Close()

	p := New(func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test-key"
		o.Days = 30
		o.HTTPClient = srv.Client()
	})

	results, err := p.Search(context.Background(), core.ToolQuery{Text: "supply-chain AI trends", Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "news", results[0].Source)
	assert.Equal(t, "2026-07-01", results[0].Metadata["published_date"])

	assert.Equal(t, "news", captured["topic"])
	assert.Equal(t, float64(30), captured["days"])
	assert.Equal(t, float64(3), captured["max_results"])
}

func TestSearch_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := New(func(o *Options) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})

	_, err := p.Search(context.Background(), core.ToolQuery{Text: "trends"})
	require.Error(t, err)

	var fe *core.ToolFailureError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.FailureAuthError, fe.Kind)
	assert.Equal(t, ProviderID, fe.Provider)
}
