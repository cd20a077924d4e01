package datasets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/proposalmesh/core"
)

func TestKaggleSearch_WrappedArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/search/datasets", r.URL.Path)
		require.Equal(t, "freight demand", r.URL.Query().Get("search"))
		require.Equal(t, "Bearer kaggle-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
			"datasets": [
				{"ref": "acme/freight-history", "title": "Freight demand history", "subtitle": "Five years of shipment volumes", "downloadCount": 1200, "totalBytes": 5242880},
				{"ref": "acme/cold-chain", "title": "Cold chain sensor logs", "url": "https://example.com/cold-chain"}
			]
		}`))
	}))
	defer srv.Close()

	p := NewKaggle(func(o *KaggleOptions) {
		o.BaseURL = srv.URL
		o.APIToken = "kaggle-token"
		o.HTTPClient = srv.Client()
	})

	results, err := p.Search(context.Background(), core.ToolQuery{Text: "freight demand"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Freight demand history", results[0].Title)
	assert.Equal(t, srv.URL+"/datasets/acme/freight-history", results[0].URL)
	assert.Equal(t, "kaggle", results[0].Source)
	assert.Equal(t, int64(1200), results[0].Metadata["downloads"])

	// Explicit url wins over the ref-derived one.
	assert.Equal(t, "https://example.com/cold-chain", results[1].URL)
}

func TestKaggleSearch_BareArrayAndLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"ref": "a/one", "title": "One"},
			{"ref": "a/two", "title": "Two"},
			{"ref": "a/three", "title": "Three"}
		]`))
	}))
	defer srv.Close()

	p := NewKaggle(func(o *KaggleOptions) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})

	results, err := p.Search(context.Background(), core.ToolQuery{Text: "anything", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestKaggleSearch_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewKaggle(func(o *KaggleOptions) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})

	_, err := p.Search(context.Background(), core.ToolQuery{Text: "freight"})
	require.Error(t, err)

	var fe *core.ToolFailureError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.FailureAuthError, fe.Kind)
	assert.Equal(t, KaggleProviderID, fe.Provider)
}

func TestHuggingFaceSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/datasets", r.URL.Path)
		require.Equal(t, "demand forecasting", r.URL.Query().Get("search"))
		require.Equal(t, "5", r.URL.Query().Get("limit"))

		_, _ = w.Write([]byte(`[
			{"id": "acme/shipments", "description": "Shipment records for forecasting", "likes": 42, "downloads": 9000},
			{"id": "open/logistics-news", "likes": 7}
		]`))
	}))
	defer srv.Close()

	p := NewHuggingFace(func(o *HuggingFaceOptions) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})

	results, err := p.Search(context.Background(), core.ToolQuery{Text: "demand forecasting"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "acme/shipments", results[0].Title)
	assert.Equal(t, srv.URL+"/datasets/acme/shipments", results[0].URL)
	assert.Equal(t, "huggingface", results[0].Source)
	assert.InDelta(t, 42, results[0].Score, 1e-9)
	assert.Equal(t, int64(9000), results[0].Metadata["downloads"])
}

func TestHuggingFaceSearch_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": "object"}`))
	}))
	defer srv.Close()

	p := NewHuggingFace(func(o *HuggingFaceOptions) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})

	_, err := p.Search(context.Background(), core.ToolQuery{Text: "demand"})
	require.Error(t, err)

	var fe *core.ToolFailureError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.FailureMalformedResponse, fe.Kind)
}
