package apify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rekrytera/signals-cli/internal/resilience"
)

func TestRunActorSync_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/acts/acme~job-scraper/run-sync-get-dataset-items", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var input map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, "lagerarbetare", input["query"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"job-1","title":"Lagerarbetare"},{"id":"job-2","title":"Truckförare"}]`))
	}))
	defer srv.Close()

	client := NewClient("test-token", WithBaseURL(srv.URL))
	items, err := client.RunActorSync(context.Background(), "acme~job-scraper", map[string]any{
		"query": "lagerarbetare",
	})

	require.NoError(t, err)
	require.Len(t, items, 2)

	var first map[string]string
	require.NoError(t, json.Unmarshal(items[0], &first))
	assert.Equal(t, "job-1", first["id"])
}

func TestRunActorSync_EmptyDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient("test-token", WithBaseURL(srv.URL))
	items, err := client.RunActorSync(context.Background(), "acme~job-scraper", nil)

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRunActorSync_RetriesTransientStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		// The request body must survive the retry intact.
		var input map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, "lagerarbetare", input["query"])
		_, _ = w.Write([]byte(`[{"id":"job-1"}]`))
	}))
	defer srv.Close()

	client := NewClient("test-token",
		WithBaseURL(srv.URL),
		WithRetryConfig(resilience.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}),
	)
	items, err := client.RunActorSync(context.Background(), "acme~job-scraper", map[string]any{
		"query": "lagerarbetare",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, items, 1)
}

func TestRunActorSync_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"token-not-found"}}`))
	}))
	defer srv.Close()

	client := NewClient("bad-token", WithBaseURL(srv.URL))
	items, err := client.RunActorSync(context.Background(), "acme~job-scraper", nil)

	assert.Error(t, err)
	assert.Nil(t, items)
	assert.Contains(t, err.Error(), "401")
}

func TestRunActorSync_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", WithBaseURL(srv.URL))
	items, err := client.RunActorSync(context.Background(), "acme~job-scraper", nil)

	assert.Error(t, err)
	assert.Nil(t, items)
}

func TestRunActorSync_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-token", WithBaseURL(srv.URL))
	items, err := client.RunActorSync(ctx, "acme~job-scraper", nil)

	assert.Error(t, err)
	assert.Nil(t, items)
}
