package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryKeyIsCanonical(t *testing.T) {
	a := QueryKey("/data/app/preview/", "api1", map[string]any{"b": 2, "a": 1})
	b := QueryKey("/data/app/preview/", "api1", map[string]any{"a": 1, "b": 2})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, QueryKey("/data/app/preview/", "api2", map[string]any{"a": 1, "b": 2}))
}

func TestQueryClientDeduplicatesConcurrentFetches(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	client, err := NewQueryClient(FetcherFunc(func(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "rows", nil
	}), 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := client.Fetch(context.Background(), "/data/", "api", map[string]any{"limit": 1})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(release)
	wg.Wait()

	v, err := client.Fetch(context.Background(), "/data/", "api", map[string]any{"limit": 1})
	require.NoError(t, err)
	assert.Equal(t, "rows", v)
	for _, r := range results {
		assert.Equal(t, "rows", r)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestQueryClientDoesNotCacheErrors(t *testing.T) {
	var calls int32
	client, err := NewQueryClient(FetcherFunc(func(context.Context, string, string, map[string]any) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("temporary")
		}
		return "ok", nil
	}), 0)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "/d/", "api", nil)
	require.Error(t, err)
	v, err := client.Fetch(context.Background(), "/d/", "api", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	client.Invalidate()
	_, err = client.Fetch(context.Background(), "/d/", "api", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestQueryClientCallerCancelDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr error
	client, err := NewQueryClient(FetcherFunc(func(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error) {
		close(started)
		<-release
		fetchErr = ctx.Err()
		return "rows", nil
	}), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := client.Fetch(ctx, "/d/", "api", nil)
		first <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	second := make(chan any, 1)
	go func() {
		v, err := client.Fetch(context.Background(), "/d/", "api", nil)
		assert.NoError(t, err)
		second <- v
	}()
	close(release)
	assert.Equal(t, "rows", <-second)
	assert.NoError(t, fetchErr)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/data/app/preview/orders":
			var params map[string]any
			if err := json.Unmarshal([]byte(r.URL.Query().Get("params")), &params); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": params})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "unknown query"})
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{BaseURL: srv.URL}
	data, err := f.Fetch(context.Background(), "/data/app/preview/", "orders", map[string]any{"limit": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"limit": float64(3)}, data)

	_, err = f.Fetch(context.Background(), "/data/app/preview/", "missing", nil)
	require.EqualError(t, err, "unknown query")
}
