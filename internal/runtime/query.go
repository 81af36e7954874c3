package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultQueryCacheSize is the number of settled query results kept.
const DefaultQueryCacheSize = 128

// Fetcher executes one data query.
type Fetcher interface {
	Fetch(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error)

func (f FetcherFunc) Fetch(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error) {
	return f(ctx, dataURL, apiID, params)
}

// QueryClient deduplicates and caches data queries. Concurrent requests for
// the same key share one fetch; successful results are cached per key.
// Errors are never cached.
type QueryClient struct {
	fetcher Fetcher
	group   singleflight.Group
	cache   *lru.Cache[string, any]
}

// NewQueryClient wraps fetcher with a result cache of size entries.
func NewQueryClient(fetcher Fetcher, size int) (*QueryClient, error) {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	cache, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	return &QueryClient{fetcher: fetcher, cache: cache}, nil
}

// QueryKey identifies a query by endpoint, api and canonical params.
func QueryKey(dataURL, apiID string, params map[string]any) string {
	data, err := json.Marshal(jsonSafe(params))
	if err != nil {
		data = []byte("{}")
	}
	return dataURL + apiID + "?" + string(data)
}

// Fetch returns the result for the query, from cache when possible. The
// shared fetch outlives any single caller; ctx only bounds this caller's
// wait for it.
func (c *QueryClient) Fetch(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error) {
	key := QueryKey(dataURL, apiID, params)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}
		v, err := c.fetcher.Fetch(shared, dataURL, apiID, params)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, v)
		return v, nil
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops every cached result.
func (c *QueryClient) Invalidate() {
	c.cache.Purge()
}

// HTTPFetcher fetches queries from the data endpoint of a pagecraft server.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

type dataResponse struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// Fetch issues GET {BaseURL}{dataURL}{apiID}?params=<json>.
func (f *HTTPFetcher) Fetch(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error) {
	encoded, err := json.Marshal(jsonSafe(params))
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	endpoint := strings.TrimSuffix(f.BaseURL, "/") + dataURL + url.PathEscape(apiID) +
		"?params=" + url.QueryEscape(string(encoded))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("data request failed: %s", resp.Status)
		}
		return nil, fmt.Errorf("decode data response: %w", err)
	}
	if body.Error != "" {
		return nil, errors.New(body.Error)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("data request failed: %s", resp.Status)
	}
	return body.Data, nil
}

// queryValue is the page-visible state of a settled query.
func queryValue(data any, err error) map[string]any {
	if err != nil {
		return map[string]any{
			"status":     "error",
			"isLoading":  false,
			"isFetching": false,
			"error":      map[string]any{"message": err.Error()},
		}
	}
	return map[string]any{
		"status":     "success",
		"isLoading":  false,
		"isFetching": false,
		"error":      nil,
		"data":       data,
	}
}
