package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/appdom/appdomtest"
	"github.com/pagecraft-dev/pagecraft/internal/store"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	limiter, err := NewMemoryLimiter(2, time.Minute)
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	info, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 1, info.Remaining)

	info, _ = limiter.Allow(ctx, "a")
	assert.True(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)

	info, _ = limiter.Allow(ctx, "a")
	assert.False(t, info.Allowed)
	assert.Equal(t, now.Add(time.Minute), info.ResetAt)

	// Keys are independent
	info, _ = limiter.Allow(ctx, "b")
	assert.True(t, info.Allowed)

	// Half a window refills one token
	now = now.Add(30 * time.Second)
	info, _ = limiter.Allow(ctx, "a")
	assert.True(t, info.Allowed)
	info, _ = limiter.Allow(ctx, "a")
	assert.False(t, info.Allowed)
}

func TestMemoryLimiterEvictsIdleKeys(t *testing.T) {
	limiter, err := NewMemoryLimiter(1, time.Second)
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "a")
	now = now.Add(3 * time.Second)
	_, _ = limiter.Allow(context.Background(), "b")
	assert.Len(t, limiter.buckets, 1)
}

func TestNewLimiterValidation(t *testing.T) {
	_, err := NewMemoryLimiter(0, time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLimiter(nil, 1, time.Minute)
	assert.Error(t, err)
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter, err := NewRedisLimiter(client, 2, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		info, err := limiter.Allow(ctx, "10.0.0.1:shop")
		require.NoError(t, err)
		assert.Equal(t, want, info.Allowed, "request %d", i)
	}
	info, err := limiter.Allow(ctx, "10.0.0.2:shop")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 1, info.Remaining)

	assert.True(t, mr.Exists("pagecraft:ratelimit:10.0.0.1:shop"))
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	limiter, err := NewRedisLimiter(client, 2, time.Minute)
	require.NoError(t, err)

	mr.Close()
	_, err = limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (*LimitInfo, error) {
	return nil, errors.New("down")
}

func TestRateLimitedDataEndpoint(t *testing.T) {
	docs := store.NewFileStore(t.TempDir())
	b := appdomtest.New(t)
	api := b.API("numbers", "static", map[string]any{"data": []any{1, 2}})
	require.NoError(t, docs.Save(context.Background(), "shop", b.Doc))

	limiter, err := NewMemoryLimiter(2, time.Minute)
	require.NoError(t, err)
	config := DefaultConfig(docs)
	config.RateLimiter = limiter
	srv, err := New(config)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Hub().Close()

	url := ts.URL + "/data/shop/preview/" + string(api.ID)
	for i := 0; i < 2; i++ {
		resp, err := http.Get(url)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	}

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "rate limit exceeded", body["error"])

	// Other routes are not limited
	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestRateLimitFailsOpen(t *testing.T) {
	called := false
	h := RateLimit(failingLimiter{}, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/data/shop/preview/q", nil))
	assert.True(t, called)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(r))
}
