package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether one more data query may run for key
type Limiter interface {
	Allow(ctx context.Context, key string) (*LimitInfo, error)
}

// LimitInfo is the state of a key after a request was counted
type LimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// MemoryLimiter is a per-key token bucket refilled continuously: limit
// tokens per window
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

type tokenBucket struct {
	tokens float64
	last   time.Time
}

// NewMemoryLimiter allows limit queries per window and key
func NewMemoryLimiter(limit int, window time.Duration) (*MemoryLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("rate limit needs a positive limit and window, got %d per %s", limit, window)
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*tokenBucket),
	}, nil
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (*LimitInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: float64(m.limit), last: now}
		m.buckets[key] = b
	}
	refill := float64(m.limit) * now.Sub(b.last).Seconds() / m.window.Seconds()
	b.tokens = min(float64(m.limit), b.tokens+refill)
	b.last = now
	m.evict(now)

	info := &LimitInfo{Limit: m.limit}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = int(b.tokens)
	missing := float64(m.limit) - b.tokens
	info.ResetAt = now.Add(time.Duration(missing / float64(m.limit) * float64(m.window)))
	return info, nil
}

// evict drops buckets that have been full for a whole window
func (m *MemoryLimiter) evict(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.last) > 2*m.window {
			delete(m.buckets, key)
		}
	}
}

// slidingWindow counts requests of the last window in a sorted set
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	return {1, current + 1}
end
return {0, current}
`)

// RedisLimiter is a sliding window limiter shared by every server using the
// same redis
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	seq    uint64
	mu     sync.Mutex
}

// NewRedisLimiter allows limit queries per window and key
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if limit <= 0 || window < time.Millisecond {
		return nil, fmt.Errorf("rate limit needs a positive limit and window, got %d per %s", limit, window)
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "pagecraft:ratelimit:"}, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (*LimitInfo, error) {
	now := time.Now()
	r.mu.Lock()
	r.seq++
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(r.seq, 10)
	r.mu.Unlock()

	res, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixMilli(), r.window.Milliseconds(), r.limit, member).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 2 {
		return nil, errors.New("redis rate limit: unexpected script result")
	}

	return &LimitInfo{
		Limit:     r.limit,
		Remaining: max(0, r.limit-int(res[1])),
		ResetAt:   now.Add(r.window),
		Allowed:   res[0] == 1,
	}, nil
}

// RateLimit limits requests per client address and app. Limiter failures
// let the request through.
func RateLimit(limiter Limiter, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r) + ":" + chi.URLParam(r, "appId")
			info, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
			if !info.Allowed {
				retry := int(time.Until(info.ResetAt).Seconds() + 0.5)
				h.Set("Retry-After", strconv.Itoa(max(retry, 1)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
