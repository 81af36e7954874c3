package cache

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/codegen"
)

// CompilationMetrics tracks performance metrics for compilation
type CompilationMetrics struct {
	TotalPages    int
	CacheHits     int
	CacheMisses   int
	PagesCompiled int
	TotalDuration time.Duration
	StartTime     time.Time
	EndTime       time.Time
}

// CacheHitRate returns the cache hit rate as a percentage
func (cm *CompilationMetrics) CacheHitRate() float64 {
	if cm.TotalPages == 0 {
		return 0.0
	}
	return float64(cm.CacheHits) / float64(cm.TotalPages) * 100.0
}

// CompilationResult represents the result of compiling a single page
type CompilationResult struct {
	PageID appdom.NodeID
	Source string
	Key    string
	Cached bool
}

// Coordinator compiles pages through a Store
type Coordinator struct {
	store   Store
	hasher  *Hasher
	logger  *zap.Logger
	opts    []codegen.Option
	workers int

	mu      sync.Mutex
	metrics CompilationMetrics
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger used for compiles and store failures
func WithLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
			c.opts = append(c.opts, codegen.WithLogger(logger))
		}
	}
}

// WithCompileOptions passes options through to codegen
func WithCompileOptions(opts ...codegen.Option) CoordinatorOption {
	return func(c *Coordinator) {
		c.opts = append(c.opts, opts...)
	}
}

// WithWorkers bounds the number of pages compiled concurrently
func WithWorkers(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewCoordinator creates a coordinator over store; a nil store gets a PageCache
func NewCoordinator(store Store, opts ...CoordinatorOption) *Coordinator {
	if store == nil {
		store = NewPageCache(0)
	}
	c := &Coordinator{
		store:   store,
		hasher:  NewHasher(),
		logger:  zap.NewNop(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompilePage returns the module source of one page, compiling on a miss
func (c *Coordinator) CompilePage(ctx context.Context, appID string, doc *appdom.Document, pageID appdom.NodeID, config codegen.RenderConfig) (*CompilationResult, error) {
	docHash, err := c.hasher.HashDocument(doc)
	if err != nil {
		return nil, err
	}
	return c.compile(ctx, appID, doc, docHash, pageID, config)
}

// CompileApp compiles every page of doc in parallel
func (c *Coordinator) CompileApp(ctx context.Context, appID string, doc *appdom.Document, config codegen.RenderConfig) ([]*CompilationResult, *CompilationMetrics, error) {
	start := time.Now()

	docHash, err := c.hasher.HashDocument(doc)
	if err != nil {
		return nil, nil, err
	}

	pages := doc.Pages()
	results := make([]*CompilationResult, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, page := range pages {
		i, pageID := i, page.ID
		g.Go(func() error {
			res, err := c.compile(gctx, appID, doc, docHash, pageID, config)
			if err != nil {
				return fmt.Errorf("page %s: %w", pageID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	metrics := &CompilationMetrics{TotalPages: len(results), StartTime: start, EndTime: time.Now()}
	metrics.TotalDuration = metrics.EndTime.Sub(start)
	for _, res := range results {
		if res.Cached {
			metrics.CacheHits++
		} else {
			metrics.CacheMisses++
			metrics.PagesCompiled++
		}
	}
	return results, metrics, nil
}

func (c *Coordinator) compile(ctx context.Context, appID string, doc *appdom.Document, docHash string, pageID appdom.NodeID, config codegen.RenderConfig) (*CompilationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := c.hasher.PageKey(appID, docHash, pageID, config)
	src, err := c.store.Get(ctx, key)
	if err == nil {
		c.record(true)
		return &CompilationResult{PageID: pageID, Source: src, Key: key, Cached: true}, nil
	}
	if !IsCacheMiss(err) {
		c.logger.Warn("page cache read failed", zap.String("key", key), zap.Error(err))
	}

	src, err = codegen.CompilePage(appID, doc, pageID, config, c.opts...)
	if err != nil {
		return nil, err
	}
	c.record(false)

	if err := c.store.Set(ctx, key, src); err != nil {
		c.logger.Warn("page cache write failed", zap.String("key", key), zap.Error(err))
	}
	return &CompilationResult{PageID: pageID, Source: src, Key: key}, nil
}

func (c *Coordinator) record(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.TotalPages++
	if hit {
		c.metrics.CacheHits++
	} else {
		c.metrics.CacheMisses++
		c.metrics.PagesCompiled++
	}
}

// Metrics returns the counters accumulated since creation or the last Clear
func (c *Coordinator) Metrics() CompilationMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Clear empties the store and resets the counters
func (c *Coordinator) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.metrics = CompilationMetrics{}
	c.mu.Unlock()
	return c.store.Clear(ctx)
}

// Close releases the underlying store
func (c *Coordinator) Close() error {
	return c.store.Close()
}
