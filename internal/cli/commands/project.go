package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/cli/config"
	"github.com/pagecraft-dev/pagecraft/internal/cli/ui"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/cache"
	cerrors "github.com/pagecraft-dev/pagecraft/internal/compiler/errors"
	"github.com/pagecraft-dev/pagecraft/internal/datasource"
	"github.com/pagecraft-dev/pagecraft/internal/logging"
	"github.com/pagecraft-dev/pagecraft/internal/runtime"
	"github.com/pagecraft-dev/pagecraft/internal/server"
	"github.com/pagecraft-dev/pagecraft/internal/store"
)

// project is the configured workspace a command operates on
type project struct {
	dir      string
	config   *config.Config
	logger   *zap.Logger
	docs     *store.FileStore
	registry *datasource.Registry
	compiler *cache.Coordinator
	// redis is set when the page cache lives in redis
	redis *redis.Client
}

// openProject loads configuration from dir and wires the shared services.
// Flags set on the root command override the file values.
func openProject(opts *globalOptions) (*project, error) {
	dir := opts.projectDir()
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return nil, &messageError{msg: ui.ConfigProblem(err, opts.noColor), err: err}
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	pages, err := openPageCache(cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	p := &project{
		dir:      dir,
		config:   cfg,
		logger:   logger,
		docs:     store.NewFileStore(cfg.Documents.Dir),
		registry: datasource.NewRegistry(),
		compiler: cache.NewCoordinator(pages, cache.WithLogger(logger)),
	}
	if rs, ok := pages.(*cache.RedisStore); ok {
		p.redis = rs.Client()
	}
	return p, nil
}

// projectDir returns --dir, or else the nearest ancestor of the working
// directory holding a pagecraft.yml. Outside any project it is ".".
func (o *globalOptions) projectDir() string {
	if o.dir != "" {
		return o.dir
	}
	if root, err := config.GetProjectRoot(); err == nil {
		return root
	}
	return "."
}

// outDir resolves a compile output directory against the project
func (p *project) outDir(flag string) string {
	out := flag
	if out == "" {
		out = p.config.Compile.OutDir
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(p.dir, out)
	}
	return out
}

func openPageCache(cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewPageCache(cfg.Cache.Size), nil
	}
	rc := cache.DefaultRedisConfig()
	rc.Addr = cfg.Cache.Redis.Addr
	rc.Password = cfg.Cache.Redis.Password
	rc.DB = cfg.Cache.Redis.DB
	if cfg.Cache.TTL > 0 {
		rc.TTL = cfg.Cache.TTL
	}
	rs, err := cache.NewRedisStore(rc)
	if err != nil {
		return nil, fmt.Errorf("page cache: %w", err)
	}
	logger.Debug("using redis page cache", zap.String("addr", rc.Addr))
	return rs, nil
}

// rateLimiter limits data queries per server.rate_limit. It shares the
// page cache redis when there is one so every server counts together.
func (p *project) rateLimiter() (server.Limiter, error) {
	rl := p.config.Server.RateLimit
	if rl.Requests == 0 {
		return nil, nil
	}
	if p.redis != nil {
		return server.NewRedisLimiter(p.redis, rl.Requests, rl.Window)
	}
	return server.NewMemoryLimiter(rl.Requests, rl.Window)
}

// hostOptions configures headless renders from the runtime section
func (p *project) hostOptions() []runtime.Option {
	return []runtime.Option{
		runtime.WithEvaluator(runtime.NewGojaEvaluator(p.config.Runtime.EvalTimeout)),
		runtime.WithViewportWidth(p.config.Runtime.ViewportWidth),
	}
}

func (p *project) executor() *datasource.Executor {
	return &datasource.Executor{Docs: p.docs, Registry: p.registry}
}

// load reads a stored document, turning a missing one into a friendly
// message listing known apps
func (p *project) load(ctx context.Context, appID, version string, noColor bool) (*appdom.Document, error) {
	doc, err := p.docs.Load(ctx, appID, version)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &messageError{msg: ui.AppNotFound(appID, version, p.appIDs(), noColor), err: err}
	}
	return doc, err
}

func (p *project) appIDs() []string {
	refs, err := p.docs.List()
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, ref := range refs {
		if !seen[ref.AppID] {
			seen[ref.AppID] = true
			ids = append(ids, ref.AppID)
		}
	}
	return ids
}

// findPage resolves a page by name or id
func findPage(doc *appdom.Document, appID, ref string, noColor bool) (*appdom.Node, error) {
	var names []string
	for _, page := range doc.Pages() {
		if page.Name == ref || string(page.ID) == ref {
			return page, nil
		}
		names = append(names, page.Name)
	}
	return nil, &messageError{
		msg: ui.PageNotFound(appID, ref, names, noColor),
		err: fmt.Errorf("page %q not found", ref),
	}
}

func (p *project) Close() {
	if err := p.compiler.Close(); err != nil {
		p.logger.Warn("closing page cache", zap.Error(err))
	}
	_ = p.logger.Sync()
}

// messageError carries a preformatted terminal message for an error
type messageError struct {
	msg ui.Message
	err error
}

func (e *messageError) Error() string { return e.err.Error() }
func (e *messageError) Unwrap() error { return e.err }

// compileFailed keeps compiler diagnostics for their own formatter and
// wraps any other build failure in a compile failed message
func compileFailed(err error, noColor bool) error {
	var compileErr *cerrors.CompilerError
	if errors.As(err, &compileErr) {
		return err
	}
	return &messageError{msg: ui.CompileFailed(err, noColor), err: err}
}
