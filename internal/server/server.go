// Package server serves compiled pages, their data endpoint and the editor
// bridge over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/compiler/cache"
	"github.com/pagecraft-dev/pagecraft/internal/datasource"
	"github.com/pagecraft-dev/pagecraft/internal/runtime"
)

// Config holds server configuration
type Config struct {
	// Address is the server listen address (e.g., "localhost:3000")
	Address string
	// BasePath prefixes every route; empty or "/x" without trailing slash
	BasePath string

	// Docs loads app documents
	Docs datasource.DocumentSource
	// DataSources runs api queries; nil uses the built-in connectors
	DataSources *datasource.Registry
	// Compiler caches compiled pages; nil uses a memory cache
	Compiler *cache.Coordinator
	// HostOptions are applied to the hosts of canvas sessions
	HostOptions []runtime.Option
	// RateLimiter, when set, limits data queries per client and app
	RateLimiter Limiter

	CORS   CORSConfig
	Logger *zap.Logger

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// DefaultConfig returns a configuration serving docs on localhost:3000
func DefaultConfig(docs datasource.DocumentSource) Config {
	return Config{
		Address:           "localhost:3000",
		Docs:              docs,
		CORS:              DefaultCORSConfig(),
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Server is the pagecraft HTTP server
type Server struct {
	config   Config
	logger   *zap.Logger
	executor *datasource.Executor
	compiler *cache.Coordinator
	hub      *BridgeHub
	router   chi.Router
}

// New creates a server
func New(config Config) (*Server, error) {
	if config.Docs == nil {
		return nil, errors.New("server needs a document source")
	}
	if err := ValidateBasePath(config.BasePath); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := config.DataSources
	if registry == nil {
		registry = datasource.NewRegistry()
	}
	compiler := config.Compiler
	if compiler == nil {
		compiler = cache.NewCoordinator(nil, cache.WithLogger(logger))
	}
	if config.CORS.AllowedOrigins == nil {
		config.CORS = DefaultCORSConfig()
	}

	s := &Server{
		config:   config,
		logger:   logger,
		executor: &datasource.Executor{Docs: config.Docs, Registry: registry},
		compiler: compiler,
	}
	s.hub = NewBridgeHub(HubConfig{
		Docs:           config.Docs,
		Compiler:       compiler,
		DataSources:    s.executor,
		HostOptions:    config.HostOptions,
		AllowedOrigins: config.CORS.AllowedOrigins,
		Logger:         logger,
	})
	s.router = s.routes()
	return s, nil
}

// ValidateBasePath checks that a base path starts with '/' and does not end with one
func ValidateBasePath(p string) error {
	if p == "" {
		return nil
	}
	if p[0] != '/' {
		return fmt.Errorf("base path must start with '/', got: %s", p)
	}
	if p[len(p)-1] == '/' {
		return fmt.Errorf("base path must not end with '/', got: %s", p)
	}
	return nil
}

func (s *Server) routes() chi.Router {
	api := chi.NewRouter()
	api.Use(RequestID, Recovery(s.logger), Logging(s.logger), CORS(s.config.CORS))

	api.Get("/healthz", s.handleHealth)
	data := api.With()
	if s.config.RateLimiter != nil {
		data = api.With(RateLimit(s.config.RateLimiter, s.logger))
	}
	data.Get("/data/{appId}/{version}/{queryId}", s.handleData)
	api.Get("/pages/{appId}/{version}/{pageId}.js", s.handlePage)
	api.Get("/bridge/{appId}/{pageId}", s.hub.ServeHTTP)

	if s.config.BasePath == "" {
		return api
	}
	root := chi.NewRouter()
	root.Mount(s.config.BasePath, api)
	return root
}

// Handler returns the server's routes
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the editor bridge hub
func (s *Server) Hub() *BridgeHub {
	return s.hub
}

// Compiler returns the page compiler
func (s *Server) Compiler() *cache.Coordinator {
	return s.compiler
}

// ListenAndServe serves until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is done
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", listener.Addr().String()))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down server")
	s.hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
