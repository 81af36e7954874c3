package canvas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/cache"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/codegen"
	"github.com/pagecraft-dev/pagecraft/internal/datasource"
	"github.com/pagecraft-dev/pagecraft/internal/runtime"
	"github.com/pagecraft-dev/pagecraft/internal/viewstate"
)

// DefaultPollInterval is how often a running session applies settled queries.
const DefaultPollInterval = 20 * time.Millisecond

// ErrNoDocument is returned when a session is asked to act before Load.
var ErrNoDocument = errors.New("canvas has no document")

// Config describes the page a session previews.
type Config struct {
	AppID  string
	PageID appdom.NodeID
	// Version selects the data endpoint; defaults to preview.
	Version string

	// Compiler caches editor builds. Nil compiles directly.
	Compiler *cache.Coordinator
	// Fetcher serves page queries.
	Fetcher runtime.Fetcher
	// DataSources runs page queries against the loaded document when
	// Fetcher is nil. With neither set, queries fail.
	DataSources *datasource.Executor
	// HostOptions are applied to every host the session creates.
	HostOptions []runtime.Option

	Logger       *zap.Logger
	PollInterval time.Duration

	// Publish receives a snapshot after every committed render.
	Publish func(*viewstate.PageViewState)
	// OnError receives load and render failures of a running session.
	OnError func(error)
}

// Session renders one page of the editor's document copy. Load, Dispatch
// and Run must not be called concurrently.
type Session struct {
	cfg    Config
	bridge *Bridge
	logger *zap.Logger

	doc  *appdom.Document
	host *runtime.Host
}

// NewSession creates a session with an uninstalled bridge.
func NewSession(cfg Config) *Session {
	if cfg.Version == "" {
		cfg.Version = "preview"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:    cfg,
		bridge: NewBridge(),
		logger: logger.With(zap.String("app", cfg.AppID), zap.String("page", string(cfg.PageID))),
	}
}

// Bridge returns the bridge editor events are sent through.
func (s *Session) Bridge() *Bridge {
	return s.bridge
}

// Document returns the session's copy of the document.
func (s *Session) Document() *appdom.Document {
	return s.doc
}

// Host returns the host of the current document, or nil before Load.
func (s *Session) Host() *runtime.Host {
	return s.host
}

// Load replaces the document, recompiles the page and renders it on a new
// host. The previous host keeps running when the new document fails.
func (s *Session) Load(ctx context.Context, doc *appdom.Document) error {
	doc = doc.Clone()
	config := codegen.RenderConfig{Editor: true, Version: s.cfg.Version}

	var src string
	if s.cfg.Compiler != nil {
		res, err := s.cfg.Compiler.CompilePage(ctx, s.cfg.AppID, doc, s.cfg.PageID, config)
		if err != nil {
			return err
		}
		src = res.Source
	} else {
		var err error
		src, err = codegen.CompilePage(s.cfg.AppID, doc, s.cfg.PageID, config, codegen.WithLogger(s.logger))
		if err != nil {
			return err
		}
	}

	opts := append([]runtime.Option{runtime.WithLogger(s.logger), runtime.WithDocument(doc)}, s.cfg.HostOptions...)
	fetcher := s.cfg.Fetcher
	if fetcher == nil && s.cfg.DataSources != nil {
		exec := s.cfg.DataSources
		fetcher = runtime.FetcherFunc(func(ctx context.Context, _, apiID string, params map[string]any) (any, error) {
			return exec.ExecuteIn(ctx, doc, apiID, params)
		})
	}
	if fetcher != nil {
		queries, err := runtime.NewQueryClient(fetcher, 0)
		if err != nil {
			return err
		}
		opts = append(opts, runtime.WithQueryClient(queries))
	}
	if s.host != nil {
		opts = append(opts, runtime.WithLocation(s.host.Location()))
	}

	host, err := runtime.New(opts...)
	if err != nil {
		return err
	}
	if err := host.Load(src); err != nil {
		host.Close()
		return fmt.Errorf("load page %s: %w", s.cfg.PageID, err)
	}
	host.OnCommit(func() { s.publish(host) })
	if err := host.Render(); err != nil {
		host.Close()
		return fmt.Errorf("render page %s: %w", s.cfg.PageID, err)
	}

	if s.host != nil {
		s.host.Close()
	}
	s.doc, s.host = doc, host
	s.logger.Debug("canvas loaded", zap.Int("nodes", doc.Len()))
	return nil
}

// Dispatch fires an event handler on the current page.
func (s *Session) Dispatch(nodeID, eventProp string, payload any) error {
	if s.host == nil {
		return ErrNoDocument
	}
	return s.host.Dispatch(nodeID, eventProp, payload)
}

// ViewState returns the snapshot of the last render.
func (s *Session) ViewState() (*viewstate.PageViewState, error) {
	if s.host == nil {
		return nil, ErrNoDocument
	}
	return s.host.ViewState(), nil
}

// Run installs the bridge, unless already installed, and serves its events
// until ctx is done. Query results are applied as they arrive. The bridge is
// uninstalled on return.
func (s *Session) Run(ctx context.Context) error {
	events := s.bridge.Install()
	defer s.bridge.Uninstall()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			s.handle(ctx, ev)
		case <-ticker.C:
			if s.host == nil {
				continue
			}
			if err := s.host.Flush(); err != nil {
				s.fail(err)
			}
		}
	}
}

func (s *Session) handle(ctx context.Context, ev Event) {
	var err error
	switch ev.Kind {
	case EventUpdateDom:
		err = s.Load(ctx, ev.Document)
	case EventDispatch:
		err = s.Dispatch(ev.NodeID, ev.Prop, ev.Payload)
	default:
		err = fmt.Errorf("unknown canvas event %q", ev.Kind)
	}
	if err != nil {
		s.fail(err)
	}
}

func (s *Session) fail(err error) {
	s.logger.Warn("canvas error", zap.Error(err))
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

func (s *Session) publish(host *runtime.Host) {
	if s.cfg.Publish != nil {
		s.cfg.Publish(host.ViewState())
	}
}

// Close releases the current host.
func (s *Session) Close() {
	if s.host != nil {
		s.host.Close()
		s.host = nil
	}
}
