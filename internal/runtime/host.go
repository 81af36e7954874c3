// Package runtime runs compiled pages headlessly. It provides the React
// subset and the pagecraft modules that generated code imports, renders in
// full passes until state settles, and lays out host nodes so the editor's
// view state can be extracted without a browser.
package runtime

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/components"
	"github.com/pagecraft-dev/pagecraft/internal/core"
)

//go:embed prelude.js
var preludeSource string

// MaxRenderPasses bounds the render passes of a single Render.
const MaxRenderPasses = 25

var (
	// ErrNotLoaded is returned when rendering before a page was loaded.
	ErrNotLoaded = errors.New("no page loaded")
	// ErrUnstable is returned when state keeps changing after MaxRenderPasses.
	ErrUnstable = errors.New("page state did not settle")
	// ErrClosed is returned by a host after Close.
	ErrClosed = errors.New("host closed")
)

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithEvaluator replaces the expression evaluator.
func WithEvaluator(e core.Evaluator) Option {
	return func(h *Host) {
		if e != nil {
			h.evaluator = e
		}
	}
}

// WithQueryClient sets the client page queries are fetched through.
func WithQueryClient(c *QueryClient) Option {
	return func(h *Host) {
		if c != nil {
			h.queries = c
		}
	}
}

// WithDocument serves derived state and code components from doc.
func WithDocument(doc *appdom.Document) Option {
	return func(h *Host) {
		h.doc = doc
		h.modules = DocumentModules{Doc: doc}
	}
}

// WithModules replaces the source of non-built-in modules.
func WithModules(m ModuleSource) Option {
	return func(h *Host) {
		if m != nil {
			h.modules = m
		}
	}
}

// WithCatalog sets the catalog code component contracts are resolved from.
func WithCatalog(c components.Catalog) Option {
	return func(h *Host) {
		if c != nil {
			h.catalog = c
		}
	}
}

// WithLocation sets the page URL state.
func WithLocation(l *Location) Option {
	return func(h *Host) {
		if l != nil {
			h.location = l
		}
	}
}

// WithViewportWidth sets the layout width.
func WithViewportWidth(width float64) Option {
	return func(h *Host) {
		if width > 0 {
			h.viewportWidth = width
		}
	}
}

type componentConfig struct {
	fn     goja.Value
	config *core.ComponentConfig
}

// Host executes one compiled page. It is not safe for concurrent use; all
// methods must be called from the goroutine that owns it.
type Host struct {
	vm            *goja.Runtime
	logger        *zap.Logger
	evaluator     core.Evaluator
	queries       *QueryClient
	modules       ModuleSource
	catalog       components.Catalog
	doc           *appdom.Document
	location      *Location
	viewportWidth float64

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan queryResult

	requireFn     goja.Value
	createElement goja.Value
	fragmentType  goja.Value
	elementMarker goja.Value
	wrapper       goja.Value
	jsonParse     goja.Callable
	jsonStringify goja.Callable
	builtins      map[string]goja.Value
	moduleCache   map[string]goja.Value
	configs       []componentConfig
	urlSetters    map[string]goja.Value

	app     goja.Value
	root    *fiber
	current *fiber
	hookIdx int
	effects []func()
	dirty   bool
	pending int

	diagPage     goja.Value
	diagBindings goja.Value

	commitHooks []func()
	closed      bool
}

// New creates a host with the built-in modules installed.
func New(opts ...Option) (*Host, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		vm:            goja.New(),
		logger:        zap.NewNop(),
		evaluator:     NewGojaEvaluator(DefaultEvalTimeout),
		modules:       MapModules{},
		catalog:       components.NewRegistry(),
		location:      &Location{values: map[string][]string{}},
		viewportWidth: DefaultViewportWidth,
		ctx:           ctx,
		cancel:        cancel,
		inbox:         make(chan queryResult, 64),
		builtins:      make(map[string]goja.Value),
		moduleCache:   make(map[string]goja.Value),
		urlSetters:    make(map[string]goja.Value),
		diagPage:      goja.Undefined(),
		diagBindings:  goja.Undefined(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.queries == nil {
		q, err := NewQueryClient(FetcherFunc(func(context.Context, string, string, map[string]any) (any, error) {
			return nil, errors.New("no data source configured")
		}), 0)
		if err != nil {
			cancel()
			return nil, err
		}
		h.queries = q
	}
	if err := h.install(); err != nil {
		cancel()
		return nil, err
	}
	return h, nil
}

// install loads the prelude and builds the built-in modules.
func (h *Host) install() error {
	h.requireFn = h.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if mod, ok := h.builtins[name]; ok {
			return mod
		}
		mod, err := h.require(name)
		if err != nil {
			h.throw(err.Error())
		}
		return mod
	})

	json := h.vm.Get("JSON").ToObject(h.vm)
	var ok bool
	if h.jsonParse, ok = goja.AssertFunction(get(json, "parse")); !ok {
		return errors.New("JSON.parse unavailable")
	}
	if h.jsonStringify, ok = goja.AssertFunction(get(json, "stringify")); !ok {
		return errors.New("JSON.stringify unavailable")
	}

	exports, err := h.evalModule("prelude.js", preludeSource)
	if err != nil {
		return fmt.Errorf("prelude: %w", err)
	}
	prelude := exports.ToObject(h.vm)
	h.createElement = get(prelude, "createElement")
	h.fragmentType = get(prelude, "Fragment")
	h.elementMarker = get(prelude, "ELEMENT")
	h.wrapper = get(prelude, "NodeRuntimeWrapper")

	react := h.vm.NewObject()
	for name, v := range map[string]any{
		"createElement": h.createElement,
		"Fragment":      h.fragmentType,
		"useState":      h.useState,
		"useEffect":     h.useEffect,
		"useMemo":       h.useMemo,
		"useCallback":   h.useCallback,
		"useRef":        h.useRef,
	} {
		if err := react.Set(name, v); err != nil {
			return err
		}
	}
	h.builtins[core.ModuleReact] = react

	coreMod := h.vm.NewObject()
	for name, v := range map[string]any{
		"evalCode":           h.evalCode,
		"useDataQuery":       h.useDataQuery,
		"useUrlQueryState":   h.useUrlQueryState,
		"useStableValue":     h.useStableValue,
		"INITIAL_DATA_QUERY": h.toJS(core.InitialDataQuery()),
	} {
		if err := coreMod.Set(name, v); err != nil {
			return err
		}
	}
	h.builtins[core.ModuleCore] = coreMod

	runtimeMod := h.vm.NewObject()
	for _, name := range []string{"NodeRuntimeWrapper", "Slots", "Placeholder", "importCodeComponent"} {
		if err := runtimeMod.Set(name, get(prelude, name)); err != nil {
			return err
		}
	}
	if err := runtimeMod.Set("useDiagnostics", h.useDiagnostics); err != nil {
		return err
	}
	h.builtins[core.ModuleRuntime] = runtimeMod

	return h.installComponents(prelude)
}

// installComponents builds @pagecraft/components from the built-in catalog.
// Each component renders a host node named after it.
func (h *Host) installComponents(prelude *goja.Object) error {
	hostComponent, ok := goja.AssertFunction(get(prelude, "hostComponent"))
	if !ok {
		return errors.New("prelude: hostComponent missing")
	}
	mod := h.vm.NewObject()
	for _, def := range components.Builtins() {
		defaults := make(map[string]any)
		for _, arg := range def.Config.ArgTypes {
			if arg.DefaultValue != nil {
				defaults[arg.Name] = arg.DefaultValue
			}
		}
		fn, err := hostComponent(goja.Undefined(), h.vm.ToValue(def.Export), h.toJS(defaults))
		if err != nil {
			return fmt.Errorf("component %s: %w", def.ID, err)
		}
		if err := mod.Set(def.Export, fn); err != nil {
			return err
		}
		cfg := def.Config
		h.configs = append(h.configs, componentConfig{fn: fn, config: &cfg})
	}
	h.builtins[core.ModuleComponents] = mod
	return nil
}

// Load evaluates compiled page source and mounts nothing yet; call Render.
func (h *Host) Load(source string) error {
	if h.closed {
		return ErrClosed
	}
	exports, err := h.evalModule("page.jsx", source)
	if err != nil {
		return err
	}
	app := get(exports.ToObject(h.vm), "default")
	if _, ok := goja.AssertFunction(app); !ok {
		return errors.New("page module has no default export")
	}
	if h.root != nil {
		h.unmount(h.root)
		h.root = nil
	}
	h.app = app
	h.diagPage, h.diagBindings = goja.Undefined(), goja.Undefined()
	return nil
}

// Render renders the page in passes until no state changes, running effects
// after each pass, and then notifies commit listeners.
func (h *Host) Render() error {
	if h.closed {
		return ErrClosed
	}
	if h.app == nil {
		return ErrNotLoaded
	}
	create, ok := goja.AssertFunction(h.createElement)
	if !ok {
		return errors.New("createElement unavailable")
	}

	for pass := 0; ; pass++ {
		if pass >= MaxRenderPasses {
			return ErrUnstable
		}
		h.dirty = false
		el, err := create(goja.Undefined(), h.app, goja.Null())
		if err != nil {
			return &RenderError{Err: runtimeError(err)}
		}
		if h.root == nil {
			h.root = &fiber{tag: rootTag}
		}
		if err := h.reconcileChildren(h.root, el); err != nil {
			return &RenderError{Err: runtimeError(err)}
		}
		h.layout()
		h.runEffects()
		if !h.dirty {
			break
		}
	}

	for _, fn := range h.commitHooks {
		fn()
	}
	return nil
}

func (h *Host) runEffects() {
	effects := h.effects
	h.effects = nil
	for _, fn := range effects {
		fn()
	}
}

// OnCommit registers fn to run after every completed Render.
func (h *Host) OnCommit(fn func()) {
	h.commitHooks = append(h.commitHooks, fn)
}

// Flush applies query results that have already arrived and re-renders if
// state changed.
func (h *Host) Flush() error {
	for {
		select {
		case r := <-h.inbox:
			if err := h.applyQuery(r); err != nil {
				return &RenderError{Err: runtimeError(err)}
			}
		default:
			if h.dirty {
				return h.Render()
			}
			return nil
		}
	}
}

// Settle renders until every query started by the page has settled.
func (h *Host) Settle(ctx context.Context) error {
	for {
		if err := h.Flush(); err != nil {
			return err
		}
		if h.pending == 0 {
			return nil
		}
		select {
		case r := <-h.inbox:
			if err := h.applyQuery(r); err != nil {
				return &RenderError{Err: runtimeError(err)}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending reports the number of queries still in flight.
func (h *Host) Pending() int {
	return h.pending
}

// Dispatch calls the eventProp handler of the element rendered for nodeID
// with payload and re-renders. Only editor builds mark nodes.
func (h *Host) Dispatch(nodeID, eventProp string, payload any) error {
	if h.closed {
		return ErrClosed
	}
	wrapper := h.findNode(h.root, nodeID)
	if wrapper == nil || wrapper.child == nil || wrapper.child.props == nil {
		return fmt.Errorf("node %q is not rendered", nodeID)
	}
	handler, ok := goja.AssertFunction(get(wrapper.child.props, eventProp))
	if !ok {
		return fmt.Errorf("node %q has no %s handler", nodeID, eventProp)
	}
	if _, err := handler(goja.Undefined(), h.toJS(payload)); err != nil {
		return &RenderError{Err: runtimeError(err)}
	}
	return h.Render()
}

func (h *Host) findNode(f *fiber, nodeID string) *fiber {
	if f == nil {
		return nil
	}
	if h.isBoundary(f) && f.props != nil && get(f.props, core.RuntimePropNodeID).String() == nodeID {
		return f
	}
	for c := f.child; c != nil; c = c.sibling {
		if found := h.findNode(c, nodeID); found != nil {
			return found
		}
	}
	return nil
}

// Location returns the page URL state.
func (h *Host) Location() *Location {
	return h.location
}

// Close unmounts the page and cancels in-flight queries.
func (h *Host) Close() {
	if h.closed {
		return
	}
	h.closed = true
	if h.root != nil {
		h.unmount(h.root)
		h.root = nil
	}
	h.cancel()
}
