// Package codegen compiles a page of an App Document into an ES module
// whose default export renders the page. Editor builds additionally emit
// node and slot markers plus binding diagnostics for the live canvas.
package codegen

import (
	"errors"

	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	cerrors "github.com/pagecraft-dev/pagecraft/internal/compiler/errors"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/imports"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/scope"
	"github.com/pagecraft-dev/pagecraft/internal/components"
	"github.com/pagecraft-dev/pagecraft/internal/core"
)

// RenderConfig selects the flavour of the generated module.
type RenderConfig struct {
	// Editor emits markers and diagnostics for the live canvas.
	Editor bool
	// Pretty reformats the output.
	Pretty bool
	// Version is "preview" or a release tag; it selects the data endpoint.
	Version string
}

// Option configures a compile.
type Option func(*Context)

// WithLogger routes compile warnings to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCatalog replaces the component catalog.
func WithCatalog(catalog components.Catalog) Option {
	return func(c *Context) {
		if catalog != nil {
			c.catalog = catalog
		}
	}
}

// Context owns all state of a single page compile. It is created per call
// and never shared.
type Context struct {
	appID   string
	dom     *appdom.Document
	page    *appdom.Node
	config  RenderConfig
	catalog components.Catalog
	logger  *zap.Logger

	scope   *scope.Scope
	imports *imports.Registry

	reactAlias   string
	runtimeAlias string
	pageStateVar string
	bindingsVar  string

	state       *pageState
	memos       []string
	moduleDecls []string
	components  map[string]string

	err      error
	warnings cerrors.ErrorList
}

func newContext(appID string, dom *appdom.Document, page *appdom.Node, config RenderConfig, opts ...Option) *Context {
	if config.Version == "" {
		config.Version = "preview"
	}
	c := &Context{
		appID:      appID,
		dom:        dom,
		page:       page,
		config:     config,
		catalog:    components.NewRegistry(),
		logger:     zap.NewNop(),
		scope:      scope.New(nil, core.JSXFactory, core.JSXFragment, "state"),
		components: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.imports = imports.New(c.scope)
	c.reactAlias = c.imports.MustAdd(core.ModuleReact, imports.Namespace, "React")
	if config.Editor {
		c.runtimeAlias = c.imports.MustAdd(core.ModuleRuntime, imports.Namespace, "__editorRuntime")
	}
	c.pageStateVar = c.scope.CreateUniqueBinding("_pageState")
	c.bindingsVar = c.scope.CreateUniqueBinding("_bindingsState")
	return c
}

// fail records the first fatal error; later ones are dropped.
func (c *Context) fail(err *cerrors.CompilerError) {
	if c.err == nil {
		c.err = err.WithApp(c.appID).WithPage(string(c.page.ID))
	}
}

func (c *Context) warn(err *cerrors.CompilerError) {
	err = err.WithApp(c.appID).WithPage(string(c.page.ID))
	c.warnings = append(c.warnings, err)
	c.logger.Warn("page compile warning",
		zap.String("code", string(err.Code)),
		zap.String("location", err.Location.String()),
		zap.String("message", err.Message),
	)
}

// addImport registers an import and turns a sealed registry into a fatal error.
func (c *Context) addImport(loc cerrors.Location, source, imported, suggested string) string {
	alias, err := c.imports.Add(source, imported, suggested)
	if err != nil {
		if errors.Is(err, imports.ErrSealed) {
			c.fail(cerrors.NewImportsSealed(loc, source).WithCause(err))
		} else {
			c.fail(cerrors.NewCodeGenFailed(loc, err.Error()).WithCause(err))
		}
		return "undefined"
	}
	return alias
}

// coreImport returns the local name of a symbol of the core module.
func (c *Context) coreImport(symbol string) string {
	return c.addImport(cerrors.Location{}, core.ModuleCore, symbol, symbol)
}

// lookupNode resolves id and reports a corrupt document when it is missing
// or of the wrong type.
func (c *Context) lookupNode(loc cerrors.Location, id appdom.NodeID, t appdom.NodeType) *appdom.Node {
	n, err := c.dom.NodeOfType(id, t)
	if err == nil {
		return n
	}
	var mismatch *appdom.TypeMismatchError
	if errors.As(err, &mismatch) {
		c.fail(cerrors.NewNodeTypeMismatch(loc, string(id), string(t), string(mismatch.Got)).WithCause(err))
	} else {
		c.fail(cerrors.NewNodeNotFound(loc, string(id)).WithCause(err))
	}
	return nil
}

// component resolves an element's component and returns its definition and
// local name.
func (c *Context) component(n *appdom.Node) (components.Definition, string, bool) {
	loc := cerrors.Location{NodeID: string(n.ID), Namespace: string(appdom.NamespaceAttributes), Key: "component"}
	id := n.StringAttribute("component")
	def, err := c.catalog.Resolve(c.dom, id)
	if err != nil {
		c.fail(cerrors.NewUnknownComponent(loc, id).WithCause(err))
		return components.Definition{}, "", false
	}
	if local, ok := c.components[def.ID]; ok {
		return def, local, true
	}

	var local string
	switch {
	case def.CodeComponent && c.config.Editor:
		// A broken code component surfaces as a node error in the editor,
		// never as a failed module import.
		ns := c.addImport(loc, def.Module, imports.Namespace, componentSuggestion(def)+"Module")
		local = c.scope.CreateUniqueBinding(componentSuggestion(def))
		c.moduleDecls = append(c.moduleDecls,
			"const "+local+" = "+c.runtimeAlias+".importCodeComponent("+ns+");")
	default:
		local = c.addImport(loc, def.Module, def.Export, componentSuggestion(def))
	}
	c.components[def.ID] = local
	return def, local, true
}

func componentSuggestion(def components.Definition) string {
	if def.CodeComponent {
		return def.ID[len(core.CodeComponentPrefix):]
	}
	return def.Export
}
