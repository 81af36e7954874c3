// Package appdomtest builds App Documents with predictable ids for tests.
package appdomtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
)

// Builder wraps a document whose ids are n1, n2, ...
type Builder struct {
	t   testing.TB
	Doc *appdom.Document
}

// New returns a builder over an empty document.
func New(t testing.TB) *Builder {
	n := 0
	doc := appdom.New(appdom.WithIDGenerator(func() appdom.NodeID {
		n++
		return appdom.NodeID(fmt.Sprintf("n%d", n))
	}))
	return &Builder{t: t, Doc: doc}
}

func (b *Builder) add(t appdom.NodeType, parent appdom.NodeID, prop string, init appdom.NodeInit) *appdom.Node {
	b.t.Helper()
	n, err := b.Doc.CreateNode(t, init)
	require.NoError(b.t, err)
	require.NoError(b.t, b.Doc.AddNode(n, parent, prop))
	stored, err := b.Doc.Node(n.ID)
	require.NoError(b.t, err)
	return stored
}

// Page adds a page with the given URL query defaults.
func (b *Builder) Page(name string, urlQuery map[string]any) *appdom.Node {
	b.t.Helper()
	attrs := appdom.BindableValues{"title": appdom.Const(name)}
	if urlQuery != nil {
		attrs["urlQuery"] = appdom.Const(urlQuery)
	}
	return b.add(appdom.TypePage, b.Doc.RootID(), appdom.ChildPages, appdom.NodeInit{Name: name, Attributes: attrs})
}

// Element adds an element under parent. Page parents take the element
// under children.
func (b *Builder) Element(parent *appdom.Node, prop, name, component string, props appdom.BindableValues) *appdom.Node {
	b.t.Helper()
	return b.add(appdom.TypeElement, parent.ID, prop, appdom.NodeInit{
		Name:       name,
		Attributes: appdom.BindableValues{"component": appdom.Const(component)},
		Props:      props,
	})
}

// API adds an api node backed by dataSource with the given query.
func (b *Builder) API(name, dataSource string, query map[string]any) *appdom.Node {
	b.t.Helper()
	return b.add(appdom.TypeAPI, b.Doc.RootID(), appdom.ChildAPIs, appdom.NodeInit{
		Name: name,
		Attributes: appdom.BindableValues{
			"dataSource": appdom.Const(dataSource),
			"query":      appdom.Const(query),
		},
	})
}

// Query adds a query state to page fetching api.
func (b *Builder) Query(page *appdom.Node, name string, api *appdom.Node, params appdom.BindableValues) *appdom.Node {
	b.t.Helper()
	return b.add(appdom.TypeQueryState, page.ID, appdom.ChildQueryStates, appdom.NodeInit{
		Name:       name,
		Attributes: appdom.BindableValues{"api": appdom.Const(string(api.ID))},
		Params:     params,
	})
}

// Derived adds a derived state to page whose body is the module code. Every
// param is declared in argTypes with the type of its constant, or "object"
// for expressions.
func (b *Builder) Derived(page *appdom.Node, name, code string, params appdom.BindableValues) *appdom.Node {
	b.t.Helper()
	argTypes := make(map[string]any, len(params))
	for key, v := range params {
		argTypes[key] = map[string]any{"type": paramType(v)}
	}
	return b.add(appdom.TypeDerivedState, page.ID, appdom.ChildDerivedStates, appdom.NodeInit{
		Name: name,
		Attributes: appdom.BindableValues{
			"code":     appdom.Const(code),
			"argTypes": appdom.Const(argTypes),
		},
		Params: params,
	})
}

func paramType(v *appdom.BindableValue) string {
	if v.Kind != appdom.KindConst {
		return "object"
	}
	switch v.Value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int:
		return "number"
	case []any:
		return "array"
	}
	return "object"
}

// CodeComponent adds a code component with the given module code.
func (b *Builder) CodeComponent(name, code string, argTypes map[string]any) *appdom.Node {
	b.t.Helper()
	attrs := appdom.BindableValues{"code": appdom.Const(code)}
	if argTypes != nil {
		attrs["argTypes"] = appdom.Const(argTypes)
	}
	return b.add(appdom.TypeCodeComponent, b.Doc.RootID(), appdom.ChildCodeComponents, appdom.NodeInit{
		Name:       name,
		Attributes: attrs,
	})
}
