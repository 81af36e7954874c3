package runtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/appdom/appdomtest"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/codegen"
	"github.com/pagecraft-dev/pagecraft/internal/core"
	"github.com/pagecraft-dev/pagecraft/internal/viewstate"
)

func render(t *testing.T, b *appdomtest.Builder, page *appdom.Node, editor bool, opts ...Option) *Host {
	t.Helper()
	src, err := codegen.CompilePage("app", b.Doc, page.ID, codegen.RenderConfig{Editor: editor})
	require.NoError(t, err)

	h, err := New(append([]Option{WithDocument(b.Doc)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(h.Close)

	require.NoError(t, h.Load(src), src)
	require.NoError(t, h.Render(), src)
	return h
}

func propsBinding(n *appdom.Node, key string) string {
	return core.BindingID(string(n.ID), string(appdom.NamespaceProps), key)
}

func settle(t *testing.T, h *Host) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Settle(ctx))
}

func TestExpressionEvaluatesEndToEnd(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	text := b.Element(page, "children", "text", "Text", appdom.BindableValues{"value": appdom.JSExpression("1 + 1")})

	vs := render(t, b, page, true).ViewState()

	require.Contains(t, vs.Bindings, propsBinding(text, "value"))
	assert.EqualValues(t, 2, vs.Bindings[propsBinding(text, "value")].Value)
	assert.Nil(t, vs.Bindings[propsBinding(text, "value")].Error)
	require.Contains(t, vs.Nodes, string(text.ID))
	assert.EqualValues(t, 2, vs.Nodes[string(text.ID)].Props["value"])
}

func TestThrowingBindingIsIsolated(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	bad := b.Element(page, "children", "bad", "Text", appdom.BindableValues{"value": appdom.JSExpression("missing.value")})
	good := b.Element(page, "children", "good", "Text", appdom.BindableValues{"value": appdom.JSExpression("1 + 1")})

	vs := render(t, b, page, true).ViewState()

	failed := vs.Bindings[propsBinding(bad, "value")]
	require.NotNil(t, failed.Error)
	assert.Contains(t, failed.Error.Message, "missing")
	assert.Nil(t, failed.Value)
	assert.EqualValues(t, 2, vs.Bindings[propsBinding(good, "value")].Value)
	assert.Contains(t, vs.Nodes, string(bad.ID))
	assert.Contains(t, vs.Nodes, string(good.ID))
}

func TestProductionBuildSwallowsErrors(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	b.Element(page, "children", "bad", "Text", appdom.BindableValues{"value": appdom.JSExpression("missing.value")})

	h := render(t, b, page, false)
	vs := h.ViewState()
	assert.Empty(t, vs.Bindings)
	assert.Empty(t, vs.Nodes)
}

func TestControlledDefaultsAndDispatch(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	field := b.Element(page, "children", "field", "TextField", appdom.BindableValues{"label": appdom.Const("Name")})
	off := b.Element(page, "children", "off", "Checkbox", nil)
	on := b.Element(page, "children", "on", "Checkbox", appdom.BindableValues{"checked": appdom.Const(true)})
	greeting := b.Element(page, "children", "greeting", "Text", appdom.BindableValues{
		"value": appdom.BoundExpression("Hello {{ field.value }}", appdom.FormatStringLiteral),
	})

	h := render(t, b, page, true)
	vs := h.ViewState()
	assert.Equal(t, "", vs.Nodes[string(field.ID)].Props["value"])
	assert.Equal(t, false, vs.Nodes[string(off.ID)].Props["checked"])
	assert.Equal(t, true, vs.Nodes[string(on.ID)].Props["checked"])
	assert.Equal(t, "Hello ", vs.Bindings[propsBinding(greeting, "value")].Value)

	payload := map[string]any{"target": map[string]any{"value": "Ada"}}
	require.NoError(t, h.Dispatch(string(field.ID), "onChange", payload))

	vs = h.ViewState()
	assert.Equal(t, "Ada", vs.Nodes[string(field.ID)].Props["value"])
	assert.Equal(t, "Hello Ada", vs.Bindings[propsBinding(greeting, "value")].Value)
	assert.Equal(t, map[string]any{"value": "Ada"}, vs.PageState["field"])

	assert.Error(t, h.Dispatch("nope", "onChange", payload))
}

func TestIdenticalQueriesFetchOnce(t *testing.T) {
	var calls int32
	fetcher := FetcherFunc(func(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return []any{"a", "b"}, nil
	})
	client, err := NewQueryClient(fetcher, 0)
	require.NoError(t, err)

	b := appdomtest.New(t)
	page := b.Page("home", nil)
	api := b.API("ordersApi", "static", nil)
	b.Query(page, "orders", api, appdom.BindableValues{"limit": appdom.Const(5)})
	b.Query(page, "sameOrders", api, appdom.BindableValues{"limit": appdom.Const(5)})

	h := render(t, b, page, true, WithQueryClient(client))
	assert.Equal(t, 2, h.Pending())
	settle(t, h)

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	state := h.PageState()
	for _, name := range []string{"orders", "sameOrders"} {
		q, ok := state[name].(map[string]any)
		require.True(t, ok, name)
		assert.Equal(t, "success", q["status"])
		assert.Equal(t, []any{"a", "b"}, q["data"])
	}
}

func TestQueryErrorSurfacesInState(t *testing.T) {
	client, err := NewQueryClient(FetcherFunc(func(context.Context, string, string, map[string]any) (any, error) {
		return nil, assert.AnError
	}), 0)
	require.NoError(t, err)

	b := appdomtest.New(t)
	page := b.Page("home", nil)
	api := b.API("ordersApi", "static", nil)
	b.Query(page, "orders", api, nil)

	h := render(t, b, page, true, WithQueryClient(client))
	settle(t, h)

	q := h.PageState()["orders"].(map[string]any)
	assert.Equal(t, "error", q["status"])
	assert.Equal(t, map[string]any{"message": assert.AnError.Error()}, q["error"])
}

func TestDerivedStateRecomputesAfterQuerySettles(t *testing.T) {
	release := make(chan struct{})
	client, err := NewQueryClient(FetcherFunc(func(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error) {
		<-release
		return []any{1, 2, 3}, nil
	}), 0)
	require.NoError(t, err)

	b := appdomtest.New(t)
	page := b.Page("home", nil)
	api := b.API("ordersApi", "static", nil)
	b.Query(page, "orders", api, nil)
	b.Derived(page, "count",
		"export default function ({ orders }) { return orders && orders.data ? orders.data.length : -1; }",
		appdom.BindableValues{"orders": appdom.Binding("orders")})
	text := b.Element(page, "children", "total", "Text", appdom.BindableValues{"value": appdom.JSExpression("count")})

	h := render(t, b, page, true, WithQueryClient(client))
	assert.EqualValues(t, -1, h.ViewState().Bindings[propsBinding(text, "value")].Value)

	close(release)
	settle(t, h)
	assert.EqualValues(t, 3, h.ViewState().Bindings[propsBinding(text, "value")].Value)
}

func TestURLQueryState(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", map[string]any{"tab": "orders"})
	text := b.Element(page, "children", "text", "Text", appdom.BindableValues{"value": appdom.Binding("page.tab")})

	loc, err := NewLocation("tab=invoices")
	require.NoError(t, err)
	h := render(t, b, page, true, WithLocation(loc))
	assert.Equal(t, "invoices", h.ViewState().Bindings[propsBinding(text, "value")].Value)
	assert.Equal(t, map[string]any{"tab": "invoices"}, h.PageState()["page"])
}

func TestLayoutAndSlots(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	row := b.Element(page, "children", "row", "Stack", appdom.BindableValues{"direction": appdom.Const("row")})
	left := b.Element(row, "children", "left", "Text", appdom.BindableValues{"value": appdom.Const("L")})
	right := b.Element(row, "children", "right", "Text", appdom.BindableValues{"value": appdom.Const("R")})
	paper := b.Element(page, "children", "paper", "Paper", nil)

	h := render(t, b, page, true, WithViewportWidth(800))
	vs := h.ViewState()

	assert.Equal(t, &viewstate.Rect{X: 0, Y: 0, Width: 400, Height: LeafHeight}, vs.Nodes[string(left.ID)].Rect)
	assert.Equal(t, &viewstate.Rect{X: 400, Y: 0, Width: 400, Height: LeafHeight}, vs.Nodes[string(right.ID)].Rect)
	assert.Equal(t, &viewstate.Rect{Width: 800, Height: LeafHeight}, vs.Nodes[string(row.ID)].Rect)

	rowSlot := vs.Nodes[string(row.ID)].Slots["children"]
	assert.Equal(t, core.SlotTypeMultiple, rowSlot.Type)
	assert.Equal(t, viewstate.FlowRow, rowSlot.FlowDirection)
	assert.Equal(t, viewstate.Rect{Width: 800, Height: LeafHeight}, rowSlot.Rect)

	pageSlot := vs.Nodes[string(page.ID)].Slots["children"]
	assert.Equal(t, viewstate.FlowColumn, pageSlot.FlowDirection)
	assert.Equal(t, viewstate.Rect{Width: 800, Height: 2 * LeafHeight}, pageSlot.Rect)

	paperSlot := vs.Nodes[string(paper.ID)].Slots["children"]
	assert.Equal(t, core.SlotTypeSingle, paperSlot.Type)
	assert.Equal(t, viewstate.Rect{Y: LeafHeight, Width: 800, Height: LeafHeight}, paperSlot.Rect)

	require.NotNil(t, vs.Nodes[string(left.ID)].Component)
	_, declared := vs.Nodes[string(left.ID)].Component.ArgTypes.Get("value")
	assert.True(t, declared)
}

func TestCodeComponentErrorsStayOnTheNode(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	b.CodeComponent("Greeting", "export default function Greeting({ name }) { return <span>Hello {name}</span>; }",
		map[string]any{"name": map[string]any{"type": "string"}})
	b.CodeComponent("Broken", "export default function Broken() { throw new Error('kaboom'); }", nil)
	greet := b.Element(page, "children", "greet", "codeComponent.Greeting", appdom.BindableValues{"name": appdom.Const("Ada")})
	broken := b.Element(page, "children", "broken", "codeComponent.Broken", nil)
	after := b.Element(page, "children", "after", "Text", appdom.BindableValues{"value": appdom.Const("still here")})

	vs := render(t, b, page, true).ViewState()

	assert.Nil(t, vs.Nodes[string(greet.ID)].Error)
	assert.Equal(t, "Ada", vs.Nodes[string(greet.ID)].Props["name"])
	require.NotNil(t, vs.Nodes[string(greet.ID)].Component)

	require.NotNil(t, vs.Nodes[string(broken.ID)].Error)
	assert.Equal(t, "kaboom", vs.Nodes[string(broken.ID)].Error.Message)
	assert.Equal(t, "still here", vs.Nodes[string(after.ID)].Props["value"])
}

func TestRenderIsDeterministic(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", map[string]any{"limit": 10})
	stack := b.Element(page, "children", "stack", "Stack", nil)
	b.Element(stack, "children", "field", "TextField", appdom.BindableValues{"label": appdom.Const("Name")})
	b.Element(stack, "children", "label", "Text", appdom.BindableValues{"value": appdom.JSExpression("page.limit * 2")})

	snapshot := func() string {
		data, err := json.Marshal(render(t, b, page, true).ViewState())
		require.NoError(t, err)
		return string(data)
	}
	first := snapshot()
	assert.Equal(t, first, snapshot())
}

func TestRenderRequiresLoad(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Close()
	assert.ErrorIs(t, h.Render(), ErrNotLoaded)

	h.Close()
	assert.ErrorIs(t, h.Load("export default function App() { return null; }"), ErrClosed)
}

func TestHooksPersistAcrossRenders(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Close()

	src := `
import * as React from "react";
export default function App() {
  const [count, setCount] = React.useState(0);
  const renders = React.useRef(0);
  renders.current += 1;
  React.useEffect(() => {
    if (count < 3) setCount(count + 1);
  }, [count]);
  return <div count={count} renders={renders.current} />;
}
`
	require.NoError(t, h.Load(src))
	require.NoError(t, h.Render())

	var commits int
	h.OnCommit(func() { commits++ })
	require.NoError(t, h.Render())
	assert.Equal(t, 1, commits)

	div := h.root.child.child
	require.NotNil(t, div)
	assert.Equal(t, "div", div.tag)
	assert.EqualValues(t, 3, get(div.props, "count").Export())
	assert.EqualValues(t, 5, get(div.props, "renders").Export())
}
