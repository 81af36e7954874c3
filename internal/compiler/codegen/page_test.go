package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/appdom/appdomtest"
	cerrors "github.com/pagecraft-dev/pagecraft/internal/compiler/errors"
)

var editor = RenderConfig{Editor: true, Version: "preview"}

func TestCompilePageIsDeterministic(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", map[string]any{"limit": 10, "filter": ""})
	stack := b.Element(page, "children", "stack", "Stack", nil)
	b.Element(stack, "children", "field", "TextField", appdom.BindableValues{"label": appdom.Const("Name")})
	b.Element(stack, "children", "greeting", "Text", appdom.BindableValues{
		"value": appdom.BoundExpression("Hello {{ field.value }}", appdom.FormatStringLiteral),
	})
	api := b.API("orders", "static", map[string]any{"data": []any{1, 2}})
	b.Query(page, "ordersQuery", api, appdom.BindableValues{"limit": appdom.Binding("page.limit")})

	first, err := CompilePage("shop", b.Doc, page.ID, editor)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := CompilePage("shop", b.Doc.Clone(), page.ID, editor)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestEditorBuildEmitsMarkers(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	btn := b.Element(page, "children", "button", "Button", appdom.BindableValues{"content": appdom.Const("Save")})

	src, err := CompilePage("app", b.Doc, page.ID, editor)
	require.NoError(t, err)

	assert.Contains(t, src, `import * as __editorRuntime from "@pagecraft/core/runtime";`)
	assert.Contains(t, src, `<__editorRuntime.NodeRuntimeWrapper data-pagecraft-node={"`+string(btn.ID)+`"}>`)
	assert.Contains(t, src, `data-pagecraft-slots={"children"} slotType={"multiple"} parentId={"`+string(page.ID)+`"}`)
	assert.Contains(t, src, `__editorRuntime.useDiagnostics(_pageState, _bindingsState);`)
	assert.Contains(t, src, `<Button content={"Save"} />`)

	prod, err := CompilePage("app", b.Doc, page.ID, RenderConfig{Version: "v1"})
	require.NoError(t, err)
	assert.NotContains(t, prod, "__editorRuntime")
	assert.NotContains(t, prod, "data-pagecraft")
	assert.Contains(t, prod, `<Stack direction={"column"} alignItems={"stretch"}>{<Button content={"Save"} />}</Stack>`)
}

func TestGuardedEvaluation(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	text := b.Element(page, "children", "text", "Text", appdom.BindableValues{"value": appdom.JSExpression("1 + 1")})

	src, err := CompilePage("app", b.Doc, page.ID, editor)
	require.NoError(t, err)
	assert.Contains(t, src, `value = evalCode("1 + 1", _pageState);`)
	assert.Contains(t, src, `_bindingsState["`+string(text.ID)+`.props.value"] = { error, value };`)
	assert.Contains(t, src, `import { evalCode } from "@pagecraft/core";`)

	prod, err := CompilePage("app", b.Doc, page.ID, RenderConfig{})
	require.NoError(t, err)
	assert.Contains(t, prod, `try { return evalCode("1 + 1", _pageState); } catch (err) { return undefined; }`)
	assert.NotContains(t, prod, "_bindingsState[")
}

func TestBindingsResolveAgainstState(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	b.Element(page, "children", "a", "Text", appdom.BindableValues{"value": appdom.Binding("field.value")})
	b.Element(page, "children", "b", "Text", appdom.BindableValues{"value": appdom.BoundExpression("{{ field.value }}", "")})
	b.Element(page, "children", "c", "Text", appdom.BindableValues{
		"value": appdom.BoundExpression("Hi {{ field.value }}", appdom.FormatStringLiteral),
	})

	src, err := CompilePage("app", b.Doc, page.ID, editor)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(src, `evalCode("state.field.value", _pageState)`))
	assert.Contains(t, src, "evalCode(\"`Hi ${state.field.value}`\", _pageState)")
}

func TestControlledPropState(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	b.Element(page, "children", "agree", "Checkbox", nil)
	b.Element(page, "children", "subscribe", "Checkbox", appdom.BindableValues{"checked": appdom.Const(true)})
	b.Element(page, "children", "name", "TextField", nil)

	src, err := CompilePage("app", b.Doc, page.ID, editor)
	require.NoError(t, err)

	assert.Contains(t, src, "const [agreeChecked, setAgreeChecked] = React.useState(false);")
	assert.Contains(t, src, "const [subscribeChecked, setSubscribeChecked] = React.useState(true);")
	assert.Contains(t, src, `const [nameValue, setNameValue] = React.useState("");`)
	assert.Contains(t, src, `<Checkbox checked={agreeChecked} onChange={(event) => setAgreeChecked(evalCode("event.target.checked", { event }))} />`)
	assert.Contains(t, src, `"agree": {`)
	assert.Contains(t, src, `"checked": agreeChecked,`)
}

func TestControlledDefaultFallsBackToDefaultProps(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	b.Element(page, "children", "grid", "DataGrid", nil)

	src, err := CompilePage("app", b.Doc, page.ID, editor)
	require.NoError(t, err)
	assert.Contains(t, src, `React.useState(DataGrid.defaultProps?.["selection"])`)
	assert.Contains(t, src, `onSelectionChange={setGridSelection}`)
}

func TestMemoizedConstants(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	b.Element(page, "children", "grid", "DataGrid", appdom.BindableValues{
		"rows": appdom.Const([]any{map[string]any{"id": 1}}),
	})

	src, err := CompilePage("app", b.Doc, page.ID, RenderConfig{})
	require.NoError(t, err)
	assert.Contains(t, src, `const gridRows = React.useMemo(() => ([{"id":1}]), []);`)
	assert.Contains(t, src, `rows={gridRows}`)
}

func TestQueryAndDerivedState(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", map[string]any{"limit": 10})
	api := b.API("ordersApi", "static", nil)
	b.Query(page, "orders", api, appdom.BindableValues{"limit": appdom.Binding("page.limit")})
	derived := b.Derived(page, "orderCount", "export default (p) => p.n", appdom.BindableValues{
		"n": appdom.Binding("orders.data.length"),
	})

	src, err := CompilePage("shop", b.Doc, page.ID, RenderConfig{Editor: true, Version: "v2"})
	require.NoError(t, err)

	assert.Contains(t, src, `const [limit, setLimit] = useUrlQueryState("limit", 10);`)
	assert.Contains(t, src, `const [orders, setOrders] = React.useState(INITIAL_DATA_QUERY);`)
	assert.Contains(t, src, `const [orderCount, setOrderCount] = React.useState(undefined);`)
	assert.Contains(t, src, `import computeOrderCount from "../derivedState/`+string(derived.ID)+`.js";`)
	assert.Contains(t, src, `useDataQuery(setOrders, "/data/shop/v2/", "`+string(api.ID)+`", { "limit": `)
	assert.Contains(t, src, `const orderCountParams = useStableValue({ "n": `)
	assert.Contains(t, src, "setOrderCount(computeOrderCount(orderCountParams));")
	assert.Contains(t, src, "}, [orderCountParams]);")
	assert.Contains(t, src, "page: {\n")
}

func TestQueryWithMissingAPIIsFatal(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	other := b.Page("other", nil)
	b.Query(page, "orders", other, nil)

	_, err := CompilePage("app", b.Doc, page.ID, editor)
	var ce *cerrors.CompilerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, cerrors.ErrNodeTypeMismatch, ce.Code)
}

func TestCorruptDocumentsAreFatal(t *testing.T) {
	t.Run("missing page", func(t *testing.T) {
		b := appdomtest.New(t)
		_, err := CompilePage("app", b.Doc, "nope", editor)
		var ce *cerrors.CompilerError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, cerrors.ErrNodeNotFound, ce.Code)
	})

	t.Run("not a page", func(t *testing.T) {
		b := appdomtest.New(t)
		_, err := CompilePage("app", b.Doc, b.Doc.RootID(), editor)
		var ce *cerrors.CompilerError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, cerrors.ErrNodeTypeMismatch, ce.Code)
	})

	t.Run("unknown component", func(t *testing.T) {
		b := appdomtest.New(t)
		page := b.Page("home", nil)
		b.Element(page, "children", "x", "Marquee", nil)
		_, err := CompilePage("app", b.Doc, page.ID, editor)
		var ce *cerrors.CompilerError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, cerrors.ErrUnknownComponent, ce.Code)
	})

	t.Run("undeclared prop", func(t *testing.T) {
		b := appdomtest.New(t)
		page := b.Page("home", nil)
		b.Element(page, "children", "x", "Button", appdom.BindableValues{"colour": appdom.Const("red")})
		_, err := CompilePage("app", b.Doc, page.ID, editor)
		var ce *cerrors.CompilerError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, cerrors.ErrUndeclaredProp, ce.Code)
		assert.Equal(t, "colour", ce.Location.Key)
	})

	t.Run("children under a value prop", func(t *testing.T) {
		b := appdomtest.New(t)
		page := b.Page("home", nil)
		btn := b.Element(page, "children", "x", "Button", nil)
		b.Element(btn, "content", "y", "Text", nil)
		_, err := CompilePage("app", b.Doc, page.ID, editor)
		var ce *cerrors.CompilerError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, cerrors.ErrUndeclaredChildProp, ce.Code)
	})
}

func TestUnknownBindableKindIsSoftFailure(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	text := b.Element(page, "children", "text", "Text", nil)
	text.Props = appdom.BindableValues{"value": {Kind: "mystery", Value: "x"}}

	core, logs := observer.New(zap.WarnLevel)
	res, err := Compile("app", b.Doc, page.ID, editor, WithLogger(zap.New(core)))
	require.NoError(t, err)
	assert.Contains(t, res.Source, "<Text value={undefined} />")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, cerrors.ErrUnknownBindableKind, res.Warnings[0].Code)
	assert.Contains(t, res.Warnings[0].Suggestion, "undefined")
	assert.Equal(t, 1, logs.Len())
}

func TestCodeComponents(t *testing.T) {
	b := appdomtest.New(t)
	b.CodeComponent("Greeting", "export default function Greeting(props) { return props.name; }",
		map[string]any{"name": map[string]any{"type": "string"}})
	page := b.Page("home", nil)
	b.Element(page, "children", "hello", "codeComponent.Greeting", appdom.BindableValues{"name": appdom.Const("Ada")})

	src, err := CompilePage("app", b.Doc, page.ID, editor)
	require.NoError(t, err)
	assert.Contains(t, src, `import * as GreetingModule from "../components/Greeting.js";`)
	assert.Contains(t, src, "const Greeting = __editorRuntime.importCodeComponent(GreetingModule);")
	assert.Contains(t, src, `<Greeting name={"Ada"} />`)

	prod, err := CompilePage("app", b.Doc, page.ID, RenderConfig{})
	require.NoError(t, err)
	assert.Contains(t, prod, `import Greeting from "../components/Greeting.js";`)
}

func TestSlotsAndFragments(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	paper := b.Element(page, "children", "card", "Paper", nil)
	stack := b.Element(page, "children", "row", "Stack", appdom.BindableValues{"direction": appdom.Const("row")})
	b.Element(stack, "children", "one", "Text", nil)
	b.Element(stack, "children", "two", "Text", nil)

	src, err := CompilePage("app", b.Doc, page.ID, editor)
	require.NoError(t, err)
	assert.Contains(t, src, `<__editorRuntime.Placeholder data-pagecraft-slots={"children"} slotType={"single"} parentId={"`+string(paper.ID)+`"} />`)

	prod, err := CompilePage("app", b.Doc, page.ID, RenderConfig{})
	require.NoError(t, err)
	assert.Contains(t, prod, `<Stack direction={"row"}>{<>{<Text />}{<Text />}</>}</Stack>`)
	assert.Contains(t, prod, "<Paper />")
}

func TestPrettyOutput(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	b.Element(page, "children", "text", "Text", appdom.BindableValues{"value": appdom.Const("hi")})

	res, err := Compile("app", b.Doc, page.ID, RenderConfig{Editor: true, Pretty: true})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Contains(t, res.Source, "export default function App()")
	assert.Contains(t, res.Source, "NodeRuntimeWrapper")
	assert.NotContains(t, res.Source, "as default")
}

func TestReservedNamesDoNotCollide(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	b.Element(page, "children", "React", "Checkbox", nil)
	b.Element(page, "children", "Checkbox", "Checkbox", nil)

	src, err := CompilePage("app", b.Doc, page.ID, RenderConfig{})
	require.NoError(t, err)
	assert.Contains(t, src, "const [_ReactChecked, set_ReactChecked] = React.useState(false);")
	assert.Contains(t, src, "const [_CheckboxChecked, set_CheckboxChecked] = React.useState(false);")
	assert.Contains(t, src, `import { Checkbox, Stack } from "@pagecraft/components";`)
}

func TestSlotIdentifiersSurviveEdits(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", map[string]any{"tab": "all"})
	b.Element(page, "children", "name field", "TextField", nil)
	agree := b.Element(page, "children", "agree", "Checkbox", nil)
	api := b.API("ordersApi", "static", nil)
	b.Query(page, "orders", api, nil)

	before, err := CompilePage("app", b.Doc, page.ID, RenderConfig{})
	require.NoError(t, err)
	kept := []string{
		"const [tab, setTab] = useUrlQueryState(",
		"const [name_20_fieldValue, setName_20_fieldValue] = React.useState(",
		"const [agreeChecked, setAgreeChecked] = React.useState(",
		"const [orders, setOrders] = React.useState(INITIAL_DATA_QUERY);",
	}
	for _, line := range kept {
		require.Contains(t, before, line)
	}

	// Names that used to fold onto the same identifiers, added ahead of
	// the existing nodes.
	first, err := b.Doc.CreateNode(appdom.TypeElement, appdom.NodeInit{
		Name:       "nameField",
		Attributes: appdom.BindableValues{"component": appdom.Const("TextField")},
	})
	require.NoError(t, err)
	require.NoError(t, b.Doc.InsertNode(first, page.ID, "children", b.Doc.Children(page, "children")[0].ID))
	b.Element(page, "children", "agree_", "Checkbox", nil)
	b.Derived(page, "tab_", "export default () => 1", nil)
	require.NoError(t, b.Doc.RemoveNode(agree.ID))

	after, err := CompilePage("app", b.Doc, page.ID, RenderConfig{})
	require.NoError(t, err)
	for _, line := range kept {
		if strings.Contains(line, "agree") {
			assert.NotContains(t, after, line)
			continue
		}
		assert.Contains(t, after, line)
	}
	assert.Contains(t, after, "const [nameFieldValue, setNameFieldValue] = React.useState(")
	assert.Contains(t, after, "const [agree_5f_Checked, setAgree_5f_Checked] = React.useState(")
}

func TestDerivedParamsMustBeDeclared(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", nil)
	derived := b.Derived(page, "total", "export default (p) => p.n", appdom.BindableValues{"n": appdom.Const(1.0)})

	src, err := CompilePage("app", b.Doc, page.ID, RenderConfig{})
	require.NoError(t, err)
	assert.Contains(t, src, `const totalParams = useStableValue({ "n": 1 });`)

	require.NoError(t, b.Doc.SetNamespacedProp(derived.ID, appdom.NamespaceParams, "extra", appdom.Const(2.0)))
	_, err = CompilePage("app", b.Doc, page.ID, RenderConfig{})
	var ce *cerrors.CompilerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, cerrors.ErrUndeclaredParam, ce.Code)
	assert.Equal(t, "extra", ce.Location.Key)

	delete(derived.Attributes, "argTypes")
	require.NoError(t, b.Doc.SetNamespacedProp(derived.ID, appdom.NamespaceParams, "extra", nil))
	_, err = CompilePage("app", b.Doc, page.ID, RenderConfig{})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, cerrors.ErrUndeclaredParam, ce.Code)
	assert.Equal(t, "n", ce.Location.Key)
}

func TestReservedPageNameIsFatal(t *testing.T) {
	b := appdomtest.New(t)
	page := b.Page("home", map[string]any{"tab": "all"})
	api := b.API("ordersApi", "static", nil)
	q := b.Query(page, "orders", api, nil)
	q.Name = appdom.ReservedPageName

	_, err := CompilePage("app", b.Doc, page.ID, editor)
	var ce *cerrors.CompilerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, cerrors.ErrReservedName, ce.Code)
	assert.Equal(t, string(q.ID), ce.Location.NodeID)
}
