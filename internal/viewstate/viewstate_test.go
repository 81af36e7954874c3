package viewstate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft-dev/pagecraft/internal/core"
)

type fakeInstance struct {
	props    map[string]any
	children []*fakeInstance
	next     *fakeInstance
	rect     *Rect
	config   *core.ComponentConfig
}

func (f *fakeInstance) Props() map[string]any { return f.props }

func (f *fakeInstance) FirstChild() Instance {
	if len(f.children) == 0 {
		return nil
	}
	return f.children[0]
}

func (f *fakeInstance) NextSibling() Instance {
	if f.next == nil {
		return nil
	}
	return f.next
}

func tree(props map[string]any, children ...*fakeInstance) *fakeInstance {
	for i := 0; i+1 < len(children); i++ {
		children[i].next = children[i+1]
	}
	return &fakeInstance{props: props, children: children}
}

type fakeWalker struct {
	roots     []*fakeInstance
	container Rect
}

func (w *fakeWalker) Roots() []Instance {
	out := make([]Instance, len(w.roots))
	for i, r := range w.roots {
		out[i] = r
	}
	return out
}

func (w *fakeWalker) HostRect(inst Instance) (Rect, bool) {
	f := inst.(*fakeInstance)
	if f.rect == nil {
		return Rect{}, false
	}
	return *f.rect, true
}

func (w *fakeWalker) ContainerRect(Instance) (Rect, FlowDirection, bool) {
	return w.container, FlowRow, true
}

func (w *fakeWalker) Component(inst Instance) *core.ComponentConfig {
	return inst.(*fakeInstance).config
}

type fakeDiagnostics struct {
	bindings map[string]core.LiveBinding
	state    map[string]any
}

func (d fakeDiagnostics) LiveBindings() map[string]core.LiveBinding { return d.bindings }
func (d fakeDiagnostics) PageState() map[string]any                 { return d.state }

func wrapper(id string, rect Rect, child *fakeInstance) *fakeInstance {
	w := tree(map[string]any{core.RuntimePropNodeID: id}, child)
	w.rect = &rect
	w.config = &core.ComponentConfig{ArgTypes: core.ArgTypeDefinitions{{Name: "value"}}}
	return w
}

func TestExtractNodesAndBindings(t *testing.T) {
	text := tree(map[string]any{"value": 2.0, "onClick": func() {}, "icon": Opaque{Kind: "element"}})
	w := &fakeWalker{roots: []*fakeInstance{wrapper("n1", Rect{Y: 10, Width: 100, Height: 36}, text)}}

	vs := Extract(w, fakeDiagnostics{
		bindings: map[string]core.LiveBinding{"n1.props.label": {Error: &core.RuntimeError{Message: "boom"}}},
		state:    map[string]any{"page": map[string]any{}},
	})

	require.Contains(t, vs.Nodes, "n1")
	node := vs.Nodes["n1"]
	assert.Equal(t, &Rect{Y: 10, Width: 100, Height: 36}, node.Rect)
	assert.Equal(t, map[string]any{"value": 2.0}, node.Props)
	assert.NotNil(t, node.Component)
	assert.Nil(t, node.Error)

	assert.Equal(t, core.LiveBinding{Value: 2.0}, vs.Bindings["n1.props.value"])
	assert.Equal(t, "boom", vs.Bindings["n1.props.label"].Error.Message)
	assert.Contains(t, vs.PageState, "page")

	_, err := json.Marshal(vs)
	require.NoError(t, err)
}

func TestExtractFirstOccurrenceWins(t *testing.T) {
	first := wrapper("n1", Rect{Y: 0, Height: 36}, tree(map[string]any{"value": "first"}))
	second := wrapper("n1", Rect{Y: 50, Height: 36}, tree(map[string]any{"value": "second"}))
	root := tree(map[string]any{}, first, second)

	vs := Extract(&fakeWalker{roots: []*fakeInstance{root}}, nil)
	assert.Equal(t, "first", vs.Nodes["n1"].Props["value"])
	assert.Equal(t, 0.0, vs.Nodes["n1"].Rect.Y)
	assert.Equal(t, "first", vs.Bindings["n1.props.value"].Value)
}

func TestExtractDiagnosticsOverrideProps(t *testing.T) {
	w := &fakeWalker{roots: []*fakeInstance{wrapper("n1", Rect{}, tree(map[string]any{"value": "from props"}))}}
	vs := Extract(w, fakeDiagnostics{bindings: map[string]core.LiveBinding{
		"n1.props.value": {Value: "from diagnostics"},
	}})
	assert.Equal(t, "from diagnostics", vs.Bindings["n1.props.value"].Value)
}

func TestExtractNodeErrors(t *testing.T) {
	w := tree(map[string]any{
		core.RuntimePropNodeID: "n2",
		core.NodeErrorProp:     &core.RuntimeError{Message: "render failed"},
	})
	vs := Extract(&fakeWalker{roots: []*fakeInstance{w}}, nil)
	require.NotNil(t, vs.Nodes["n2"].Error)
	assert.Equal(t, "render failed", vs.Nodes["n2"].Error.Message)
	assert.Nil(t, vs.Nodes["n2"].Rect)
}

func TestExtractSlots(t *testing.T) {
	single := tree(map[string]any{core.RuntimePropSlots: "header", "slotType": core.SlotTypeSingle, "parentId": "n1"})
	single.rect = &Rect{X: 5, Width: 20, Height: 36}
	multiple := tree(map[string]any{core.RuntimePropSlots: "children", "slotType": core.SlotTypeMultiple, "parentId": "n1"})
	dup := tree(map[string]any{core.RuntimePropSlots: "children", "slotType": core.SlotTypeMultiple, "parentId": "n1"})
	root := tree(map[string]any{}, single, multiple, dup)

	w := &fakeWalker{roots: []*fakeInstance{root}, container: Rect{Width: 300, Height: 72}}
	vs := Extract(w, nil)

	slots := vs.Nodes["n1"].Slots
	require.Len(t, slots, 2)
	assert.Equal(t, SlotState{Type: core.SlotTypeSingle, Rect: Rect{X: 5, Width: 20, Height: 36}}, slots["header"])
	assert.Equal(t, SlotState{Type: core.SlotTypeMultiple, Rect: Rect{Width: 300, Height: 72}, FlowDirection: FlowRow}, slots["children"])
}
