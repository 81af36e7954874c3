// Package viewstate extracts the editor's view of a rendered page: where
// each node and slot sits, which nodes failed, and the live value of every
// binding.
//
// The rendered tree is reached only through TreeWalker so the extractor does
// not depend on any particular renderer.
package viewstate

import (
	"reflect"

	"github.com/pagecraft-dev/pagecraft/internal/core"
)

// Rect is a layout box relative to the page root.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FlowDirection is the direction children of a container are laid out in.
type FlowDirection string

const (
	FlowRow    FlowDirection = "row"
	FlowColumn FlowDirection = "column"
)

// Opaque stands in for prop values that cannot be reported, such as
// functions and elements.
type Opaque struct {
	Kind string
}

// Instance is one rendered component or host node.
type Instance interface {
	Props() map[string]any
	FirstChild() Instance
	NextSibling() Instance
}

// TreeWalker gives access to the rendered tree and its layout.
type TreeWalker interface {
	Roots() []Instance
	// HostRect is the box of the first host node at or below inst.
	HostRect(inst Instance) (Rect, bool)
	// ContainerRect is the box and flow of the host container holding the
	// first host node at or below inst.
	ContainerRect(inst Instance) (Rect, FlowDirection, bool)
	// Component reports the capability of the component wrapped by inst.
	Component(inst Instance) *core.ComponentConfig
}

// Diagnostics exposes the page's evaluated bindings and state.
type Diagnostics interface {
	LiveBindings() map[string]core.LiveBinding
	PageState() map[string]any
}

// SlotState locates a slot of a node.
type SlotState struct {
	Type          string        `json:"type"`
	Rect          Rect          `json:"rect"`
	FlowDirection FlowDirection `json:"flowDirection,omitempty"`
}

// NodeInfo is what the editor knows about one rendered node.
type NodeInfo struct {
	NodeID    string                `json:"nodeId"`
	Error     *core.RuntimeError    `json:"error,omitempty"`
	Rect      *Rect                 `json:"rect,omitempty"`
	Slots     map[string]SlotState  `json:"slots,omitempty"`
	Props     map[string]any        `json:"props,omitempty"`
	Component *core.ComponentConfig `json:"componentConfig,omitempty"`
}

// PageViewState is a snapshot of a rendered page.
type PageViewState struct {
	Nodes     map[string]*NodeInfo        `json:"nodes"`
	Bindings  map[string]core.LiveBinding `json:"bindings"`
	PageState map[string]any              `json:"pageState"`
}

// Extract walks the rendered tree depth first and builds a snapshot. When a
// node id appears more than once, the first occurrence wins. Bindings
// reported by diagnostics override the ones derived from props.
func Extract(w TreeWalker, diag Diagnostics) *PageViewState {
	vs := &PageViewState{
		Nodes:     make(map[string]*NodeInfo),
		Bindings:  make(map[string]core.LiveBinding),
		PageState: map[string]any{},
	}
	x := &extractor{w: w, vs: vs, seen: make(map[string]bool)}
	for _, root := range w.Roots() {
		x.walk(root)
	}

	if diag != nil {
		for id, b := range diag.LiveBindings() {
			vs.Bindings[id] = b
		}
		if ps := diag.PageState(); ps != nil {
			vs.PageState = ps
		}
	}
	return vs
}

type extractor struct {
	w    TreeWalker
	vs   *PageViewState
	seen map[string]bool
}

func (x *extractor) walk(inst Instance) {
	for cur := inst; cur != nil; cur = cur.NextSibling() {
		props := cur.Props()
		if id, ok := props[core.RuntimePropNodeID].(string); ok && id != "" {
			x.recordNode(id, cur, props)
		} else if prop, ok := props[core.RuntimePropSlots].(string); ok && prop != "" {
			x.recordSlot(prop, cur, props)
		}
		if child := cur.FirstChild(); child != nil {
			x.walk(child)
		}
	}
}

func (x *extractor) node(id string) *NodeInfo {
	info, ok := x.vs.Nodes[id]
	if !ok {
		info = &NodeInfo{NodeID: id}
		x.vs.Nodes[id] = info
	}
	return info
}

func (x *extractor) recordNode(id string, inst Instance, props map[string]any) {
	if x.seen[id] {
		return
	}
	x.seen[id] = true
	info := x.node(id)

	info.Error = runtimeError(props[core.NodeErrorProp])
	if rect, ok := x.w.HostRect(inst); ok {
		info.Rect = &rect
	}
	info.Component = x.w.Component(inst)
	info.Props = map[string]any{}

	if child := inst.FirstChild(); child != nil {
		for key, value := range child.Props() {
			if !reportable(value) {
				continue
			}
			info.Props[key] = value
			x.vs.Bindings[core.BindingID(id, "props", key)] = core.LiveBinding{Value: value}
		}
	}
}

func (x *extractor) recordSlot(prop string, inst Instance, props map[string]any) {
	parentID, _ := props["parentId"].(string)
	if parentID == "" {
		return
	}
	info := x.node(parentID)
	if _, seen := info.Slots[prop]; seen {
		return
	}
	slotType, _ := props["slotType"].(string)
	slot := SlotState{Type: slotType}
	switch slotType {
	case core.SlotTypeMultiple:
		rect, dir, ok := x.w.ContainerRect(inst)
		if !ok {
			if rect, ok = x.w.HostRect(inst); !ok {
				return
			}
			dir = FlowColumn
		}
		slot.Rect = rect
		slot.FlowDirection = dir
	default:
		rect, ok := x.w.HostRect(inst)
		if !ok {
			return
		}
		slot.Rect = rect
	}
	if info.Slots == nil {
		info.Slots = make(map[string]SlotState)
	}
	info.Slots[prop] = slot
}

func runtimeError(v any) *core.RuntimeError {
	switch e := v.(type) {
	case *core.RuntimeError:
		return e
	case core.RuntimeError:
		return &e
	case map[string]any:
		msg, _ := e["message"].(string)
		stack, _ := e["stack"].(string)
		if msg == "" && stack == "" {
			return nil
		}
		return &core.RuntimeError{Message: msg, Stack: stack}
	case error:
		return &core.RuntimeError{Message: e.Error()}
	}
	return nil
}

// reportable filters out values that cannot be shown in the editor.
func reportable(v any) bool {
	switch v.(type) {
	case Opaque, *Opaque:
		return false
	case nil:
		return true
	}
	return reflect.TypeOf(v).Kind() != reflect.Func
}
