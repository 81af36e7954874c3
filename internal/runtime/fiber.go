package runtime

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/pagecraft-dev/pagecraft/internal/core"
	"github.com/pagecraft-dev/pagecraft/internal/viewstate"
)

const (
	rootTag = "#root"
	textTag = "#text"
)

// fiber is one mounted component, host node or text node.
type fiber struct {
	elemType goja.Value
	tag      string
	key      string
	props    *goja.Object
	text     string

	parent  *fiber
	child   *fiber
	sibling *fiber

	hooks     []*hook
	nodeError *core.RuntimeError

	rect       viewstate.Rect
	hostParent *fiber
}

func (f *fiber) isHost() bool {
	return f.tag != "" && f.tag != textTag
}

func (f *fiber) children() []*fiber {
	var out []*fiber
	for c := f.child; c != nil; c = c.sibling {
		out = append(out, c)
	}
	return out
}

// element is a normalized child produced by a render.
type element struct {
	typ   goja.Value
	tag   string
	key   string
	props *goja.Object
	text  string
}

// RenderError is a render failure that no node boundary caught.
type RenderError struct {
	Err *core.RuntimeError
}

func (e *RenderError) Error() string {
	return "render: " + e.Err.Message
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// flatten normalizes a render result into a list of child elements.
func (h *Host) flatten(v goja.Value, out []element) ([]element, error) {
	if isNullish(v) {
		return out, nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		switch x := v.Export().(type) {
		case bool:
			return out, nil
		case string:
			return append(out, element{tag: textTag, text: x}), nil
		default:
			return append(out, element{tag: textTag, text: v.String()}), nil
		}
	}
	if obj.ClassName() == "Array" {
		n := int(get(obj, "length").ToInteger())
		var err error
		for i := 0; i < n; i++ {
			if out, err = h.flatten(get(obj, strconv.Itoa(i)), out); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	if !h.isElement(obj) {
		return nil, errors.New("objects are not valid as a child")
	}

	el := element{typ: get(obj, "type")}
	if key := get(obj, "key"); !isNullish(key) {
		el.key = key.String()
	}
	if props, ok := get(obj, "props").(*goja.Object); ok {
		el.props = props
	} else {
		el.props = h.vm.NewObject()
	}
	switch t := el.typ.Export().(type) {
	case string:
		el.tag = t
	default:
		if _, fn := goja.AssertFunction(el.typ); !fn {
			return nil, fmt.Errorf("element type is invalid: %s", el.typ.String())
		}
	}
	return append(out, el), nil
}

func sameType(f *fiber, el element) bool {
	if f.tag != "" || el.tag != "" {
		return f.tag == el.tag
	}
	return f.elemType.SameAs(el.typ)
}

func childKey(key string, index int) string {
	if key != "" {
		return "$" + key
	}
	return "." + strconv.Itoa(index)
}

// reconcileChildren matches the rendered children of parent against its
// mounted children by key, or by position when unkeyed. Matching fibers of
// the same type keep their hooks; the rest are unmounted.
func (h *Host) reconcileChildren(parent *fiber, rendered goja.Value) error {
	elems, err := h.flatten(rendered, nil)
	if err != nil {
		return err
	}

	old := make(map[string]*fiber)
	for i, c := range parent.children() {
		old[childKey(c.key, i)] = c
	}

	var prev *fiber
	parent.child = nil
	for i, el := range elems {
		k := childKey(el.key, i)
		f, ok := old[k]
		if ok && sameType(f, el) {
			delete(old, k)
		} else {
			f = &fiber{elemType: el.typ, tag: el.tag, key: el.key}
		}
		f.props = el.props
		f.text = el.text
		f.parent = parent
		f.sibling = nil
		if prev == nil {
			parent.child = f
		} else {
			prev.sibling = f
		}
		prev = f
	}
	for _, f := range old {
		h.unmount(f)
	}

	for c := parent.child; c != nil; c = c.sibling {
		if err := h.renderFiber(c); err != nil {
			return err
		}
	}
	return nil
}

// renderFiber renders f and its subtree. A node runtime wrapper catches
// failures below it and records them as the node's error.
func (h *Host) renderFiber(f *fiber) error {
	switch {
	case f.tag == textTag:
		return nil
	case f.isHost():
		if f.props == nil {
			return nil
		}
		return h.reconcileChildren(f, get(f.props, "children"))
	}

	if h.isBoundary(f) {
		err := h.renderComponent(f)
		if err == nil {
			f.nodeError = nil
			return nil
		}
		f.nodeError = runtimeError(err)
		for _, c := range f.children() {
			h.unmount(c)
		}
		f.child = nil
		return nil
	}
	return h.renderComponent(f)
}

func (h *Host) renderComponent(f *fiber) error {
	fn, ok := goja.AssertFunction(f.elemType)
	if !ok {
		return errors.New("component is not callable")
	}

	prevFiber, prevIdx := h.current, h.hookIdx
	h.current, h.hookIdx = f, 0
	result, err := fn(goja.Undefined(), f.props)
	h.current, h.hookIdx = prevFiber, prevIdx
	if err != nil {
		return err
	}
	return h.reconcileChildren(f, result)
}

func (h *Host) isBoundary(f *fiber) bool {
	return h.wrapper != nil && f.elemType != nil && f.elemType.SameAs(h.wrapper)
}

// unmount releases f and its subtree: hooks die and cleanups run.
func (h *Host) unmount(f *fiber) {
	for _, c := range f.children() {
		h.unmount(c)
	}
	for _, hk := range f.hooks {
		hk.release()
	}
	f.hooks = nil
	f.child = nil
}

// runtimeError extracts a reportable error from a render failure.
func runtimeError(err error) *core.RuntimeError {
	var rt *core.RuntimeError
	if errors.As(err, &rt) {
		return rt
	}
	var re *RenderError
	if errors.As(err, &re) {
		return re.Err
	}
	if e, ok := evalError(err).(*core.RuntimeError); ok {
		return e
	}
	return &core.RuntimeError{Message: err.Error()}
}
