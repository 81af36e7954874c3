package runtime

import (
	"github.com/pagecraft-dev/pagecraft/internal/core"
	"github.com/pagecraft-dev/pagecraft/internal/viewstate"
)

var (
	_ viewstate.TreeWalker  = (*Host)(nil)
	_ viewstate.Diagnostics = (*Host)(nil)
)

// instance exposes a fiber to the view-state extractor.
type instance struct {
	h *Host
	f *fiber
}

func (i instance) Props() map[string]any {
	out := make(map[string]any)
	if i.f.props != nil {
		for _, k := range i.f.props.Keys() {
			if k == "children" {
				continue
			}
			out[k] = i.h.exportValue(get(i.f.props, k))
		}
	}
	if i.f.nodeError != nil {
		out[core.NodeErrorProp] = i.f.nodeError
	}
	return out
}

func (i instance) FirstChild() viewstate.Instance {
	if i.f.child == nil {
		return nil
	}
	return instance{h: i.h, f: i.f.child}
}

func (i instance) NextSibling() viewstate.Instance {
	if i.f.sibling == nil {
		return nil
	}
	return instance{h: i.h, f: i.f.sibling}
}

// Roots returns the mounted tree.
func (h *Host) Roots() []viewstate.Instance {
	if h.root == nil {
		return nil
	}
	return []viewstate.Instance{instance{h: h, f: h.root}}
}

// HostRect is the box of the first host node at or below inst.
func (h *Host) HostRect(inst viewstate.Instance) (viewstate.Rect, bool) {
	f := firstHost(fiberOf(inst))
	if f == nil {
		return viewstate.Rect{}, false
	}
	return f.rect, true
}

// ContainerRect is the box and flow of the host holding the first host
// node at or below inst.
func (h *Host) ContainerRect(inst viewstate.Instance) (viewstate.Rect, viewstate.FlowDirection, bool) {
	f := firstHost(fiberOf(inst))
	if f == nil || f.hostParent == nil {
		return viewstate.Rect{}, "", false
	}
	return f.hostParent.rect, flowOf(f.hostParent), true
}

// Component reports the argument contract of the component wrapped by inst.
func (h *Host) Component(inst viewstate.Instance) *core.ComponentConfig {
	f := fiberOf(inst)
	if f == nil || f.child == nil || f.child.elemType == nil {
		return nil
	}
	for _, c := range h.configs {
		if c.fn.SameAs(f.child.elemType) {
			return c.config
		}
	}
	return nil
}

// ViewState extracts the editor's view of the last committed render.
func (h *Host) ViewState() *viewstate.PageViewState {
	return viewstate.Extract(h, h)
}

func fiberOf(inst viewstate.Instance) *fiber {
	if i, ok := inst.(instance); ok {
		return i.f
	}
	return nil
}

func firstHost(f *fiber) *fiber {
	if f == nil {
		return nil
	}
	if f.isHost() && f.tag != rootTag {
		return f
	}
	for c := f.child; c != nil; c = c.sibling {
		if found := firstHost(c); found != nil {
			return found
		}
	}
	return nil
}
