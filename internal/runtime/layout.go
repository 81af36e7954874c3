package runtime

import (
	"github.com/dop251/goja"

	"github.com/pagecraft-dev/pagecraft/internal/viewstate"
)

const (
	// DefaultViewportWidth is the width pages are laid out at.
	DefaultViewportWidth = 1024
	// LeafHeight is the height of a host node without host children.
	LeafHeight = 36
)

// layout assigns every host fiber a box. Hosts stack their host children
// vertically, or side by side in equal columns when their direction prop
// is "row".
func (h *Host) layout() {
	if h.root == nil {
		return
	}
	h.place(h.root, nil, 0, 0, h.viewportWidth)
}

func (h *Host) place(f *fiber, parent *fiber, x, y, width float64) float64 {
	f.hostParent = parent
	kids := hostChildren(f)
	height := 0.0
	switch {
	case len(kids) == 0:
		height = LeafHeight
	case flowOf(f) == viewstate.FlowRow:
		w := width / float64(len(kids))
		for i, c := range kids {
			if ch := h.place(c, f, x+float64(i)*w, y, w); ch > height {
				height = ch
			}
		}
	default:
		for _, c := range kids {
			height += h.place(c, f, x, y+height, width)
		}
	}
	f.rect = viewstate.Rect{X: x, Y: y, Width: width, Height: height}
	return height
}

// hostChildren returns the nearest host descendants of f.
func hostChildren(f *fiber) []*fiber {
	var out []*fiber
	for c := f.child; c != nil; c = c.sibling {
		switch {
		case c.isHost():
			out = append(out, c)
		case c.tag == textTag:
		default:
			out = append(out, hostChildren(c)...)
		}
	}
	return out
}

func flowOf(f *fiber) viewstate.FlowDirection {
	if f.props == nil {
		return viewstate.FlowColumn
	}
	if dir := get(f.props, "direction"); !goja.IsUndefined(dir) && dir.String() == "row" {
		return viewstate.FlowRow
	}
	return viewstate.FlowColumn
}
