package codegen

import (
	"fmt"
	"strings"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	cerrors "github.com/pagecraft-dev/pagecraft/internal/compiler/errors"
	"github.com/pagecraft-dev/pagecraft/internal/components"
	"github.com/pagecraft-dev/pagecraft/internal/core"
)

type jsxAttr struct {
	name  string
	value string
}

func (a jsxAttr) String() string {
	return a.name + "={" + a.value + "}"
}

func stringAttr(name, value string) jsxAttr {
	return jsxAttr{name: name, value: jsString(value)}
}

// jsxElement renders <tag attrs>children</tag>.
func jsxElement(tag string, attrs []jsxAttr, children []string) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(tag)
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.String())
	}
	if len(children) == 0 {
		b.WriteString(" />")
		return b.String()
	}
	b.WriteString(">")
	for _, child := range children {
		b.WriteString(child)
	}
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteString(">")
	return b.String()
}

// renderRoot renders the page's children inside the page root stack.
func (c *Context) renderRoot() string {
	loc := cerrors.Location{NodeID: string(c.page.ID)}
	stack := c.addImport(loc, core.ModuleComponents, components.PageRoot, components.PageRoot)
	children := c.renderNodes(c.dom.Children(c.page, appdom.ChildChildren))
	if c.config.Editor {
		children = []string{c.slotsMarker(c.page, appdom.ChildChildren, core.SlotTypeMultiple, children)}
	}
	return jsxElement(stack, []jsxAttr{
		stringAttr("direction", "column"),
		stringAttr("alignItems", "stretch"),
	}, children)
}

func (c *Context) renderNodes(nodes []*appdom.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, "{"+c.renderElement(n)+"}")
	}
	return out
}

// renderElement renders one element node and its subtree. Props follow the
// component's declared argument order.
func (c *Context) renderElement(n *appdom.Node) string {
	def, local, ok := c.component(n)
	if !ok {
		return "null"
	}
	args := def.Config.ArgTypes

	for _, key := range n.Props.SortedKeys() {
		if _, declared := args.Get(key); !declared {
			c.fail(cerrors.NewUndeclaredProp(propLocation(n, appdom.NamespaceProps, key), def.ID, key))
			return "null"
		}
	}
	childNodes := c.dom.ChildNodes(n)
	for _, prop := range c.dom.ChildProps(n) {
		if arg, declared := args.Get(prop); !declared || !arg.IsElement() {
			c.fail(cerrors.NewUndeclaredChildProp(propLocation(n, appdom.NamespaceProps, prop), def.ID, prop))
			return "null"
		}
	}

	st := c.collectAllState()
	handled := make(map[string]bool)
	for _, arg := range args {
		if arg.Controlled() {
			handled[arg.OnChangeProp] = true
		}
	}

	var attrs []jsxAttr
	var children []string
	for _, arg := range args {
		if handled[arg.Name] {
			continue
		}
		if slot := st.controlledSlot(n, arg.Name); slot != nil {
			attrs = append(attrs,
				jsxAttr{name: arg.Name, value: slot.valueVar},
				jsxAttr{name: arg.OnChangeProp, value: c.controlledHandler(slot)},
			)
			continue
		}
		if arg.IsElement() {
			expr, present := c.renderElementProp(n, arg, childNodes[arg.Name])
			if !present {
				continue
			}
			if arg.Name == appdom.ChildChildren {
				children = append(children, "{"+expr+"}")
			} else {
				attrs = append(attrs, jsxAttr{name: arg.Name, value: expr})
			}
			continue
		}
		value, present := n.Props[arg.Name]
		if !present {
			continue
		}
		loc := propLocation(n, appdom.NamespaceProps, arg.Name)
		attrs = append(attrs, jsxAttr{name: arg.Name, value: c.resolveBindable(loc, value, arg)})
	}

	el := jsxElement(local, attrs, children)
	if !c.config.Editor {
		return el
	}
	return jsxElement(c.runtimeAlias+".NodeRuntimeWrapper",
		[]jsxAttr{stringAttr(core.RuntimePropNodeID, string(n.ID))},
		[]string{"{" + el + "}"})
}

// renderElementProp renders the children held under an element prop. Editor
// builds always emit the slot marker, even for an empty slot.
func (c *Context) renderElementProp(n *appdom.Node, arg core.ArgTypeDefinition, nodes []*appdom.Node) (string, bool) {
	rendered := c.renderNodes(nodes)
	if c.config.Editor && arg.IsSlot() {
		slotType := core.SlotTypeMultiple
		if arg.Control.Type == core.ControlSlot {
			slotType = core.SlotTypeSingle
		}
		return c.slotsMarker(n, arg.Name, slotType, rendered), true
	}
	switch len(rendered) {
	case 0:
		return "", false
	case 1:
		return strings.TrimSuffix(strings.TrimPrefix(rendered[0], "{"), "}"), true
	default:
		return jsxElement("", nil, rendered), true
	}
}

// slotsMarker wraps children in the runtime's slot marker component.
func (c *Context) slotsMarker(parent *appdom.Node, prop, slotType string, children []string) string {
	tag := c.runtimeAlias + ".Slots"
	if slotType == core.SlotTypeSingle {
		tag = c.runtimeAlias + ".Placeholder"
	}
	return jsxElement(tag, []jsxAttr{
		stringAttr(core.RuntimePropSlots, prop),
		stringAttr("slotType", slotType),
		stringAttr("parentId", string(parent.ID)),
	}, children)
}

// moduleHeader is emitted between imports and the App function.
func (c *Context) moduleHeader() string {
	if len(c.moduleDecls) == 0 {
		return ""
	}
	return fmt.Sprintf("%s\n\n", strings.Join(c.moduleDecls, "\n"))
}
