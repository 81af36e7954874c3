package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	cerrors "github.com/pagecraft-dev/pagecraft/internal/compiler/errors"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/imports"
	"github.com/pagecraft-dev/pagecraft/internal/components"
	"github.com/pagecraft-dev/pagecraft/internal/core"
	strutil "github.com/pagecraft-dev/pagecraft/internal/util/strings"
)

// controlledSlot backs an element prop whose value the page owns.
type controlledSlot struct {
	node      *appdom.Node
	arg       core.ArgTypeDefinition
	local     string
	valueVar  string
	setterVar string
}

type derivedSlot struct {
	node      *appdom.Node
	args      core.ArgTypeDefinitions
	valueVar  string
	setterVar string
	paramsVar string
	getter    string
}

type querySlot struct {
	node      *appdom.Node
	api       *appdom.Node
	valueVar  string
	setterVar string
}

type urlSlot struct {
	param     string
	dflt      any
	valueVar  string
	setterVar string
}

// pageState is every state slot of a page, keyed for lookup by the emitter.
type pageState struct {
	url        []*urlSlot
	controlled []*controlledSlot
	derived    []*derivedSlot
	queries    []*querySlot
	byKey      map[string]any
}

// collectAllState walks the page once and allocates a (value, setter) pair
// for every controlled prop, derived state, query and URL parameter.
// Calling it again returns the same slots.
//
// Slot identifiers derive one-to-one from names and are allocated before
// any import, kind by kind, so adding or removing a node never renames the
// slots of other nodes.
func (c *Context) collectAllState() *pageState {
	if c.state != nil {
		return c.state
	}
	st := &pageState{byKey: make(map[string]any)}
	c.state = st

	if raw, ok := c.page.ConstAttribute("urlQuery"); ok {
		if params, ok := raw.(map[string]any); ok {
			keys := make([]string, 0, len(params))
			for k := range params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, param := range keys {
				slot := &urlSlot{
					param:     param,
					dflt:      params[param],
					valueVar:  c.slotBinding(param),
					setterVar: c.slotBinding("set", param),
				}
				st.url = append(st.url, slot)
				st.byKey[core.BindingID(string(c.page.ID), "urlQuery", param)] = slot
			}
		}
	}

	nodes := c.dom.Descendants(c.page)
	for _, n := range nodes {
		if n.Type.PageScoped() && n.Name == appdom.ReservedPageName {
			c.fail(cerrors.NewReservedName(cerrors.Location{NodeID: string(n.ID)}, n.Name))
		}
	}

	for _, n := range nodes {
		if n.Type != appdom.TypeQueryState {
			continue
		}
		loc := cerrors.Location{NodeID: string(n.ID), Namespace: string(appdom.NamespaceAttributes), Key: "api"}
		apiID, _ := n.ConstAttribute("api")
		id, ok := apiID.(string)
		if !ok || id == "" {
			c.fail(cerrors.NewMissingAttribute(loc, "api"))
			continue
		}
		api := c.lookupNode(loc, appdom.NodeID(id), appdom.TypeAPI)
		if api == nil {
			continue
		}
		slot := &querySlot{
			node:      n,
			api:       api,
			valueVar:  c.slotBinding(n.Name),
			setterVar: c.slotBinding("set", n.Name),
		}
		st.queries = append(st.queries, slot)
		st.byKey[string(n.ID)] = slot
	}

	for _, n := range nodes {
		if n.Type != appdom.TypeDerivedState {
			continue
		}
		raw, _ := n.ConstAttribute("argTypes")
		args := components.ParseArgTypes(raw)
		if args == nil {
			args = core.ArgTypeDefinitions{}
		}
		slot := &derivedSlot{
			node:      n,
			args:      args,
			valueVar:  c.slotBinding(n.Name),
			setterVar: c.slotBinding("set", n.Name),
			paramsVar: c.slotBinding(n.Name, "params"),
		}
		st.derived = append(st.derived, slot)
		st.byKey[string(n.ID)] = slot
	}

	for _, n := range nodes {
		if n.Type != appdom.TypeElement {
			continue
		}
		def, err := c.catalog.Resolve(c.dom, n.StringAttribute("component"))
		if err != nil {
			continue
		}
		for _, arg := range def.Config.ArgTypes {
			if !arg.Controlled() {
				continue
			}
			slot := &controlledSlot{
				node:      n,
				arg:       arg,
				valueVar:  c.slotBinding(n.Name, arg.Name),
				setterVar: c.slotBinding("set", n.Name, arg.Name),
			}
			st.controlled = append(st.controlled, slot)
			st.byKey[core.BindingID(string(n.ID), string(appdom.NamespaceProps), arg.Name)] = slot
		}
	}

	// Imports come last; they take whatever names the slots left free.
	for _, n := range nodes {
		if n.Type != appdom.TypeElement {
			continue
		}
		_, local, ok := c.component(n)
		if !ok {
			continue
		}
		for _, slot := range st.controlled {
			if slot.node == n {
				slot.local = local
			}
		}
	}
	for _, slot := range st.derived {
		loc := cerrors.Location{NodeID: string(slot.node.ID), Namespace: string(appdom.NamespaceAttributes), Key: "code"}
		slot.getter = c.addImport(loc, core.DerivedStateModule(string(slot.node.ID)), imports.Default,
			slotName("compute", slot.node.Name))
	}
	return st
}

// slotName joins parts into one identifier: the first part as is, later
// parts with an upper-case first rune. Each part is mapped one-to-one, so
// distinct names give distinct identifiers.
func slotName(parts ...string) string {
	var b strings.Builder
	for i, part := range parts {
		id := strutil.Identifier(part)
		if i > 0 {
			id = strutil.UpperFirst(id)
		}
		b.WriteString(id)
	}
	return b.String()
}

func (c *Context) slotBinding(parts ...string) string {
	return c.scope.CreateUniqueBinding(slotName(parts...))
}

// controlledSlot returns the slot backing prop of element n, if any.
func (st *pageState) controlledSlot(n *appdom.Node, prop string) *controlledSlot {
	slot, _ := st.byKey[core.BindingID(string(n.ID), string(appdom.NamespaceProps), prop)].(*controlledSlot)
	return slot
}

// renderStateHooks emits the useState-like hooks that open the App body.
func (c *Context) renderStateHooks(w *writer) {
	st := c.collectAllState()

	if len(st.url) > 0 {
		useURL := c.coreImport("useUrlQueryState")
		for _, s := range st.url {
			w.line("const [%s, %s] = %s(%s, %s);", s.valueVar, s.setterVar, useURL, jsString(s.param),
				c.literal(cerrors.Location{NodeID: string(c.page.ID), Namespace: "urlQuery", Key: s.param}, s.dflt))
		}
	}

	for _, s := range st.controlled {
		w.line("const [%s, %s] = %s.useState(%s);", s.valueVar, s.setterVar, c.reactAlias, c.controlledDefault(s))
	}

	if len(st.queries) > 0 {
		initial := c.coreImport("INITIAL_DATA_QUERY")
		for _, s := range st.queries {
			w.line("const [%s, %s] = %s.useState(%s);", s.valueVar, s.setterVar, c.reactAlias, initial)
		}
	}

	for _, s := range st.derived {
		w.line("const [%s, %s] = %s.useState(undefined);", s.valueVar, s.setterVar, c.reactAlias)
	}
}

// controlledDefault picks the initial value of a controlled prop: its
// constant binding, else the declared default, else the component's
// defaultProps.
func (c *Context) controlledDefault(s *controlledSlot) string {
	loc := propLocation(s.node, appdom.NamespaceProps, s.arg.Name)
	if v := s.node.Props[s.arg.Name]; v != nil && v.Kind == appdom.KindConst {
		return c.literal(loc, v.Value)
	}
	if s.arg.DefaultValue != nil {
		return c.literal(loc, s.arg.DefaultValue)
	}
	return fmt.Sprintf("%s.defaultProps?.[%s]", s.local, jsString(s.arg.Name))
}

// controlledHandler returns the change handler passed for a controlled prop.
func (c *Context) controlledHandler(s *controlledSlot) string {
	h := s.arg.OnChangeHandler
	if h == nil || h.ValueGetter == "" {
		return s.setterVar
	}
	evalCode := c.coreImport("evalCode")
	params := strings.Join(h.Params, ", ")
	return fmt.Sprintf("(%s) => %s(%s(%s, { %s }))", params, s.setterVar, evalCode, jsString(h.ValueGetter), params)
}

// renderPageState emits the object every expression is evaluated against:
// page URL parameters, controlled props grouped by node name, and derived
// and query values under their node names.
func (c *Context) renderPageState(w *writer) {
	st := c.collectAllState()

	w.line("const %s = {", c.pageStateVar)
	w.indent++
	if len(st.url) > 0 {
		w.line("page: {")
		w.indent++
		for _, s := range st.url {
			w.line("%s: %s,", jsString(s.param), s.valueVar)
		}
		w.indent--
		w.line("},")
	} else {
		w.line("page: {},")
	}

	var order []*appdom.Node
	grouped := make(map[appdom.NodeID][]*controlledSlot)
	for _, s := range st.controlled {
		if _, seen := grouped[s.node.ID]; !seen {
			order = append(order, s.node)
		}
		grouped[s.node.ID] = append(grouped[s.node.ID], s)
	}
	for _, n := range order {
		w.line("%s: {", jsString(n.Name))
		w.indent++
		for _, s := range grouped[n.ID] {
			w.line("%s: %s,", jsString(s.arg.Name), s.valueVar)
		}
		w.indent--
		w.line("},")
	}
	for _, s := range st.queries {
		w.line("%s: %s,", jsString(s.node.Name), s.valueVar)
	}
	for _, s := range st.derived {
		w.line("%s: %s,", jsString(s.node.Name), s.valueVar)
	}
	w.indent--
	w.line("};")
	w.line("const %s = {};", c.bindingsVar)
}

// renderStateEffects emits derived-state recomputation and query triggers.
func (c *Context) renderStateEffects(w *writer) {
	st := c.collectAllState()

	if len(st.derived) > 0 {
		useStable := c.coreImport("useStableValue")
		for _, s := range st.derived {
			w.line("const %s = %s(%s);", s.paramsVar, useStable, c.paramsObject(s.node, s.args))
			w.line("%s.useEffect(() => {", c.reactAlias)
			w.indent++
			w.line("%s(%s(%s));", s.setterVar, s.getter, s.paramsVar)
			w.indent--
			w.line("}, [%s]);", s.paramsVar)
		}
	}

	if len(st.queries) > 0 {
		useDataQuery := c.coreImport("useDataQuery")
		dataURL := core.DataURL(c.appID, c.config.Version)
		for _, s := range st.queries {
			w.line("%s(%s, %s, %s, %s);", useDataQuery, s.setterVar, jsString(dataURL),
				jsString(string(s.api.ID)), c.paramsObject(s.node, nil))
		}
	}
}

// paramsObject resolves the params namespace of a state node into an
// object literal with keys in ascending order. With declared set, every
// param must be declared there; a missing declaration is fatal.
func (c *Context) paramsObject(n *appdom.Node, declared core.ArgTypeDefinitions) string {
	keys := n.Params.SortedKeys()
	if len(keys) == 0 {
		return "{}"
	}
	entries := make([]string, len(keys))
	for i, k := range keys {
		loc := propLocation(n, appdom.NamespaceParams, k)
		arg := core.ArgTypeDefinition{Name: k}
		if declared != nil {
			var ok bool
			if arg, ok = declared.Get(k); !ok {
				c.fail(cerrors.NewUndeclaredParam(loc, n.Name, k))
				return "{}"
			}
		}
		entries[i] = fmt.Sprintf("%s: %s", jsString(k), c.resolveBindable(loc, n.Params[k], arg))
	}
	return "{ " + strings.Join(entries, ", ") + " }"
}
