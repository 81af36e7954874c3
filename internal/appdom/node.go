// Package appdom implements the App Document: a typed node graph that holds
// every page, element, query and derived value of an application together with
// the bindable values attached to them.
//
// The document is a forest rooted at a single app node. Every mutation either
// preserves the graph invariants (unique ids, acyclic parent relation, total
// sibling order, page-unique names) or fails and leaves the document untouched.
package appdom

import "sort"

// NodeID identifies a node. Ids are assigned once and never reused.
type NodeID string

// NodeType is the closed set of node kinds.
type NodeType string

const (
	TypeApp           NodeType = "app"
	TypeTheme         NodeType = "theme"
	TypeConnection    NodeType = "connection"
	TypeAPI           NodeType = "api"
	TypePage          NodeType = "page"
	TypeElement       NodeType = "element"
	TypeCodeComponent NodeType = "codeComponent"
	TypeDerivedState  NodeType = "derivedState"
	TypeQueryState    NodeType = "queryState"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	_, ok := legalNamespaces[t]
	return ok
}

// ReservedPageName cannot name an element, derived state or query: page
// state exposes the URL query parameters under it.
const ReservedPageName = "page"

// PageScoped reports whether nodes of type t live inside a page and expose
// their name in its state.
func (t NodeType) PageScoped() bool {
	return t == TypeElement || t == TypeDerivedState || t == TypeQueryState
}

// Namespace names a bindable-value map on a node.
type Namespace string

const (
	NamespaceAttributes Namespace = "attributes"
	NamespaceProps      Namespace = "props"
	NamespaceParams     Namespace = "params"
)

var legalNamespaces = map[NodeType][]Namespace{
	TypeApp:           {NamespaceAttributes},
	TypeTheme:         {NamespaceAttributes},
	TypeConnection:    {NamespaceAttributes},
	TypeAPI:           {NamespaceAttributes},
	TypePage:          {NamespaceAttributes},
	TypeCodeComponent: {NamespaceAttributes},
	TypeElement:       {NamespaceAttributes, NamespaceProps},
	TypeDerivedState:  {NamespaceAttributes, NamespaceParams},
	TypeQueryState:    {NamespaceAttributes, NamespaceParams},
}

// HasNamespace reports whether nodes of type t may carry values in ns.
func (t NodeType) HasNamespace(ns Namespace) bool {
	for _, legal := range legalNamespaces[t] {
		if legal == ns {
			return true
		}
	}
	return false
}

// Child namespaces of the app and page nodes.
const (
	ChildPages          = "pages"
	ChildThemes         = "themes"
	ChildConnections    = "connections"
	ChildAPIs           = "apis"
	ChildCodeComponents = "codeComponents"
	ChildChildren       = "children"
	ChildDerivedStates  = "derivedStates"
	ChildQueryStates    = "queryStates"
)

var childTypes = map[NodeType]map[string]NodeType{
	TypeApp: {
		ChildPages:          TypePage,
		ChildThemes:         TypeTheme,
		ChildConnections:    TypeConnection,
		ChildAPIs:           TypeAPI,
		ChildCodeComponents: TypeCodeComponent,
	},
	TypePage: {
		ChildChildren:      TypeElement,
		ChildDerivedStates: TypeDerivedState,
		ChildQueryStates:   TypeQueryState,
	},
}

// acceptsChild reports whether a node of type parent can hold a child of
// type child under prop. Elements accept element children under any prop;
// whether that prop is element-typed is decided by the component contract.
func acceptsChild(parent NodeType, prop string, child NodeType) bool {
	if parent == TypeElement {
		return child == TypeElement && prop != ""
	}
	want, ok := childTypes[parent][prop]
	return ok && want == child
}

// BindableValues maps a key to its bindable value.
type BindableValues map[string]*BindableValue

// SortedKeys returns the keys of v in ascending order.
func (v BindableValues) SortedKeys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Node is a single vertex of the App Document.
type Node struct {
	ID          NodeID         `json:"id"`
	Type        NodeType       `json:"type"`
	Name        string         `json:"name"`
	ParentID    NodeID         `json:"parentId,omitempty"`
	ParentProp  string         `json:"parentProp,omitempty"`
	ParentIndex string         `json:"parentIndex,omitempty"`
	Attributes  BindableValues `json:"attributes,omitempty"`
	Props       BindableValues `json:"props,omitempty"`
	Params      BindableValues `json:"params,omitempty"`
}

// Namespace returns the value map for ns, or nil when the node has none.
func (n *Node) Namespace(ns Namespace) BindableValues {
	switch ns {
	case NamespaceAttributes:
		return n.Attributes
	case NamespaceProps:
		return n.Props
	case NamespaceParams:
		return n.Params
	}
	return nil
}

func (n *Node) namespacePtr(ns Namespace) *BindableValues {
	switch ns {
	case NamespaceAttributes:
		return &n.Attributes
	case NamespaceProps:
		return &n.Props
	case NamespaceParams:
		return &n.Params
	}
	return nil
}

// Attribute returns the attribute value under key, or nil.
func (n *Node) Attribute(key string) *BindableValue {
	return n.Attributes[key]
}

// ConstAttribute returns the constant payload of an attribute. ok is false
// when the attribute is missing or not a constant.
func (n *Node) ConstAttribute(key string) (any, bool) {
	v := n.Attributes[key]
	if v == nil || v.Kind != KindConst {
		return nil, false
	}
	return v.Value, true
}

// StringAttribute returns a constant string attribute, or "".
func (n *Node) StringAttribute(key string) string {
	v, ok := n.ConstAttribute(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (n *Node) clone() *Node {
	c := *n
	c.Attributes = n.Attributes.clone()
	c.Props = n.Props.clone()
	c.Params = n.Params.clone()
	return &c
}

func (v BindableValues) clone() BindableValues {
	if v == nil {
		return nil
	}
	c := make(BindableValues, len(v))
	for k, b := range v {
		c[k] = b.Clone()
	}
	return c
}
