package appdom

import (
	"sort"

	"github.com/google/uuid"
)

// IDGenerator produces fresh node ids.
type IDGenerator func() NodeID

// DefaultIDGenerator returns random UUID-based ids.
func DefaultIDGenerator() NodeID {
	return NodeID(uuid.NewString())
}

// Document is the App Document. The zero value is not usable; create
// documents with New or by decoding JSON.
//
// Nodes returned by read operations must be treated as read-only; change
// them through the mutation methods so the invariants are checked.
type Document struct {
	root  NodeID
	nodes map[NodeID]*Node
	newID IDGenerator
}

// Option configures a Document.
type Option func(*Document)

// WithIDGenerator replaces the id source. Used by tests for stable ids.
func WithIDGenerator(gen IDGenerator) Option {
	return func(d *Document) {
		d.newID = gen
	}
}

// New creates a document holding only an app root.
func New(opts ...Option) *Document {
	d := &Document{
		nodes: make(map[NodeID]*Node),
		newID: DefaultIDGenerator,
	}
	for _, opt := range opts {
		opt(d)
	}
	root := &Node{ID: d.freshID(), Type: TypeApp, Name: "Application"}
	d.root = root.ID
	d.nodes[root.ID] = root
	return d
}

func (d *Document) freshID() NodeID {
	for {
		id := d.newID()
		if _, taken := d.nodes[id]; !taken && id != "" {
			return id
		}
	}
}

// RootID returns the id of the app node.
func (d *Document) RootID() NodeID {
	return d.root
}

// App returns the app root node.
func (d *Document) App() *Node {
	return d.nodes[d.root]
}

// Len returns the number of nodes in the document.
func (d *Document) Len() int {
	return len(d.nodes)
}

// Node looks up a node by id.
func (d *Document) Node(id NodeID) (*Node, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	return n, nil
}

// NodeOfType looks up a node and checks its type.
func (d *Document) NodeOfType(id NodeID, t NodeType) (*Node, error) {
	n, err := d.Node(id)
	if err != nil {
		return nil, err
	}
	if n.Type != t {
		return nil, &TypeMismatchError{ID: id, Want: t, Got: n.Type}
	}
	return n, nil
}

// Parent returns the parent of n, or nil for the root.
func (d *Document) Parent(n *Node) *Node {
	if n.ParentID == "" {
		return nil
	}
	return d.nodes[n.ParentID]
}

// Children returns the ordered children of n under prop.
func (d *Document) Children(n *Node, prop string) []*Node {
	var out []*Node
	for _, c := range d.nodes {
		if c.ParentID == n.ID && c.ParentProp == prop {
			out = append(out, c)
		}
	}
	sortSiblings(out)
	return out
}

// ChildNodes returns every child namespace of n with its ordered children.
func (d *Document) ChildNodes(n *Node) map[string][]*Node {
	out := make(map[string][]*Node)
	for _, c := range d.nodes {
		if c.ParentID == n.ID {
			out[c.ParentProp] = append(out[c.ParentProp], c)
		}
	}
	for _, list := range out {
		sortSiblings(list)
	}
	return out
}

// ChildProps returns the child namespaces of n in ascending order.
func (d *Document) ChildProps(n *Node) []string {
	seen := make(map[string]struct{})
	for _, c := range d.nodes {
		if c.ParentID == n.ID {
			seen[c.ParentProp] = struct{}{}
		}
	}
	props := make([]string, 0, len(seen))
	for p := range seen {
		props = append(props, p)
	}
	sort.Strings(props)
	return props
}

// Descendants returns every node below n, depth first. Child namespaces
// are visited in ascending name order and siblings in index order.
func (d *Document) Descendants(n *Node) []*Node {
	var out []*Node
	d.walk(n, func(c *Node) {
		out = append(out, c)
	})
	return out
}

func (d *Document) walk(n *Node, visit func(*Node)) {
	children := d.ChildNodes(n)
	for _, prop := range d.ChildProps(n) {
		for _, c := range children[prop] {
			visit(c)
			d.walk(c, visit)
		}
	}
}

// PageOf returns the page containing n, n itself when it is a page, or nil.
func (d *Document) PageOf(n *Node) *Node {
	for cur := n; cur != nil; cur = d.Parent(cur) {
		if cur.Type == TypePage {
			return cur
		}
	}
	return nil
}

// Pages returns the app's pages in order.
func (d *Document) Pages() []*Node {
	return d.Children(d.App(), ChildPages)
}

// FindByName returns the node named name within the naming scope of
// scopeNode, or nil.
func (d *Document) FindByName(scopeNode *Node, name string) *Node {
	scope := d.nameScope(scopeNode)
	for _, n := range d.nodes {
		if n.Name == name && d.nameScope(n) == scope {
			return n
		}
	}
	return nil
}

// nameScope returns the page that scopes n's name. Pages and nodes outside
// any page share the app scope, identified by the empty id.
func (d *Document) nameScope(n *Node) NodeID {
	if n.Type == TypePage {
		return ""
	}
	if p := d.PageOf(n); p != nil {
		return p.ID
	}
	return ""
}

func (d *Document) namesIn(scope NodeID, except NodeID) map[string]struct{} {
	names := make(map[string]struct{})
	for _, n := range d.nodes {
		if n.ID != except && d.nameScope(n) == scope {
			names[n.Name] = struct{}{}
		}
	}
	return names
}

func (d *Document) allNames() map[string]struct{} {
	names := make(map[string]struct{}, len(d.nodes))
	for _, n := range d.nodes {
		names[n.Name] = struct{}{}
	}
	return names
}

func sortSiblings(list []*Node) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].ParentIndex != list[j].ParentIndex {
			return list[i].ParentIndex < list[j].ParentIndex
		}
		return list[i].ID < list[j].ID
	})
}

// Clone returns a deep copy of the document sharing the id generator.
func (d *Document) Clone() *Document {
	c := &Document{
		root:  d.root,
		nodes: make(map[NodeID]*Node, len(d.nodes)),
		newID: d.newID,
	}
	for id, n := range d.nodes {
		c.nodes[id] = n.clone()
	}
	return c
}
