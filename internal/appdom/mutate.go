package appdom

import (
	"strconv"
	"strings"
	"unicode"
)

// NodeInit holds the initial content of a node created with CreateNode.
type NodeInit struct {
	Name       string
	Attributes BindableValues
	Props      BindableValues
	Params     BindableValues
}

// CreateNode builds a detached node of type t with a fresh id and a name
// that is unique across the document. Attach it with AddNode or InsertNode.
func (d *Document) CreateNode(t NodeType, init NodeInit) (*Node, error) {
	if !t.Valid() || t == TypeApp {
		return nil, invariantf("create", "", "cannot create node of type %q", t)
	}
	n := &Node{
		Type:       t,
		Attributes: init.Attributes.clone(),
		Props:      init.Props.clone(),
		Params:     init.Params.clone(),
	}
	if err := validateNamespaces(n); err != nil {
		return nil, err
	}
	candidate := init.Name
	if candidate == "" {
		candidate = string(t)
	}
	taken := d.allNames()
	if t.PageScoped() {
		taken[ReservedPageName] = struct{}{}
	}
	n.Name = ProposeName(candidate, taken)
	n.ID = d.freshID()
	return n, nil
}

// AddNode attaches a detached node as the last child of parent under prop.
func (d *Document) AddNode(n *Node, parentID NodeID, prop string) error {
	return d.InsertNode(n, parentID, prop, "")
}

// InsertNode attaches a detached node under parent, before the sibling
// beforeID, or last when beforeID is empty. On success the document owns n:
// later mutations are visible through the caller's pointer.
func (d *Document) InsertNode(n *Node, parentID NodeID, prop string, beforeID NodeID) error {
	if n == nil || n.ID == "" {
		return invariantf("add", "", "node has no id")
	}
	if _, exists := d.nodes[n.ID]; exists {
		return invariantf("add", n.ID, "id already present in document")
	}
	if err := validateNamespaces(n); err != nil {
		return err
	}
	parent, err := d.Node(parentID)
	if err != nil {
		return err
	}
	if !acceptsChild(parent.Type, prop, n.Type) {
		return invariantf("add", n.ID, "%s cannot hold a %s under %q", parent.Type, n.Type, prop)
	}
	if n.Name == "" {
		return invariantf("add", n.ID, "node has no name")
	}
	if n.Type.PageScoped() && n.Name == ReservedPageName {
		return invariantf("add", n.ID, "name %q is reserved", n.Name)
	}
	scope := d.scopeUnder(parent, n)
	if _, taken := d.namesIn(scope, "")[n.Name]; taken {
		return invariantf("add", n.ID, "name %q is already used", n.Name)
	}
	index, err := d.indexBefore(parent.ID, prop, beforeID, "")
	if err != nil {
		return err
	}
	n.Attributes = n.Attributes.clone()
	n.Props = n.Props.clone()
	n.Params = n.Params.clone()
	n.ParentID = parent.ID
	n.ParentProp = prop
	n.ParentIndex = index
	d.nodes[n.ID] = n
	return nil
}

// MoveNode reparents or reorders an attached node. The node lands before
// beforeID, or last when beforeID is empty.
func (d *Document) MoveNode(id, parentID NodeID, prop string, beforeID NodeID) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if id == d.root {
		return invariantf("move", id, "cannot move the app root")
	}
	parent, err := d.Node(parentID)
	if err != nil {
		return err
	}
	for cur := parent; cur != nil; cur = d.Parent(cur) {
		if cur.ID == id {
			return invariantf("move", id, "cannot move a node below itself")
		}
	}
	if !acceptsChild(parent.Type, prop, n.Type) {
		return invariantf("move", id, "%s cannot hold a %s under %q", parent.Type, n.Type, prop)
	}

	moving := append([]*Node{n}, d.Descendants(n)...)
	movingIDs := make(map[NodeID]struct{}, len(moving))
	for _, m := range moving {
		movingIDs[m.ID] = struct{}{}
	}
	oldScope := d.nameScope(n)
	newScope := d.scopeUnder(parent, n)
	if oldScope != newScope {
		taken := make(map[string]struct{})
		for _, other := range d.nodes {
			if _, isMoving := movingIDs[other.ID]; !isMoving && d.nameScope(other) == newScope {
				taken[other.Name] = struct{}{}
			}
		}
		for _, m := range moving {
			if m.Type == TypePage && m.ID != n.ID {
				continue
			}
			if _, clash := taken[m.Name]; clash {
				return invariantf("move", id, "name %q is already used in the target page", m.Name)
			}
		}
	}

	index, err := d.indexBefore(parent.ID, prop, beforeID, id)
	if err != nil {
		return err
	}
	n.ParentID = parent.ID
	n.ParentProp = prop
	n.ParentIndex = index
	return nil
}

// scopeUnder returns the naming scope n would have as a child of parent.
func (d *Document) scopeUnder(parent, n *Node) NodeID {
	if n.Type == TypePage {
		return ""
	}
	if p := d.PageOf(parent); p != nil {
		return p.ID
	}
	return ""
}

// indexBefore computes a parent index placing a node before beforeID among
// the siblings under (parentID, prop), ignoring the node skip.
func (d *Document) indexBefore(parentID NodeID, prop string, beforeID, skip NodeID) (string, error) {
	var siblings []*Node
	for _, c := range d.nodes {
		if c.ParentID == parentID && c.ParentProp == prop && c.ID != skip {
			siblings = append(siblings, c)
		}
	}
	sortSiblings(siblings)

	pos := len(siblings)
	if beforeID != "" {
		pos = -1
		for i, s := range siblings {
			if s.ID == beforeID {
				pos = i
				break
			}
		}
		if pos < 0 {
			return "", invariantf("insert", beforeID, "not a sibling under %q", prop)
		}
	}

	key, err := keyAt(siblings, pos)
	if err != nil {
		// Out of order or malformed sibling keys: renumber and try once more.
		rebalance(siblings)
		return keyAt(siblings, pos)
	}
	return key, nil
}

// keyAt returns an index between siblings[pos-1] and siblings[pos].
func keyAt(siblings []*Node, pos int) (string, error) {
	lower, upper := "", ""
	if pos > 0 {
		lower = siblings[pos-1].ParentIndex
	}
	if pos < len(siblings) {
		upper = siblings[pos].ParentIndex
	}
	return KeyBetween(lower, upper)
}

// rebalance assigns fresh increasing indexes to siblings in their current order.
func rebalance(siblings []*Node) {
	prev := ""
	for _, s := range siblings {
		prev = keyAfter(prev)
		s.ParentIndex = prev
	}
}

// SetNodeName renames a node. The name must be unique within its page.
func (d *Document) SetNodeName(id NodeID, name string) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return invariantf("rename", id, "name cannot be empty")
	}
	if n.Type.PageScoped() && name == ReservedPageName {
		return invariantf("rename", id, "name %q is reserved", name)
	}
	if _, taken := d.namesIn(d.nameScope(n), id)[name]; taken {
		return invariantf("rename", id, "name %q is already used", name)
	}
	n.Name = name
	return nil
}

// SetNamespacedProp sets key in namespace ns of a node. A nil value
// removes the key.
func (d *Document) SetNamespacedProp(id NodeID, ns Namespace, key string, value *BindableValue) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if !n.Type.HasNamespace(ns) {
		return invariantf("set", id, "%s nodes have no %s namespace", n.Type, ns)
	}
	target := n.namespacePtr(ns)
	if value == nil {
		delete(*target, key)
		return nil
	}
	if err := value.Validate(); err != nil {
		return invariantf("set", id, "%s.%s: %v", ns, key, err)
	}
	if *target == nil {
		*target = make(BindableValues)
	}
	(*target)[key] = value.Clone()
	return nil
}

// RemoveNode detaches a node and deletes it together with its descendants.
func (d *Document) RemoveNode(id NodeID) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if id == d.root {
		return invariantf("remove", id, "cannot remove the app root")
	}
	doomed := d.Descendants(n)
	for _, c := range doomed {
		delete(d.nodes, c.ID)
	}
	delete(d.nodes, id)
	return nil
}

// ProposeName returns the document-wide unique variant of candidate.
func (d *Document) ProposeName(candidate string) string {
	return ProposeName(candidate, d.allNames())
}

// ProposeName returns candidate when it is not in existing, otherwise the
// candidate with its trailing digits replaced by the first free counter.
func ProposeName(candidate string, existing map[string]struct{}) string {
	if _, taken := existing[candidate]; !taken {
		return candidate
	}
	base := strings.TrimRightFunc(candidate, unicode.IsDigit)
	if base == "" {
		base = candidate
	}
	for i := 1; ; i++ {
		name := base + strconv.Itoa(i)
		if _, taken := existing[name]; !taken {
			return name
		}
	}
}

func validateNamespaces(n *Node) error {
	for _, ns := range []Namespace{NamespaceAttributes, NamespaceProps, NamespaceParams} {
		values := n.Namespace(ns)
		if len(values) == 0 {
			continue
		}
		if !n.Type.HasNamespace(ns) {
			return invariantf("validate", n.ID, "%s nodes have no %s namespace", n.Type, ns)
		}
		for _, key := range values.SortedKeys() {
			if err := values[key].Validate(); err != nil {
				return invariantf("validate", n.ID, "%s.%s: %v", ns, key, err)
			}
		}
	}
	return nil
}
