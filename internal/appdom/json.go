package appdom

import (
	"encoding/json"
	"fmt"
)

type documentJSON struct {
	Root  NodeID           `json:"root"`
	Nodes map[NodeID]*Node `json:"nodes"`
}

// MarshalJSON encodes the document as {"root": id, "nodes": {id: node}}.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON{Root: d.root, Nodes: d.nodes})
}

// UnmarshalJSON decodes a document and validates every invariant.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded := &Document{root: raw.Root, nodes: raw.Nodes, newID: d.newID}
	if decoded.nodes == nil {
		decoded.nodes = make(map[NodeID]*Node)
	}
	if decoded.newID == nil {
		decoded.newID = DefaultIDGenerator
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*d = *decoded
	return nil
}

// Parse decodes a JSON document.
func Parse(data []byte, opts ...Option) (*Document, error) {
	d := &Document{}
	for _, opt := range opts {
		opt(d)
	}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decoding app document: %w", err)
	}
	return d, nil
}

// Validate checks every structural invariant of the document.
func (d *Document) Validate() error {
	root, ok := d.nodes[d.root]
	if !ok {
		return invariantf("validate", d.root, "root node missing")
	}
	if root.Type != TypeApp || root.ParentID != "" {
		return invariantf("validate", d.root, "root must be a parentless app node")
	}

	for id, n := range d.nodes {
		if n == nil {
			return invariantf("validate", id, "node is null")
		}
		if n.ID != id {
			return invariantf("validate", id, "keyed under a different id %q", n.ID)
		}
		if !n.Type.Valid() {
			return invariantf("validate", id, "unknown node type %q", n.Type)
		}
		if n.Type == TypeApp && id != d.root {
			return invariantf("validate", id, "more than one app node")
		}
		if err := validateNamespaces(n); err != nil {
			return err
		}
		if n.ParentID == "" {
			if id != d.root {
				return invariantf("validate", id, "detached node")
			}
			continue
		}
		parent, ok := d.nodes[n.ParentID]
		if !ok {
			return invariantf("validate", id, "parent %q missing", n.ParentID)
		}
		if !acceptsChild(parent.Type, n.ParentProp, n.Type) {
			return invariantf("validate", id, "%s cannot hold a %s under %q", parent.Type, n.Type, n.ParentProp)
		}
		if !ValidIndex(n.ParentIndex) {
			return invariantf("validate", id, "invalid parent index %q", n.ParentIndex)
		}
	}

	// Every chain must reach the root within len(nodes) steps.
	for id, n := range d.nodes {
		steps := 0
		for cur := n; cur.ParentID != ""; cur = d.nodes[cur.ParentID] {
			steps++
			if steps > len(d.nodes) {
				return invariantf("validate", id, "parent cycle")
			}
		}
	}

	seen := make(map[NodeID]map[string]NodeID)
	for id, n := range d.nodes {
		if n.Name == "" {
			return invariantf("validate", id, "node has no name")
		}
		scope := d.nameScope(n)
		if seen[scope] == nil {
			seen[scope] = make(map[string]NodeID)
		}
		if other, dup := seen[scope][n.Name]; dup {
			return invariantf("validate", id, "name %q also used by %q", n.Name, other)
		}
		seen[scope][n.Name] = id
	}
	return nil
}
