// Package components resolves element component ids to their import
// location and argument contract. Built-in components ship with the
// runtime; code components are declared by codeComponent nodes.
package components

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/core"
)

// ErrUnknownComponent is returned when a component id resolves to nothing.
var ErrUnknownComponent = errors.New("unknown component")

// Definition describes where a component is imported from and what it accepts.
type Definition struct {
	ID            string
	Module        string
	Export        string
	CodeComponent bool
	Config        core.ComponentConfig
}

// Catalog resolves component ids in the context of a document.
type Catalog interface {
	Resolve(doc *appdom.Document, componentID string) (Definition, error)
}

// Registry is the default Catalog: the built-ins plus the document's code
// components.
type Registry struct {
	builtins map[string]Definition
}

// NewRegistry returns a registry holding the built-ins and any extra definitions.
func NewRegistry(extra ...Definition) *Registry {
	r := &Registry{builtins: make(map[string]Definition)}
	for _, d := range Builtins() {
		r.builtins[d.ID] = d
	}
	for _, d := range extra {
		r.builtins[d.ID] = d
	}
	return r
}

// Resolve returns the definition for componentID.
func (r *Registry) Resolve(doc *appdom.Document, componentID string) (Definition, error) {
	if name, ok := strings.CutPrefix(componentID, core.CodeComponentPrefix); ok {
		return resolveCodeComponent(doc, name)
	}
	if d, ok := r.builtins[componentID]; ok {
		return d, nil
	}
	return Definition{}, fmt.Errorf("%w %q", ErrUnknownComponent, componentID)
}

// IDs returns the ids of the registered built-ins in ascending order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.builtins))
	for id := range r.builtins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func resolveCodeComponent(doc *appdom.Document, name string) (Definition, error) {
	if doc == nil {
		return Definition{}, fmt.Errorf("%w %q", ErrUnknownComponent, core.CodeComponentPrefix+name)
	}
	for _, n := range doc.Children(doc.App(), appdom.ChildCodeComponents) {
		if n.Name != name {
			continue
		}
		return Definition{
			ID:            core.CodeComponentPrefix + name,
			Module:        core.CodeComponentModule(name),
			Export:        "default",
			CodeComponent: true,
			Config:        core.ComponentConfig{ArgTypes: codeComponentArgTypes(n)},
		}, nil
	}
	return Definition{}, fmt.Errorf("%w %q", ErrUnknownComponent, core.CodeComponentPrefix+name)
}

// codeComponentArgTypes reads the argTypes attribute of a codeComponent node.
func codeComponentArgTypes(n *appdom.Node) core.ArgTypeDefinitions {
	raw, ok := n.ConstAttribute("argTypes")
	if !ok {
		return nil
	}
	return ParseArgTypes(raw)
}

// ParseArgTypes reads an argTypes declaration such as
// {"prop": {"type": "string", "defaultValue": ...}} in name order. Anything
// that is not an object yields nil.
func ParseArgTypes(raw any) core.ArgTypeDefinitions {
	decl, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(decl))
	for name := range decl {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make(core.ArgTypeDefinitions, 0, len(names))
	for _, name := range names {
		def := core.ArgTypeDefinition{Name: name, TypeDef: core.PropValueType{Type: core.TypeString}}
		if argDecl, ok := decl[name].(map[string]any); ok {
			if typ, ok := argDecl["type"].(string); ok {
				def.TypeDef.Type = typ
			}
			def.DefaultValue = argDecl["defaultValue"]
			if def.TypeDef.Type == core.TypeElement {
				def.Control.Type = core.ControlSlots
			}
		}
		defs = append(defs, def)
	}
	return defs
}
