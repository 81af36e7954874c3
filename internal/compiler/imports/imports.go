// Package imports collects the import statements of a generated module.
package imports

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/pagecraft-dev/pagecraft/internal/compiler/scope"
)

// Special imported names.
const (
	Namespace = "*"
	Default   = "default"
)

// ErrSealed is returned when a new import is requested after Seal.
var ErrSealed = errors.New("import registry is sealed")

type named struct {
	imported string
	alias    string
}

type module struct {
	source    string
	namespace string
	dflt      string
	named     []named
}

// Registry deduplicates imports by (source, imported) and allocates their
// local names from a shared scope.
type Registry struct {
	scope   *scope.Scope
	modules []*module
	bySrc   map[string]*module
	aliases map[[2]string]string
	sealed  bool
}

// New creates a registry allocating names from s.
func New(s *scope.Scope) *Registry {
	return &Registry{
		scope:   s,
		bySrc:   make(map[string]*module),
		aliases: make(map[[2]string]string),
	}
}

// Add registers an import of imported from source and returns its local
// name. imported is a symbol name, Default or Namespace. Requesting the same
// pair again returns the same name.
func (r *Registry) Add(source, imported, suggested string) (string, error) {
	key := [2]string{source, imported}
	if alias, ok := r.aliases[key]; ok {
		return alias, nil
	}
	if r.sealed {
		return "", fmt.Errorf("%w: %s from %q", ErrSealed, imported, source)
	}
	if suggested == "" {
		suggested = suggestName(source, imported)
	}
	alias := r.scope.CreateUniqueBinding(suggested)
	r.aliases[key] = alias

	m, ok := r.bySrc[source]
	if !ok {
		m = &module{source: source}
		r.bySrc[source] = m
		r.modules = append(r.modules, m)
	}
	switch imported {
	case Namespace:
		m.namespace = alias
	case Default:
		m.dflt = alias
	default:
		m.named = append(m.named, named{imported: imported, alias: alias})
	}
	return alias, nil
}

// MustAdd is Add for registries that are known not to be sealed.
func (r *Registry) MustAdd(source, imported, suggested string) string {
	alias, err := r.Add(source, imported, suggested)
	if err != nil {
		panic(err)
	}
	return alias
}

// Seal rejects any further new imports.
func (r *Registry) Seal() {
	r.sealed = true
}

// Render returns the import block. Modules appear in the order they were
// first requested; a namespace import gets its own statement.
func (r *Registry) Render() string {
	var b strings.Builder
	for _, m := range r.modules {
		if m.namespace != "" {
			fmt.Fprintf(&b, "import * as %s from %q;\n", m.namespace, m.source)
		}
		if m.dflt == "" && len(m.named) == 0 {
			continue
		}
		var clauses []string
		if m.dflt != "" {
			clauses = append(clauses, m.dflt)
		}
		if len(m.named) > 0 {
			specs := make([]string, len(m.named))
			for i, n := range m.named {
				if n.alias == n.imported {
					specs[i] = n.imported
				} else {
					specs[i] = n.imported + " as " + n.alias
				}
			}
			clauses = append(clauses, "{ "+strings.Join(specs, ", ")+" }")
		}
		fmt.Fprintf(&b, "import %s from %q;\n", strings.Join(clauses, ", "), m.source)
	}
	return b.String()
}

func suggestName(source, imported string) string {
	if imported != Namespace && imported != Default {
		return imported
	}
	base := path.Base(source)
	base = strings.TrimSuffix(base, path.Ext(base))
	return base
}
