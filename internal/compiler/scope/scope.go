// Package scope allocates identifiers for generated page modules.
package scope

import (
	"strconv"
	"unicode"

	strutil "github.com/pagecraft-dev/pagecraft/internal/util/strings"
)

var reservedWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"arguments", "await", "break", "case", "catch", "class", "const", "continue",
		"debugger", "default", "delete", "do", "else", "enum", "eval", "export",
		"extends", "false", "finally", "for", "function", "if", "implements",
		"import", "in", "instanceof", "interface", "let", "new", "null", "package",
		"private", "protected", "public", "return", "static", "super", "switch",
		"this", "throw", "true", "try", "typeof", "var", "void", "while", "with",
		"yield", "undefined", "NaN", "Infinity",
	} {
		reservedWords[w] = struct{}{}
	}
}

// IsReserved reports whether name cannot be used as a binding.
func IsReserved(name string) bool {
	_, ok := reservedWords[name]
	return ok
}

// Scope is a set of allocated identifiers, optionally nested in a parent.
// Identifiers are never released.
type Scope struct {
	parent   *Scope
	bindings map[string]struct{}
}

// New creates a scope below parent with the given names already taken.
func New(parent *Scope, reserved ...string) *Scope {
	s := &Scope{parent: parent, bindings: make(map[string]struct{})}
	for _, name := range reserved {
		s.bindings[name] = struct{}{}
	}
	return s
}

// Has reports whether name is taken in s or any enclosing scope.
func (s *Scope) Has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.bindings[name]; ok {
			return true
		}
	}
	return false
}

// CreateUniqueBinding returns an identifier derived from suggested that has
// not been returned before. Collisions get a numeric suffix starting at 2.
func (s *Scope) CreateUniqueBinding(suggested string) string {
	base := Sanitize(suggested)
	if !IsReserved(base) && !s.Has(base) {
		s.bindings[base] = struct{}{}
		return base
	}
	for i := 2; ; i++ {
		name := base + strconv.Itoa(i)
		if !s.Has(name) {
			s.bindings[name] = struct{}{}
			return name
		}
	}
}

// Sanitize turns an arbitrary string into a valid identifier. Invalid
// characters split words which are joined in camelCase.
func Sanitize(suggested string) string {
	if isIdentifier(suggested) {
		return suggested
	}
	name := strutil.CamelCase(suggested)
	if name == "" {
		return "_"
	}
	valid := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '_' || r == '$' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return "_"
	}
	if unicode.IsDigit(valid[0]) {
		valid = append([]rune{'_'}, valid...)
	}
	return string(valid)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r < unicode.MaxASCII && unicode.IsLetter(r):
		case i > 0 && r < unicode.MaxASCII && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
