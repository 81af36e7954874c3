// Package bindings parses bound-expression templates and renders them as
// expression text.
package bindings

import (
	"strings"
)

// PartKind tags a template part.
type PartKind int

const (
	PartText PartKind = iota
	PartRef
)

// Part is a literal text run or a {{ ref }} reference.
type Part struct {
	Kind PartKind
	Text string
}

// Parse splits a template into text and reference parts. An unterminated
// or empty {{ }} is kept as text.
func Parse(template string) []Part {
	var parts []Part
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			parts = append(parts, Part{Kind: PartText, Text: text.String()})
			text.Reset()
		}
	}

	rest := template
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			text.WriteString(rest)
			break
		}
		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			text.WriteString(rest)
			break
		}
		ref := strings.TrimSpace(rest[open+2 : open+2+end])
		if ref == "" {
			text.WriteString(rest[:open+4+end])
			rest = rest[open+4+end:]
			continue
		}
		text.WriteString(rest[:open])
		flush()
		parts = append(parts, Part{Kind: PartRef, Text: ref})
		rest = rest[open+4+end:]
	}
	flush()
	return parts
}

// Format renders parts as expression text. A single reference in the
// default format becomes a bare expression; everything else becomes a
// template literal.
func Format(parts []Part, stringLiteral bool, resolve func(ref string) string) string {
	if !stringLiteral && len(parts) == 1 && parts[0].Kind == PartRef {
		return resolve(parts[0].Text)
	}
	var b strings.Builder
	b.WriteByte('`')
	for _, p := range parts {
		if p.Kind == PartRef {
			b.WriteString("${")
			b.WriteString(resolve(p.Text))
			b.WriteString("}")
			continue
		}
		b.WriteString(escapeTemplate(p.Text))
	}
	b.WriteByte('`')
	return b.String()
}

// StateRef resolves a reference to a read from the state object.
func StateRef(ref string) string {
	return "state." + ref
}

var templateEscaper = strings.NewReplacer("\\", "\\\\", "`", "\\`", "${", "\\${")

func escapeTemplate(s string) string {
	return templateEscaper.Replace(s)
}
