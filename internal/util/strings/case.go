package strings

import (
	"fmt"
	"strings"
	"unicode"
)

// SplitWords breaks s into words at every rune that is not a letter or a
// digit. Case boundaries inside a word are kept.
func SplitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// CamelCase joins the words of every part in camelCase. The first word keeps
// its original casing; every later word gets an upper-case first rune
// (textField + value -> textFieldValue, set + textField -> setTextField).
func CamelCase(parts ...string) string {
	var b strings.Builder
	first := true
	for _, part := range parts {
		for _, word := range SplitWords(part) {
			if first {
				b.WriteString(word)
				first = false
				continue
			}
			runes := []rune(word)
			runes[0] = unicode.ToUpper(runes[0])
			b.WriteString(string(runes))
		}
	}
	return b.String()
}

// Identifier maps s one-to-one onto identifier characters. ASCII letters and
// digits are kept, except a leading digit. Every other rune becomes _<hex>_.
// A leading upper-case letter gets a "_" prefix, so UpperFirst of two
// different results never collides.
func Identifier(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case i == 0 && r >= 'A' && r <= 'Z':
			b.WriteByte('_')
			b.WriteRune(r)
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r))):
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_%x_", r)
		}
	}
	return b.String()
}

// UpperFirst upper-cases the first rune of s.
func UpperFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
