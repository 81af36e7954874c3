package appdom

import (
	"fmt"
	"strings"
)

const indexDigits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ValidIndex reports whether k can order a sibling: it is non-empty, uses
// only index digits and does not end in the zero digit.
func ValidIndex(k string) bool {
	if k == "" || k[len(k)-1] == indexDigits[0] {
		return false
	}
	for i := 0; i < len(k); i++ {
		if strings.IndexByte(indexDigits, k[i]) < 0 {
			return false
		}
	}
	return true
}

// KeyBetween returns a fractional index strictly between a and b. An empty
// a means "before everything", an empty b means "after everything". Keys
// never end in the zero digit, so a key can always be found between any two
// valid keys with a < b.
func KeyBetween(a, b string) (string, error) {
	if a != "" && !ValidIndex(a) {
		return "", fmt.Errorf("invalid index %q", a)
	}
	if b != "" && !ValidIndex(b) {
		return "", fmt.Errorf("invalid index %q", b)
	}
	if a != "" && b != "" && a >= b {
		return "", fmt.Errorf("index %q is not below %q", a, b)
	}
	return midpoint(a, b, b != ""), nil
}

// keyAfter is KeyBetween(a, "") for a generated key.
func keyAfter(a string) string {
	return midpoint(a, "", false)
}

func midpoint(a, b string, hasB bool) string {
	if hasB {
		n := 0
		for n < len(b) && digitAt(a, n) == b[n] {
			n++
		}
		if n > 0 {
			rest := ""
			if n < len(a) {
				rest = a[n:]
			}
			return b[:n] + midpoint(rest, b[n:], true)
		}
	}

	da := 0
	if a != "" {
		da = strings.IndexByte(indexDigits, a[0])
	}
	db := len(indexDigits)
	if hasB {
		db = strings.IndexByte(indexDigits, b[0])
	}
	if db-da > 1 {
		return string(indexDigits[(da+db+1)/2])
	}
	if hasB && len(b) > 1 {
		return b[:1]
	}
	rest := ""
	if len(a) > 1 {
		rest = a[1:]
	}
	return string(indexDigits[da]) + midpoint(rest, "", false)
}

func digitAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return indexDigits[0]
}
