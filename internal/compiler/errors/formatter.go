package errors

import (
	"fmt"
	"strings"
)

// FormatError renders e as an indented block:
//
//	❌ GEN602 undeclared prop (shop, page p1)
//	   at n7.props.colour
//	   Component 'Button' does not declare prop 'colour'
func FormatError(e *CompilerError) string {
	var b strings.Builder

	var where []string
	if e.App != "" {
		where = append(where, e.App)
	}
	if e.Location.PageID != "" {
		where = append(where, "page "+e.Location.PageID)
	}
	fmt.Fprintf(&b, "%s %s %s", marker(e.Severity), e.Code, e.Title)
	if len(where) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(where, ", "))
	}
	b.WriteString("\n")

	line := func(prefix, value string) {
		if value != "" {
			fmt.Fprintf(&b, "   %s%s\n", prefix, value)
		}
	}
	line("at ", e.Location.String())
	line("", e.Message)
	line("expected: ", e.Expected)
	line("found: ", e.Actual)
	line("💡 ", e.Suggestion)
	line("docs: ", e.Documentation)
	return b.String()
}

// FormatErrorList renders a summary line and every entry, errors first
func FormatErrorList(list ErrorList) string {
	if len(list) == 0 {
		return "no errors"
	}
	errs, warns := list.Errors(), list.Warnings()

	var b strings.Builder
	fmt.Fprintf(&b, "%d error(s), %d warning(s)\n", len(errs), len(warns))
	for _, e := range append(errs.Sorted(), warns.Sorted()...) {
		b.WriteString("\n")
		b.WriteString(FormatError(e))
	}
	return b.String()
}

func marker(s ErrorSeverity) string {
	if s == SeverityWarning {
		return "⚠️ "
	}
	return "❌"
}
