// Package errors provides structured errors for the page compiler. Every
// error carries a stable code, the document location it is about and an
// optional hint, and renders both for the terminal and as JSON for the
// editor.
package errors

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode is a stable identifier such as GEN602 or DOC701
type ErrorCode string

// ErrorCategory groups codes by the stage that raised them
type ErrorCategory string

const (
	// CategoryCodeGen covers GEN6xx: the document is valid but cannot be emitted
	CategoryCodeGen ErrorCategory = "codegen"
	// CategoryDocument covers DOC7xx: the document is corrupt or inconsistent
	CategoryDocument ErrorCategory = "document"
	// CategoryBinding covers BND8xx: a value the compiler skipped
	CategoryBinding ErrorCategory = "binding"
)

// ErrorSeverity tells whether compilation stopped
type ErrorSeverity string

const (
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
)

// codeInfo is the fixed metadata of a code
type codeInfo struct {
	category ErrorCategory
	severity ErrorSeverity
	title    string
	hint     string
}

var codes = map[ErrorCode]codeInfo{}

// register declares a code once; duplicates are a programming error
func register(code ErrorCode, category ErrorCategory, severity ErrorSeverity, title, hint string) ErrorCode {
	if _, dup := codes[code]; dup {
		panic("errors: duplicate code " + string(code))
	}
	codes[code] = codeInfo{category: category, severity: severity, title: title, hint: hint}
	return code
}

// Location points at the document value an error is about
type Location struct {
	PageID    string `json:"page_id,omitempty"`
	NodeID    string `json:"node_id,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Key       string `json:"key,omitempty"`
}

// String renders the location as node.namespace.key
func (l Location) String() string {
	parts := []string{l.NodeID}
	if l.NodeID == "" {
		parts[0] = "<document>"
	}
	for _, p := range []string{l.Namespace, l.Key} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// CompilerError is a located compile problem
type CompilerError struct {
	Code          ErrorCode     `json:"code"`
	Category      ErrorCategory `json:"category"`
	Severity      ErrorSeverity `json:"severity"`
	Title         string        `json:"title"`
	Message       string        `json:"message"`
	Location      Location      `json:"location"`
	App           string        `json:"app,omitempty"`
	Expected      string        `json:"expected,omitempty"`
	Actual        string        `json:"actual,omitempty"`
	Suggestion    string        `json:"suggestion,omitempty"`
	Documentation string        `json:"documentation,omitempty"`

	cause error
}

// DocsBaseURL prefixes the documentation link of every code
var DocsBaseURL = "https://docs.pagecraft.dev/errors/"

func newError(code ErrorCode, message string, loc Location) *CompilerError {
	info, ok := codes[code]
	if !ok {
		info = codeInfo{category: CategoryCodeGen, severity: SeverityError, title: "compiler error"}
	}
	return &CompilerError{
		Code:          code,
		Category:      info.category,
		Severity:      info.severity,
		Title:         info.title,
		Message:       message,
		Location:      loc,
		Suggestion:    info.hint,
		Documentation: DocsBaseURL + string(code),
	}
}

// Error is the compact one-line form
func (e *CompilerError) Error() string {
	return fmt.Sprintf("%s: %s: %s [%s]", e.Location, e.Severity, e.Message, e.Code)
}

func (e *CompilerError) Unwrap() error {
	return e.cause
}

// Format renders the error for a terminal
func (e *CompilerError) Format() string {
	return FormatError(e)
}

// ToJSON renders the error for the editor
func (e *CompilerError) ToJSON() (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WithApp sets the app being compiled
func (e *CompilerError) WithApp(app string) *CompilerError {
	e.App = app
	return e
}

// WithPage sets the page being compiled
func (e *CompilerError) WithPage(pageID string) *CompilerError {
	e.Location.PageID = pageID
	return e
}

func (e *CompilerError) WithExpected(expected string) *CompilerError {
	e.Expected = expected
	return e
}

func (e *CompilerError) WithActual(actual string) *CompilerError {
	e.Actual = actual
	return e
}

// WithSuggestion replaces the default hint of the code
func (e *CompilerError) WithSuggestion(suggestion string) *CompilerError {
	e.Suggestion = suggestion
	return e
}

// WithCause records the error that triggered this one
func (e *CompilerError) WithCause(err error) *CompilerError {
	e.cause = err
	return e
}

// ErrorList collects the problems of one compile
type ErrorList []*CompilerError

func (el ErrorList) Error() string {
	return FormatErrorList(el)
}

// Errors returns the entries that stopped compilation
func (el ErrorList) Errors() ErrorList {
	return el.bySeverity(SeverityError)
}

// Warnings returns the entries the compiler recovered from
func (el ErrorList) Warnings() ErrorList {
	return el.bySeverity(SeverityWarning)
}

func (el ErrorList) bySeverity(s ErrorSeverity) ErrorList {
	var out ErrorList
	for _, e := range el {
		if e.Severity == s {
			out = append(out, e)
		}
	}
	return out
}

// Err returns the list as an error when it holds at least one error-level
// entry, nil otherwise
func (el ErrorList) Err() error {
	if len(el.Errors()) == 0 {
		return nil
	}
	return el
}

// Sorted orders entries by page, node and code
func (el ErrorList) Sorted() ErrorList {
	out := append(ErrorList(nil), el...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Location.PageID != b.Location.PageID {
			return a.Location.PageID < b.Location.PageID
		}
		if a.Location.NodeID != b.Location.NodeID {
			return a.Location.NodeID < b.Location.NodeID
		}
		return a.Code < b.Code
	})
	return out
}

// ToJSON renders all entries as a JSON array
func (el ErrorList) ToJSON() (string, error) {
	if el == nil {
		el = ErrorList{}
	}
	data, err := json.MarshalIndent(el, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
