// Package ui formats terminal output for the pagecraft CLI.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a headline with optional detail, suggestions and hints
//
//	❌ PAGE NOT FOUND: Cannot find page 'hom' in app 'shop'.
//
//	   Did you mean: home?
//
//	   → List pages: pagecraft inspect shop
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Detail      string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

func (m Message) palette() (header, body *color.Color, symbol string) {
	switch m.Level {
	case LevelWarning:
		header, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "⚠️"
	case LevelInfo:
		header, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "ℹ️"
	default:
		header, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "❌"
	}
	if m.NoColor {
		header.DisableColor()
		body.DisableColor()
	}
	return header, body, symbol
}

// String renders the message
func (m Message) String() string {
	var b strings.Builder
	header, body, symbol := m.palette()

	if m.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	if m.Detail != "" {
		b.WriteString("\n")
		for _, line := range strings.Split(strings.TrimRight(m.Detail, "\n"), "\n") {
			body.Fprintf(&b, "   %s\n", line)
		}
	}

	if len(m.Suggestions) > 0 {
		yellow := color.New(color.FgYellow)
		if m.NoColor {
			yellow.DisableColor()
		}
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Hints) > 0 {
		cyan := color.New(color.FgCyan)
		if m.NoColor {
			cyan.DisableColor()
		}
		b.WriteString("\n")
		for _, hint := range m.Hints {
			cyan.Fprintf(&b, "   → %s\n", hint)
		}
	}

	return b.String()
}

// Write writes the rendered message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.String())
}

// Success renders a one-line success message
func Success(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success line to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, Success(message, noColor))
}

// PageNotFound reports an unknown page of an app, suggesting close names
func PageNotFound(appID, page string, pages []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "page not found",
		Problem:     fmt.Sprintf("Cannot find page '%s' in app '%s'.", page, appID),
		Suggestions: Suggest(page, pages, DefaultMaxDistance, DefaultMaxSuggestions),
		Hints:       []string{fmt.Sprintf("List pages: pagecraft inspect %s", appID)},
		NoColor:     noColor,
	}
}

// AppNotFound reports an app with no stored document
func AppNotFound(appID, version string, apps []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "app not found",
		Problem:     fmt.Sprintf("No document stored for '%s' (%s).", appID, version),
		Suggestions: Suggest(appID, apps, DefaultMaxDistance, DefaultMaxSuggestions),
		Hints:       []string{"Create one: pagecraft new <app>"},
		NoColor:     noColor,
	}
}

// CompileFailed reports a page compile failure
func CompileFailed(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "compile failed",
		Problem: err.Error(),
		Hints:   []string{"Inspect the document: pagecraft inspect <app> --page <page>"},
		NoColor: noColor,
	}
}

// ConfigProblem reports an invalid pagecraft.yml
func ConfigProblem(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "configuration error",
		Problem: err.Error(),
		Hints:   []string{"View config: cat pagecraft.yml"},
		NoColor: noColor,
	}
}

// Warning renders a warning line
func Warning(message string, noColor bool) string {
	return Message{Level: LevelWarning, Problem: message, NoColor: noColor}.String()
}

// Info renders an info line
func Info(message string, noColor bool) string {
	return Message{Level: LevelInfo, Problem: message, NoColor: noColor}.String()
}
