package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table prints aligned columns under a highlighted header
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{w: w, headers: headers, noColor: noColor}
}

// AddRow appends a row; cells beyond the header count are dropped
func (t *Table) AddRow(cells ...string) {
	if len(cells) > len(t.headers) {
		cells = cells[:len(t.headers)]
	}
	t.rows = append(t.rows, cells)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	head := color.New(color.Bold, color.FgCyan)
	rule := color.New(color.FgHiBlack)
	if t.noColor {
		head.DisableColor()
		rule.DisableColor()
	}

	cols := make([]string, len(widths))
	for i, h := range t.headers {
		cols[i] = head.Sprint(pad(h, widths[i]))
	}
	fmt.Fprintln(t.w, strings.TrimRight(strings.Join(cols, "  "), " "))

	for i, width := range widths {
		cols[i] = rule.Sprint(strings.Repeat("─", width))
	}
	fmt.Fprintln(t.w, strings.Join(cols, "  "))

	for _, row := range t.rows {
		line := make([]string, len(row))
		for i, cell := range row {
			line[i] = pad(cell, widths[i])
		}
		fmt.Fprintln(t.w, strings.TrimRight(strings.Join(line, "  "), " "))
	}
}

// KeyValues prints "key: value" lines with aligned values
func KeyValues(w io.Writer, noColor bool, pairs ...[2]string) {
	width := 0
	for _, p := range pairs {
		width = max(width, utf8.RuneCountInString(p[0])+1)
	}
	cyan := color.New(color.FgCyan)
	if noColor {
		cyan.DisableColor()
	}
	for _, p := range pairs {
		cyan.Fprint(w, pad(p[0]+":", width))
		fmt.Fprintf(w, " %s\n", p[1])
	}
}

// Header prints a highlighted title with an underline
func Header(w io.Writer, title string, noColor bool) {
	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if noColor {
		bold.DisableColor()
		gray.DisableColor()
	}
	bold.Fprintln(w, title)
	gray.Fprintln(w, strings.Repeat("─", utf8.RuneCountInString(title)))
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
