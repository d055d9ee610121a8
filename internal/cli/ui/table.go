package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// FieldTable renders the fields configured in a schema, one row per field
// name with its Kind and an optional "(default)" marker for the bareword
// field, the way `sieve schema list` prints its output.
type FieldTable struct {
	writer  io.Writer
	rows    [][3]string
	noColor bool
}

// NewFieldTable creates a field table writing to w.
func NewFieldTable(w io.Writer, noColor bool) *FieldTable {
	return &FieldTable{writer: w, noColor: noColor}
}

// AddField records one field's name, kind, and whether it is the schema's
// default (bareword) field.
func (t *FieldTable) AddField(name, kind string, isDefault bool) {
	marker := ""
	if isDefault {
		marker = "(default)"
	}
	t.rows = append(t.rows, [3]string{name, kind, marker})
}

// Render prints the accumulated fields as an aligned, colorized table.
func (t *FieldTable) Render() {
	if len(t.rows) == 0 {
		fmt.Fprintln(t.writer, "no fields configured")
		return
	}

	nameWidth, kindWidth := len("field"), len("kind")
	for _, row := range t.rows {
		if len(row[0]) > nameWidth {
			nameWidth = len(row[0])
		}
		if len(row[1]) > kindWidth {
			kindWidth = len(row[1])
		}
	}

	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if t.noColor {
		bold.DisableColor()
		gray.DisableColor()
	}

	bold.Fprintf(t.writer, "%s  %s\n", padRight("field", nameWidth), padRight("kind", kindWidth))
	gray.Fprintf(t.writer, "%s  %s\n", strings.Repeat("─", nameWidth), strings.Repeat("─", kindWidth))

	for _, row := range t.rows {
		fmt.Fprintf(t.writer, "%s  %s  %s\n", padRight(row[0], nameWidth), padRight(row[1], kindWidth), row[2])
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
