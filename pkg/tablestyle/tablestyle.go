// Package tablestyle holds the table look shared by the text output of the
// CLI commands.
package tablestyle

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var (
	CustomCleanStyle = table.Style{
		Name: "CustomClean",
		Box:  table.BoxStyle{PaddingRight: " "},
		Format: table.FormatOptions{
			Footer: text.FormatUpper,
			Header: text.FormatUpper,
			Row:    text.FormatDefault,
		},
		Options: table.Options{
			DrawBorder:      false,
			SeparateColumns: false,
			SeparateFooter:  false,
			SeparateHeader:  false,
			SeparateRows:    false,
		},
	}
)

// New returns a table writer in CustomCleanStyle with the given header row.
func New(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetStyle(CustomCleanStyle)
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}
