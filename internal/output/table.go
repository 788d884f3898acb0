package output

import (
	"io"
	"strings"
	"text/tabwriter"
)

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable returns a table with the given headers.
func NewTable(headers ...string) *Table { return &Table{Headers: headers} }

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table aligned by tabwriter. Tabs and newlines inside cells are flattened.
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		writeRow(tw, t.Headers)
	}
	for _, row := range t.Rows {
		writeRow(tw, row)
	}
	return tw.Flush()
}

var cellReplacer = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ")

func writeRow(w io.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			io.WriteString(w, "\t")
		}
		io.WriteString(w, cellReplacer.Replace(c))
	}
	io.WriteString(w, "\n")
}

// TableFormatter formats data as an aligned table.
type TableFormatter struct{}

// Format renders *Table, Table and Tabler values. Anything else falls back to JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		return v.Render(w)
	case Table:
		return v.Render(w)
	case Tabler:
		if t := v.Table(); t != nil {
			return t.Render(w)
		}
	}
	return (&JSONFormatter{}).Format(w, data)
}

// KV builds a two-column FIELD/VALUE table from alternating key, value pairs.
func KV(pairs ...string) *Table {
	t := NewTable("FIELD", "VALUE")
	for i := 0; i+1 < len(pairs); i += 2 {
		t.AddRow(pairs[i], pairs[i+1])
	}
	return t
}
