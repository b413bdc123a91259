package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Format selects how results are written.
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
)

// ParseFormat accepts json, csv or table. An empty string picks table for
// terminals and json otherwise.
func ParseFormat(s string, tty bool) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		if tty {
			return FormatTable, nil
		}
		return FormatJSON, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatTable:
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q: want json, csv or table", s)
	}
}

// Table is the flat view of a result used by the csv and table formats.
type Table struct {
	Header []string
	Rows   [][]string
}

// Write renders doc as JSON, or t as CSV or an aligned text table.
func Write(w io.Writer, f Format, doc any, t Table) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(t.Header); err != nil {
			return err
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		return nil
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.SetHeader(t.Header)
		table.SetAutoFormatHeaders(false)
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		table.AppendBulk(t.Rows)
		table.Render()
		return nil
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}
