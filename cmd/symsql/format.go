package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// formatValue renders one SQL value for text and table output.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// formatRowsText writes rows as aligned columns.
func formatRowsText(w io.Writer, columns []string, rows [][]any) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(columns, "\t")))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

// formatRowsTable writes rows as a boxed table.
func formatRowsTable(w io.Writer, columns []string, rows [][]any) {
	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = formatValue(v)
		}
		t.AppendRow(r)
	}
	t.SetStyle(table.StyleLight)
	t.Style().Format = table.FormatOptions{
		Footer: text.FormatDefault,
		Header: text.FormatDefault,
		Row:    text.FormatDefault,
	}
	t.Render()
}

// formatTablesText lists tables with their columns.
func formatTablesText(w io.Writer, tables []CLITable) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tINDEXED\tCOLUMNS")
	for _, t := range tables {
		indexed := strings.Join(t.Indexed, ",")
		if indexed == "" {
			indexed = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, indexed, strings.Join(t.Columns, ", "))
	}
	tw.Flush()
}

// formatDumpText summarizes a written snapshot.
func formatDumpText(w io.Writer, d CLIDump) {
	fmt.Fprintf(w, "Binary: %s\n", d.Binary)
	fmt.Fprintf(w, "Snapshot: %s\n", d.Snapshot)
	fmt.Fprintf(w, "Symbols: %d\n", d.Symbols)
	fmt.Fprintf(w, "Source files: %d\n", d.SourceFiles)
	fmt.Fprintf(w, "Lines: %d\n", d.Lines)
	fmt.Fprintf(w, "Section contributions: %d\n", d.Contribs)
}

// writeResult renders result in the given format.
func writeResult(w io.Writer, format string, result CLIResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	switch v := result.Results.(type) {
	case nil:
		if result.Columns == nil {
			return nil
		}
		if format == "table" {
			formatRowsTable(w, result.Columns, result.Rows)
		} else {
			formatRowsText(w, result.Columns, result.Rows)
		}
	case []CLITable:
		if format == "table" {
			rows := make([][]any, len(v))
			for i, t := range v {
				rows[i] = []any{t.Name, strings.Join(t.Indexed, ","), strings.Join(t.Columns, ", ")}
			}
			formatRowsTable(w, []string{"table", "indexed", "columns"}, rows)
		} else {
			formatTablesText(w, v)
		}
	case CLIDump:
		formatDumpText(w, v)
	default:
		return fmt.Errorf("unsupported result type for %s format: %T", format, v)
	}
	return nil
}

// outputResult writes result to stdout in the --format format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, flagFormat, result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. Otherwise it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat != "json" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "table"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, ", "))
}
