package main

import "github.com/jward/symsql"

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command  string   `json:"command"`
	Columns  []string `json:"columns,omitempty"`
	Rows     [][]any  `json:"rows,omitempty"`
	RowCount *int     `json:"row_count,omitempty"`
	Results  any      `json:"results,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// queryResult wraps a statement's rows in the envelope.
func queryResult(command string, res *symsql.Result) CLIResult {
	n := len(res.Rows)
	return CLIResult{
		Command:  command,
		Columns:  res.Columns,
		Rows:     res.Rows,
		RowCount: &n,
	}
}

// CLITable is one entry of `symsql tables`.
type CLITable struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Indexed []string `json:"indexed,omitempty"`
}

func tableToCLI(t symsql.TableInfo) CLITable {
	out := CLITable{Name: t.Name, Indexed: t.Indexed}
	for _, c := range t.Columns {
		out.Columns = append(out.Columns, c.Name+" "+c.Type)
	}
	return out
}

// CLIDump reports what `symsql dump` wrote.
type CLIDump struct {
	Binary      string `json:"binary"`
	Snapshot    string `json:"snapshot"`
	Symbols     int    `json:"symbols"`
	SourceFiles int    `json:"source_files"`
	Lines       int    `json:"lines"`
	Contribs    int    `json:"section_contribs"`
}
