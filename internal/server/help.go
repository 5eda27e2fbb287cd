package server

import (
	"fmt"
	"strings"

	"github.com/jward/symsql"
)

const endpoints = `Endpoints:
  GET  /          Welcome message
  GET  /help      API and table documentation
  POST /query     Execute SQL (body = raw SQL, response = JSON)
  GET  /status    Server health
  GET  /health    Alias for /status
  POST /shutdown  Stop the server
`

const examples = `Example queries:
  SELECT name, rva, length FROM functions ORDER BY length DESC LIMIT 10;
  SELECT name FROM udts WHERE kind = 'class';
  SELECT p.name, p.type FROM functions f JOIN parameters p ON p.func_id = f.id WHERE f.name = 'main';
  SELECT * FROM sections;
`

const responses = `Responses:
  Success: {"success": true, "job_id": "...", "columns": [...], "rows": [[...]], "row_count": N}
  Error:   {"success": false, "job_id": "...", "error": "message"}

Authentication (when enabled):
  Authorization: Bearer <token>
  ` + TokenHeader + `: <token>
`

// helpText documents the API and every table. Indexed columns are the
// ones whose equality predicates are answered without a full scan.
func helpText(tables []symsql.TableInfo) string {
	var b strings.Builder
	b.WriteString("symsql HTTP API\n===============\n\nSQL over the debug symbols of one binary.\n\n")
	b.WriteString(endpoints)
	b.WriteString("\nTables:\n")
	for _, t := range tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name
		}
		fmt.Fprintf(&b, "  %-14s %s\n", t.Name, strings.Join(cols, ", "))
		if len(t.Indexed) > 0 {
			fmt.Fprintf(&b, "  %-14s indexed: %s\n", "", strings.Join(t.Indexed, ", "))
		}
	}
	b.WriteString("\n")
	b.WriteString(examples)
	b.WriteString("\n")
	b.WriteString(responses)
	return b.String()
}
