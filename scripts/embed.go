// Package scripts holds the Risor reports bundled with symsql. Any of them
// can be run by name with `symsql script <binary> <name>`.
package scripts

import (
	"embed"
	"io/fs"
	"strings"
)

//go:embed *.risor
var FS embed.FS

// Names lists the bundled scripts without their extension.
func Names() []string {
	matches, _ := fs.Glob(FS, "*.risor")
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = strings.TrimSuffix(m, ".risor")
	}
	return names
}

// Lookup returns the file name of the bundled script called name, with or
// without the .risor extension.
func Lookup(name string) (string, bool) {
	file := name
	if !strings.HasSuffix(file, ".risor") {
		file += ".risor"
	}
	if _, err := fs.Stat(FS, file); err != nil {
		return "", false
	}
	return file, true
}
