package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jward/symsql"
)

const (
	shellPrompt = "symsql> "
	contPrompt  = "   ...> "
)

var shellCmd = &cobra.Command{
	Use:   "shell <binary|snapshot>",
	Short: "Interactive SQL shell",
	Long:  "Reads SQL statements terminated by ';'. Dot commands: .tables, .schema <table>, .help, .quit.",
	Args:  cobra.ExactArgs(1),
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	e, err := openEngine(args[0])
	if err != nil {
		return outputError("shell", err)
	}
	defer e.Close()

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".symsql_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     history,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	format := flagFormat
	if !cmd.Flags().Changed("format") {
		format = "table"
	}
	sh := newShell(e, rl.Stdout(), os.Stderr, format)
	fmt.Fprintf(os.Stderr, "Loaded %s. Enter \".help\" for usage.\n", e.Path())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if sh.pending() {
				sh.reset()
				rl.SetPrompt(shellPrompt)
				continue
			}
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if sh.handle(cmd.Context(), line) {
			return nil
		}
		if sh.pending() {
			rl.SetPrompt(contPrompt)
		} else {
			rl.SetPrompt(shellPrompt)
		}
	}
}

// shellEngine is the part of *symsql.Engine the shell uses.
type shellEngine interface {
	Query(ctx context.Context, query string) (*symsql.Result, error)
	TableNames() []string
	Table(name string) (symsql.TableInfo, bool)
}

// shell accumulates input lines into statements and runs them.
type shell struct {
	engine shellEngine
	out    io.Writer
	errOut io.Writer
	format string
	buf    strings.Builder
}

func newShell(e shellEngine, out, errOut io.Writer, format string) *shell {
	return &shell{engine: e, out: out, errOut: errOut, format: format}
}

func (s *shell) pending() bool { return s.buf.Len() > 0 }

func (s *shell) reset() { s.buf.Reset() }

// handle consumes one input line and reports whether the shell should exit.
func (s *shell) handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !s.pending() {
		if trimmed == "" {
			return false
		}
		if strings.HasPrefix(trimmed, ".") {
			return s.dot(trimmed)
		}
	}

	if s.pending() {
		s.buf.WriteByte('\n')
	}
	s.buf.WriteString(line)
	if !strings.HasSuffix(trimmed, ";") {
		return false
	}

	stmt := strings.TrimSpace(s.buf.String())
	s.reset()
	s.run(ctx, stmt)
	return false
}

func (s *shell) run(ctx context.Context, stmt string) {
	res, err := s.engine.Query(ctx, stmt)
	if err != nil {
		fmt.Fprintf(s.errOut, "Error: %s\n", err)
		return
	}
	if len(res.Columns) == 0 {
		return
	}
	if err := writeResult(s.out, s.format, queryResult("shell", res)); err != nil {
		fmt.Fprintf(s.errOut, "Error: %s\n", err)
	}
}

func (s *shell) dot(cmd string) bool {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ".quit", ".exit":
		return true
	case ".tables":
		for _, name := range s.engine.TableNames() {
			fmt.Fprintln(s.out, name)
		}
	case ".schema":
		names := fields[1:]
		if len(names) == 0 {
			names = s.engine.TableNames()
		}
		for _, name := range names {
			t, ok := s.engine.Table(name)
			if !ok {
				fmt.Fprintf(s.errOut, "Error: no such table: %s\n", name)
				continue
			}
			fmt.Fprintln(s.out, t.Schema+";")
		}
	case ".help":
		fmt.Fprintln(s.out, ".tables            list tables")
		fmt.Fprintln(s.out, ".schema [table]    show CREATE TABLE statements")
		fmt.Fprintln(s.out, ".quit              exit")
		fmt.Fprintln(s.out, "Statements end with ';' and may span lines.")
	default:
		fmt.Fprintf(s.errOut, "Error: unknown command %s\n", fields[0])
	}
	return false
}
