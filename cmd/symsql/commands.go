package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/symsql/internal/repo/dwarfrepo"
	"github.com/jward/symsql/internal/runtime"
	"github.com/jward/symsql/internal/server"
	"github.com/jward/symsql/scripts"
)

// --- query ---

var queryCmd = &cobra.Command{
	Use:   "query <binary|snapshot> <sql>",
	Short: "Run one SQL statement",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	e, err := openEngine(args[0])
	if err != nil {
		return outputError("query", err)
	}
	defer e.Close()

	res, err := e.Query(cmd.Context(), args[1])
	if err != nil {
		return outputError("query", err)
	}
	return outputResult(queryResult("query", res))
}

// --- tables ---

var tablesCmd = &cobra.Command{
	Use:   "tables <binary|snapshot>",
	Short: "List tables and their columns",
	Args:  cobra.ExactArgs(1),
	RunE:  runTables,
}

func runTables(cmd *cobra.Command, args []string) error {
	e, err := openEngine(args[0])
	if err != nil {
		return outputError("tables", err)
	}
	defer e.Close()

	var out []CLITable
	for _, t := range e.Tables() {
		out = append(out, tableToCLI(t))
	}
	n := len(out)
	return outputResult(CLIResult{Command: "tables", Results: out, RowCount: &n})
}

// --- dump ---

var dumpCmd = &cobra.Command{
	Use:   "dump <binary> <out.yaml>",
	Short: "Save a binary's debug symbols as a YAML snapshot",
	Long:  "Reads the DWARF debug information of a binary and writes it as a snapshot that every other command accepts in place of the binary.",
	Args:  cobra.ExactArgs(2),
	RunE:  runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	r, err := dwarfrepo.Load(args[0], dwarfrepo.WithLogger(logger))
	if err != nil {
		return outputError("dump", err)
	}
	defer r.Close()

	if err := r.Save(args[1]); err != nil {
		return outputError("dump", err)
	}
	st := r.Stats()
	fmt.Fprintf(os.Stderr, "Wrote %s\n", args[1])
	return outputResult(CLIResult{Command: "dump", Results: CLIDump{
		Binary:      args[0],
		Snapshot:    args[1],
		Symbols:     st.Symbols,
		SourceFiles: st.SourceFiles,
		Lines:       st.Lines,
		Contribs:    st.Contribs,
	}})
}

// --- script ---

var flagVars []string

var scriptLong = "Runs a Risor script with query(), query_rows(), tables() and log available as globals. " +
	"Modules next to the script can be imported by name.\n\n" +
	"Bundled scripts run by name when no file of that name exists: " + strings.Join(scripts.Names(), ", ") + "."

var scriptCmd = &cobra.Command{
	Use:   "script <binary|snapshot> <file.risor>",
	Short: "Run a Risor script against the symbol tables",
	Long:  scriptLong,
	Args:  cobra.ExactArgs(2),
	RunE:  runScript,
}

func init() {
	scriptCmd.Flags().StringArrayVar(&flagVars, "var", nil, "extra global as key=value (repeatable)")
}

func runScript(cmd *cobra.Command, args []string) error {
	globals, err := parseVars(flagVars)
	if err != nil {
		return outputError("script", err)
	}
	e, err := openEngine(args[0])
	if err != nil {
		return outputError("script", err)
	}
	defer e.Close()

	rt, file := scriptRuntime(e, args[1])
	if err := rt.RunScript(cmd.Context(), file, globals); err != nil {
		return outputError("script", err)
	}
	return nil
}

// scriptRuntime runs path from disk, falling back to the bundled script of
// that name when no such file exists.
func scriptRuntime(q runtime.Querier, path string) (*runtime.Runtime, string) {
	if _, err := os.Stat(path); err != nil {
		if file, ok := scripts.Lookup(path); ok {
			logger.Debug("running bundled script", "name", file)
			return runtime.NewRuntime(q, "", runtime.WithRuntimeFS(scripts.FS), runtime.WithLogger(logger)), file
		}
	}
	dir, file := filepath.Split(path)
	return runtime.NewRuntime(q, dir, runtime.WithLogger(logger)), file
}

// parseVars turns key=value pairs into script globals. Integer values
// become integers.
func parseVars(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q: want key=value", p)
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = n
		} else {
			out[k] = v
		}
	}
	return out, nil
}

// --- serve ---

var (
	flagPort  int
	flagBind  string
	flagToken string
)

var serveCmd = &cobra.Command{
	Use:   "serve <binary|snapshot>",
	Short: "Serve SQL queries over HTTP",
	Long:  "Starts an HTTP server answering POST /query with JSON results. The token may also be set with SYMSQL_TOKEN.",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 8081, "listen port")
	serveCmd.Flags().StringVar(&flagBind, "bind", "127.0.0.1", "listen address")
	serveCmd.Flags().StringVar(&flagToken, "token", "", "require this bearer token (default $SYMSQL_TOKEN)")
}

func runServe(cmd *cobra.Command, args []string) error {
	token := flagToken
	if token == "" {
		token = os.Getenv("SYMSQL_TOKEN")
	}
	if !isLoopback(flagBind) {
		fmt.Fprintf(os.Stderr, "WARNING: binding to non-loopback address %s\n", flagBind)
		if token == "" {
			fmt.Fprintln(os.Stderr, "WARNING: no token set; the server is reachable without authentication")
		}
	}

	e, err := openEngine(args[0])
	if err != nil {
		return outputError("serve", err)
	}
	defer e.Close()

	addr := net.JoinHostPort(flagBind, strconv.Itoa(flagPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return outputError("serve", fmt.Errorf("listening on %s: %w", addr, err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Serving %s on http://%s\n", e.Path(), ln.Addr())
	srv := server.New(e, server.Config{Token: token, Logger: logger})
	if err := srv.Serve(ctx, ln); err != nil {
		return outputError("serve", err)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
