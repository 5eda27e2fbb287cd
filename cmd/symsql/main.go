package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/symsql"
)

var (
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// logger is configured from --verbose before any command runs.
var logger = newLogger(false)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "symsql",
	Short:         "SQL over the debug symbols of a binary",
	Long:          "symsql loads the DWARF debug information of an ELF, Mach-O or PE binary (or a saved snapshot) and exposes functions, types, variables, line numbers and sections as SQL tables.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(flagVerbose)
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text|table")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(dumpCmd)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openEngine loads a binary or snapshot and reports what it loaded.
func openEngine(path string) (*symsql.Engine, error) {
	e, err := symsql.Open(path, symsql.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded repository", "path", e.Path())
	return e, nil
}
