// Package cli parses command-line arguments for the grid runner binary.
package cli

import (
	"flag"
	"fmt"
	"io"
)

// ExitError is an error carrying a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments into config overrides for
// app.LoadConfig. The second return is true when the program should exit
// cleanly without running (help, or no grid given).
func Parse(args []string, output io.Writer) (map[string]any, bool, error) {
	flagSet := flag.NewFlagSet("depgridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
depgridgo - run a dependency grid of tasks across a worker pool.

Usage:
  depgridgo [options] [GRID_PATH]

Arguments:
  GRID_PATH
    Path to a .hcl grid file.

Options:
`)
		flagSet.PrintDefaults()
	}

	gridFlag := flagSet.String("grid", "", "Path to the grid file.")
	gFlag := flagSet.String("g", "", "Path to the grid file (shorthand).")
	workersFlag := flagSet.Int("workers", 0, "Number of pool workers. 0 keeps the configured default.")
	queueCapFlag := flagSet.Int("queue-cap", -1, "Bound on the pool backlog. 0 is unbounded; -1 keeps the configured default.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Logging level: 'debug', 'info', 'warn', or 'error'.")
	traceFlag := flagSet.Bool("trace", false, "Emit a debug-level record for every task state transition (visible with -log-level debug).")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *gridFlag != "" {
		path = *gridFlag
	} else if *gFlag != "" {
		path = *gFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	overrides := map[string]any{"grid_path": path}
	if *workersFlag > 0 {
		overrides["workers"] = *workersFlag
	}
	if *queueCapFlag >= 0 {
		overrides["queue_cap"] = *queueCapFlag
	}
	if *logFormatFlag != "" {
		overrides["log_format"] = *logFormatFlag
	}
	if *logLevelFlag != "" {
		overrides["log_level"] = *logLevelFlag
	}
	if *traceFlag {
		overrides["trace"] = true
	}
	return overrides, false, nil
}
