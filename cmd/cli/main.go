package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/depgridgo/internal/app"
	"github.com/vk/depgridgo/internal/cli"
)

// main is the entrypoint for the depgridgo grid runner.
func main() {
	// Minimal logger until the configured one takes over.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run holds the real logic so errors and exit codes stay testable.
func run(outW io.Writer, args []string) error {
	overrides, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	cfg, err := app.LoadConfig(overrides)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}

	return app.New(outW, cfg).Run(context.Background())
}
