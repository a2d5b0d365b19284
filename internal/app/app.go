// Package app assembles the grid runner: configuration, logging, the
// worker pool, a scheduler, and the runner registry.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/depgridgo/internal/ctxlog"
	"github.com/vk/depgridgo/internal/grid"
	"github.com/vk/depgridgo/internal/registry"
	"github.com/vk/depgridgo/pool"
	"github.com/vk/depgridgo/sched"
)

// App encapsulates the grid runner's dependencies and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	registry *registry.Registry
}

// New builds an App around cfg. Step output (the print runner) and logs
// both go to outW.
func New(outW io.Writer, cfg *Config) *App {
	return &App{
		outW:     outW,
		logger:   newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		cfg:      cfg,
		registry: registry.Builtins(outW),
	}
}

// Run loads the configured grid, builds its task graph, and executes every
// sink subgraph to completion.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	sched.Trace = a.cfg.Trace

	f, err := grid.LoadFile(a.cfg.GridPath)
	if err != nil {
		return err
	}
	a.logger.Debug("grid loaded", "path", a.cfg.GridPath, "steps", len(f.Steps))
	if len(f.Steps) == 0 {
		a.logger.Warn("grid holds no steps, nothing to run", "path", a.cfg.GridPath)
		return nil
	}

	p := pool.New(a.cfg.Workers,
		pool.WithContext(ctx),
		pool.WithQueueCap(a.cfg.QueueCap),
	)
	defer p.Close()
	s := sched.New(p, sched.WithLogger(a.logger))

	g, err := grid.Build(ctx, f, a.registry, s)
	if err != nil {
		return fmt.Errorf("building grid: %w", err)
	}

	a.logger.Info("starting execution", "workers", a.cfg.Workers, "steps", len(f.Steps))
	results, err := g.Run(ctx, s)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("execution finished", "subgraphs", len(results))
	return nil
}
