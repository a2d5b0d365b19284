package grid

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/depgridgo/dag"
	"github.com/vk/depgridgo/internal/ctxlog"
	"github.com/vk/depgridgo/internal/registry"
	"github.com/vk/depgridgo/sched"
)

// Grid is a file's steps turned into registered tasks, ready to run.
type Grid struct {
	tasks map[dag.Id]*sched.TaskOf[cty.Value]
	// sinks are the downstream-most steps; each is the root of one
	// enqueued subgraph.
	sinks []*sched.TaskOf[cty.Value]
}

// Build creates a task per step, wires the declared dependencies, and
// registers everything with s. Arguments are evaluated once, at build time.
func Build(ctx context.Context, f *File, reg *registry.Registry, s *sched.Scheduler) (*Grid, error) {
	logger := ctxlog.FromContext(ctx)
	g := &Grid{tasks: make(map[dag.Id]*sched.TaskOf[cty.Value], len(f.Steps))}

	// First pass: create a task per step.
	for _, step := range f.Steps {
		id := step.ID()
		if _, exists := g.tasks[id]; exists {
			return nil, fmt.Errorf("duplicate step %s", id)
		}
		handler, ok := reg.Lookup(step.Runner)
		if !ok {
			return nil, fmt.Errorf("step %s: unknown runner %q", id, step.Runner)
		}
		args, err := step.Args()
		if err != nil {
			return nil, err
		}
		g.tasks[id] = sched.NewTask(id, func(ctx context.Context) (cty.Value, error) {
			return handler(ctx, args)
		})
	}
	logger.Debug("grid tasks created", "count", len(g.tasks))

	// Second pass: link dependencies and find the sinks.
	dependedOn := make(map[dag.Id]bool)
	for _, step := range f.Steps {
		task := g.tasks[step.ID()]
		for _, dep := range step.DependsOn {
			depID := dag.Id(dep)
			if _, ok := g.tasks[depID]; !ok {
				return nil, fmt.Errorf("step %s depends on unknown step %q", step.ID(), dep)
			}
			task.Deps().Add(depID)
			dependedOn[depID] = true
		}
	}
	for _, step := range f.Steps {
		if !dependedOn[step.ID()] {
			g.sinks = append(g.sinks, g.tasks[step.ID()])
		}
	}

	for _, step := range f.Steps {
		if !s.Reg(g.tasks[step.ID()]) {
			return nil, fmt.Errorf("step %s: id already registered with scheduler", step.ID())
		}
	}
	logger.Debug("grid registered", "tasks", len(g.tasks), "sinks", len(g.sinks))
	return g, nil
}

// Task returns the task built for a step id, or nil.
func (g *Grid) Task(id dag.Id) *sched.TaskOf[cty.Value] {
	return g.tasks[id]
}

// Run enqueues every sink subgraph in turn and collects the sink outputs.
// Cycles and conflicting bindings surface as an enqueue failure; the first
// failed subgraph aborts the run. A cycle that no sink depends on is never
// enqueued, so it is neither run nor reported.
func (g *Grid) Run(ctx context.Context, s *sched.Scheduler) (map[dag.Id]cty.Value, error) {
	runID := uuid.NewString()
	ctx = ctxlog.With(ctx, "run", runID)
	logger := ctxlog.FromContext(ctx)

	results := make(map[dag.Id]cty.Value, len(g.sinks))
	for _, sink := range g.sinks {
		logger.Info("starting subgraph", "root", string(sink.Id()))

		// Retrieve the future before enqueueing: after publication the
		// cell is re-armed and this execution's result would be gone.
		f, err := sink.Future()
		if err != nil {
			return nil, fmt.Errorf("root %s: %w", sink.Id(), err)
		}
		if !s.Enqueue(sink) {
			return nil, fmt.Errorf("root %s: enqueue rejected", sink.Id())
		}
		v, err := f.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("root %s: %w", sink.Id(), err)
		}
		results[sink.Id()] = v
		logger.Info("subgraph finished", "root", string(sink.Id()))
	}
	return results, nil
}
