// Package sched serializes and parallelizes the execution of dependent
// tasks across a worker pool. Tasks form a directed acyclic dependency
// graph; enqueueing a root task binds its upstream closure, runs every
// prerequisite before its dependents, and publishes the root's result only
// after the whole bound subgraph has drained back to idle.
//
// The usual flow: build tasks with NewTask, declare prerequisites through
// Deps, register them with a Scheduler, retrieve the root's Future, then
// Enqueue the root and wait on the future. The future is retrieved first
// because a completed execution re-arms the task: a future retrieved after
// that belongs to the next execution.
//
//	pool := pool.New(4)
//	s := sched.New(pool)
//
//	sum := sched.NewTask("sum", func(ctx context.Context) (int, error) { ... })
//	load := sched.NewTask("load", func(ctx context.Context) (int, error) { ... })
//	sum.Deps().Add(load.Id())
//
//	s.Reg(load)
//	s.Reg(sum)
//	f, _ := sum.Future()
//	s.Enqueue(sum)
//	v, err := f.Get(ctx)
package sched
