package sched

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vk/depgridgo/dag"
	"github.com/vk/depgridgo/future"
	"github.com/vk/depgridgo/internal/ctxlog"
)

// Task is the untyped core of a schedulable unit of work: its graph
// membership, state machine, and wait counters. Construct tasks through
// NewTask; the typed wrapper supplies the functor and result channel.
//
// A task may be registered with several schedulers but participates in at
// most one binding at a time. While registered anywhere, its id and
// dependency declarations are frozen.
type Task struct {
	node *dag.Node[*Task]

	mu       sync.Mutex
	regCount int
	priority int
	worker   int
	executes bool
	execCtx  context.Context
	cancel   context.CancelCauseFunc

	state   atomic.Int32
	depUp   atomic.Int32
	depDown atomic.Int32

	// Binding metadata. Written under the binding scheduler's lock, read by
	// the bound execution afterwards; the submit handoff orders the two.
	sched       *Scheduler
	root        *Task
	bindID      int
	bindDirty   bool
	vertex      *dag.Vertex[*Task]
	boundUp     []*Task
	boundDown   []*Task
	depUpInit   int
	depDownInit int
	execErr     error

	// Installed by the typed wrapper.
	exec    func(ctx context.Context) error
	fail    func(err error)
	publish func()
	rearm   func()
}

// AnyTask is satisfied by *Task and every *TaskOf instantiation, letting the
// scheduler accept tasks of any result type.
type AnyTask interface {
	core() *Task
}

func (t *Task) core() *Task { return t }

func newCore(id dag.Id) *Task {
	t := &Task{worker: -1}
	t.node = dag.NewNode(t, id)
	return t
}

// Id returns the task's id.
func (t *Task) Id() dag.Id { return t.node.Key() }

// SetId renames the task. The task must not be registered with any
// scheduler.
func (t *Task) SetId(id dag.Id) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.regCount > 0 {
		panic("sched: unregister before renaming a task")
	}
	t.node.SetKey(id)
}

// Deps exposes the task's dependency declaration. Out links name upstream
// tasks that must complete before this one. The task must not be registered
// with any scheduler.
func (t *Task) Deps() *dag.Node[*Task] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.regCount > 0 {
		panic("sched: unregister before editing task dependencies")
	}
	return t.node
}

// State returns the task's current state.
func (t *Task) State() State { return State(t.state.Load()) }

// Active reports whether the task is part of an active binding: anything
// other than Idle.
func (t *Task) Active() bool { return t.State() != Idle }

// SetPriority stores the task's scheduling hint. Goroutines carry no OS
// priority, so the hint orders the pool backlog at submit time instead of
// being forwarded to a thread; it does not affect an execution already in
// flight.
func (t *Task) SetPriority(p int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priority = p
}

// GetPriority returns the scheduling hint.
func (t *Task) GetPriority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// Worker returns the index of the pool worker currently executing the
// functor; ok is false when the task is not executing.
func (t *Task) Worker() (worker int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.worker, t.executes
}

// Interrupt requests cooperative interruption of the executing functor with
// the given cause (ErrInterrupted if nil). The functor observes it at its
// next interruption point; on a task that is not executing this is a no-op.
func (t *Task) Interrupt(cause error) {
	if cause == nil {
		cause = ErrInterrupted
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel(cause)
	}
}

// InterruptRequested reports whether the current execution has a pending
// interrupt. False when the task is not executing.
func (t *Task) InterruptRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.execCtx != nil && t.execCtx.Err() != nil
}

// transition swaps the task state and, when tracing is enabled, emits a
// structured record to the owning scheduler's logger. worker is -1 for
// scheduler-side transitions.
func (t *Task) transition(to State, worker int) {
	from := State(t.state.Swap(int32(to)))
	if !Trace {
		return
	}
	logger := slog.Default()
	if t.sched != nil {
		logger = t.sched.logger
	}
	logger.Debug("task state transition",
		"task", string(t.Id()),
		"from", from.String(),
		"to", to.String(),
		"worker", worker,
	)
}

// run drives one execution on a pool worker: Queued -> Executing ->
// WaitDownstream, then the completion protocol over the bound neighbors.
func (t *Task) run(ctx context.Context, worker int) {
	execCtx, cancel := context.WithCancelCause(ctx)
	execCtx = withTask(execCtx, t)
	execCtx = ctxlog.With(execCtx, "task", string(t.Id()))

	t.mu.Lock()
	if State(t.state.Load()) != Queued {
		t.mu.Unlock()
		panic("sched: task picked up by worker in state " + t.State().String())
	}
	t.transition(Executing, worker)
	t.worker = worker
	t.executes = true
	t.execCtx = execCtx
	t.cancel = cancel
	t.mu.Unlock()

	// A failed upstream task poisons its dependents: the functor is skipped
	// and the upstream cause lands in this task's result cell.
	var upErr error
	for _, u := range t.boundUp {
		if u.execErr != nil {
			upErr = &UpstreamError{Task: u.Id(), Err: u.execErr}
			break
		}
	}
	if upErr != nil {
		t.fail(upErr)
		t.execErr = upErr
	} else {
		t.execErr = t.exec(execCtx)
	}

	t.mu.Lock()
	t.worker = -1
	t.executes = false
	t.execCtx = nil
	t.cancel = nil
	t.transition(WaitDownstream, worker)
	t.mu.Unlock()
	// Consume any pending interrupt with the execution; it must not leak
	// into the worker's next task.
	cancel(nil)

	// Once a downstream task is released it may drain this task's own
	// barrier and finalize it, so the binding fields are snapshotted first.
	sched, root := t.sched, t.root
	boundUp, boundDown := t.boundUp, t.boundDown

	// Complete the downstream barrier of upstream tasks; whoever drops a
	// counter to zero finalizes that task.
	for _, u := range boundUp {
		if u.depDown.Add(-1) == 0 {
			u.finalize(worker)
		}
	}

	// Release downstream tasks whose last prerequisite this was.
	for _, d := range boundDown {
		if d.depUp.Add(-1) == 0 {
			sched.submit(d)
		}
	}

	// The root has no bound downstream; it finalizes itself, and by this
	// point every other task of the binding has been finalized.
	if t == root {
		if t.depDown.Load() != 0 {
			panic("sched: root task holds a downstream barrier")
		}
		t.finalize(worker)
	}
}

// finalize returns the task to Idle and publishes its result. Publication
// happens only here, after the downstream barrier, so an observer of a
// resolved future can conclude the task's whole bound subgraph is idle.
func (t *Task) finalize(worker int) {
	t.mu.Lock()
	if State(t.state.Load()) != WaitDownstream || t.depDown.Load() != 0 {
		t.mu.Unlock()
		panic("sched: finalize in state " + t.State().String())
	}
	t.transition(Idle, worker)
	t.sched = nil
	t.root = nil
	t.bindID = 0
	t.vertex = nil
	t.boundUp = nil
	t.boundDown = nil
	publish, rearm := t.publish, t.rearm
	t.mu.Unlock()

	// Publish, then re-arm for the next enqueue. Consumers of the published
	// future may release the task beyond this point.
	publish()
	rearm()
}

// taskRunner adapts a task to the pool without exposing Run on the task's
// public surface.
type taskRunner struct {
	t *Task
}

func (r taskRunner) Run(ctx context.Context, worker int) { r.t.run(ctx, worker) }

func (r taskRunner) Priority() int { return r.t.GetPriority() }

// TaskOf is a task whose functor produces a value of type R, retrievable
// through a future per execution.
type TaskOf[R any] struct {
	*Task
	fn *future.Packaged[R]
}

// NewTask creates an idle task around fn. The functor's context carries the
// current task, the configured logger, and the interruption signal.
func NewTask[R any](id dag.Id, fn func(context.Context) (R, error)) *TaskOf[R] {
	if fn == nil {
		panic("sched: task functor must not be nil")
	}
	t := &TaskOf[R]{Task: newCore(id), fn: future.New(fn)}
	t.Task.exec = t.fn.InvokeDelayed
	t.Task.fail = t.fn.FailDelayed
	t.Task.publish = func() { t.fn.SetReady(true) }
	t.Task.rearm = func() { t.fn.SetReady(false) }
	return t
}

// Future returns the handle to the current execution's delayed result. At
// most one future may be retrieved per execution; further calls return
// future.ErrAlreadyRetrieved.
func (t *TaskOf[R]) Future() (*future.Future[R], error) {
	return t.fn.Future()
}
