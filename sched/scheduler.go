package sched

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vk/depgridgo/dag"
	"github.com/vk/depgridgo/pool"
)

// Scheduler owns a dependency graph of registered tasks and drives bound
// subgraphs through their state machines on a worker pool. It is safe to
// call from any goroutine; registration, structural edits, and bind passes
// are serialized by its lock.
//
// Recoverable user errors (duplicate id, unregistered or active task,
// cyclic dependency, foreign-scheduler conflict) are reported as a false
// return plus a log record; the scheduler never aborts the process on user
// error.
type Scheduler struct {
	mu     sync.Mutex
	pool   *pool.Pool
	graph  *dag.Graph[*Task]
	bindID int
	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the sink for the scheduler's structured logs and trace
// records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a scheduler submitting to p. The pool must outlive the
// scheduler.
func New(p *pool.Pool, opts ...Option) *Scheduler {
	s := &Scheduler{
		pool:   p,
		graph:  dag.New[*Task](),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Len()
}

// Reg inserts the task into the scheduler's graph, resolving dependency
// edges against the tasks already present. Returns false if the id is
// already registered. A task may be registered with several schedulers.
func (s *Scheduler) Reg(at AnyTask) bool {
	t := at.core()
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.graph.Insert(t.node)
	if !ok {
		s.logger.Debug("reg rejected: id already registered", "task", string(t.Id()))
		return false
	}
	t.mu.Lock()
	t.regCount++
	t.mu.Unlock()

	// Structural change around the new vertex invalidates any binding that
	// spans its neighbors.
	for _, w := range v.Out() {
		s.dirty(w.Owner())
	}
	for _, w := range v.In() {
		s.dirty(w.Owner())
	}
	return true
}

// Unreg removes the task from the graph. Fails if the task is not
// registered here or is part of an active binding.
func (s *Scheduler) Unreg(at AnyTask) bool {
	t := at.core()
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.graph.Find(t.Id())
	if v == nil || v.Owner() != t {
		s.logger.Debug("unreg rejected: not registered", "task", string(t.Id()))
		return false
	}
	if t.Active() {
		s.logger.Debug("unreg rejected: task active", "task", string(t.Id()), "state", t.State().String())
		return false
	}

	for _, w := range v.Out() {
		s.dirty(w.Owner())
	}
	for _, w := range v.In() {
		s.dirty(w.Owner())
	}

	s.graph.Remove(t.Id())
	t.mu.Lock()
	t.regCount--
	if t.sched == s {
		t.sched = nil
		t.root = nil
		t.bindID = 0
		t.vertex = nil
	}
	t.mu.Unlock()
	return true
}

// dirty marks the root of t's binding as structurally stale.
func (s *Scheduler) dirty(t *Task) {
	t.mu.Lock()
	r := t.root
	if t.sched != s {
		r = nil
	}
	t.mu.Unlock()
	if r != nil {
		r.bindDirty = true
	}
}

// Enqueue atomically binds the task's upstream subgraph to it and submits
// the subgraph's leaves to the pool. Returns false, with no state change,
// if the task is not registered here, is already active, any reachable task
// is active (here or in another scheduler), or the subgraph is cyclic.
//
// A task may be enqueued again once its previous execution has returned it
// to Idle; each execution exposes a fresh future.
//
// Enqueue may be called from inside a functor for unrelated tasks, but
// never for a task of the caller's own bound subgraph.
func (s *Scheduler) Enqueue(at AnyTask) bool {
	t := at.core()
	s.mu.Lock()

	v := s.graph.Find(t.Id())
	if v == nil || v.Owner() != t {
		s.mu.Unlock()
		s.logger.Debug("enqueue rejected: not registered", "task", string(t.Id()))
		return false
	}
	if t.Active() {
		s.mu.Unlock()
		s.logger.Debug("enqueue rejected: task active", "task", string(t.Id()), "state", t.State().String())
		return false
	}

	leaves, err := s.bind(t, v)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("enqueue rejected", "task", string(t.Id()), "error", err)
		return false
	}

	// Leaves are submitted outside the lock: with a bounded pool backlog,
	// Submit may block until workers drain it.
	for _, leaf := range leaves {
		s.submit(leaf)
	}
	return true
}

// bind walks the upstream closure of root, stamps every task with a fresh
// bind id, snapshots the bound neighbor sets, and initializes the wait
// counters. On any failure all stamps from this pass are rolled back.
// Called with s.mu held; returns the zero-upstream leaves to submit.
func (s *Scheduler) bind(root *Task, rootV *dag.Vertex[*Task]) ([]*Task, error) {
	s.bindID++
	var bound []*Task

	visit := func(v *dag.Vertex[*Task]) error {
		u := v.Owner()
		u.mu.Lock()
		// A non-nil sched on an idle task means another bind pass is
		// stamping it right now; treat it like an active conflict.
		if u.Active() || u.sched != nil {
			foreign := u.sched != nil && u.sched != s
			uRoot := ""
			if u.root != nil {
				uRoot = string(u.root.Id())
			}
			u.mu.Unlock()
			if foreign {
				return fmt.Errorf("task %q is active in another scheduler", string(u.Id()))
			}
			return fmt.Errorf("upstream task %q is already active (root %q)", string(u.Id()), uRoot)
		}
		u.sched = s
		u.root = root
		u.bindID = s.bindID
		u.bindDirty = false
		u.vertex = v
		u.boundUp = nil
		u.boundDown = nil
		u.execErr = nil
		u.mu.Unlock()
		bound = append(bound, u)
		return nil
	}
	edge := func(a, b *dag.Vertex[*Task]) error {
		u, w := a.Owner(), b.Owner()
		u.boundUp = append(u.boundUp, w)
		w.boundDown = append(w.boundDown, u)
		return nil
	}

	if err := s.graph.TraverseUpstream(rootV, visit, edge); err != nil {
		for _, u := range bound {
			u.mu.Lock()
			u.sched = nil
			u.root = nil
			u.bindID = 0
			u.vertex = nil
			u.boundUp = nil
			u.boundDown = nil
			u.mu.Unlock()
		}
		return nil, err
	}

	var leaves []*Task
	for _, u := range bound {
		u.depUpInit = len(u.boundUp)
		u.depDownInit = len(u.boundDown)
		u.depUp.Store(int32(u.depUpInit))
		u.depDown.Store(int32(u.depDownInit))
		u.transition(WaitUpstream, -1)
		if u.depUpInit == 0 {
			leaves = append(leaves, u)
		}
	}
	s.logger.Debug("subgraph bound",
		"root", string(root.Id()),
		"bind", s.bindID,
		"tasks", len(bound),
		"leaves", len(leaves),
	)
	return leaves, nil
}

// submit moves a ready task into Queued and hands it to the pool.
func (s *Scheduler) submit(t *Task) {
	t.mu.Lock()
	if State(t.state.Load()) != WaitUpstream || t.depUp.Load() != 0 {
		t.mu.Unlock()
		panic("sched: submit of task in state " + t.State().String())
	}
	t.transition(Queued, -1)
	t.mu.Unlock()

	if err := s.pool.Submit(taskRunner{t}); err != nil {
		// The pool contract requires it to outlive the scheduler; a closed
		// pool under a live binding cannot be recovered from.
		panic("sched: pool closed with tasks in flight: " + err.Error())
	}
}
