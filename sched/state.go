package sched

// State is a task's position in its execution cycle. Stored atomically so
// other threads can observe it; transitions are driven by the scheduler and
// the executing worker only.
type State int32

const (
	// Idle: not part of any active binding.
	Idle State = iota
	// WaitUpstream: bound, waiting for upstream tasks to complete.
	WaitUpstream
	// Queued: ready, submitted to the pool.
	Queued
	// Executing: functor running on a worker.
	Executing
	// WaitDownstream: functor done, waiting for downstream tasks before the
	// result is published.
	WaitDownstream
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitUpstream:
		return "wait-upstream"
	case Queued:
		return "queued"
	case Executing:
		return "executing"
	case WaitDownstream:
		return "wait-downstream"
	}
	return "invalid"
}

// Trace globally enables structured records for every task state
// transition, emitted to the owning scheduler's logger.
var Trace bool
