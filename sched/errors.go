package sched

import (
	"errors"
	"fmt"

	"github.com/vk/depgridgo/dag"
)

// ErrInterrupted is the default cause installed by Task.Interrupt.
var ErrInterrupted = errors.New("task interrupted")

// UpstreamError is captured as a task's result when a bound upstream task
// failed: the dependent's functor is not run and the upstream cause is
// propagated through its future.
type UpstreamError struct {
	Task dag.Id
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream task %q failed: %v", string(e.Task), e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
