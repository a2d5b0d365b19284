package sched

import "context"

type taskKey struct{}

// withTask embeds the executing task into its functor's context.
func withTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskKey{}, t)
}

// FromContext returns the task executing on the calling goroutine, or nil
// outside a functor. This is the functor's way to introspect itself, e.g.
// to check InterruptRequested or read its own id.
func FromContext(ctx context.Context) *Task {
	t, _ := ctx.Value(taskKey{}).(*Task)
	return t
}

// InterruptPoint is a cooperative interruption check for functor code:
// it returns nil normally and the interrupt cause once the execution has
// been interrupted (or the surrounding context otherwise cancelled).
func InterruptPoint(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	default:
		return nil
	}
}
