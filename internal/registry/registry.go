// Package registry maps the runner names used in grid files to the Go
// handlers that implement them. The registry is populated at startup;
// registering a duplicate name is a programmer error and panics.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/depgridgo/internal/ctxlog"
)

// Handler implements one runner type. It receives the step's evaluated
// arguments and returns the step's output value.
type Handler func(ctx context.Context, args map[string]cty.Value) (cty.Value, error)

// Registry holds the runner name to handler mapping.
type Registry struct {
	handlers map[string]Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a runner name to its handler.
func (r *Registry) Register(name string, h Handler) {
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("runner %q already registered", name))
	}
	slog.Debug("registering runner handler", "name", name)
	r.handlers[name] = h
}

// Lookup resolves a runner name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Builtins returns a registry with the core runners: print, sleep, fail.
// print writes its message to out.
func Builtins(out io.Writer) *Registry {
	r := New()

	r.Register("print", func(ctx context.Context, args map[string]cty.Value) (cty.Value, error) {
		msg, err := stringArg(args, "message")
		if err != nil {
			return cty.NilVal, err
		}
		if _, err := fmt.Fprintln(out, msg); err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(msg), nil
	})

	r.Register("sleep", func(ctx context.Context, args map[string]cty.Value) (cty.Value, error) {
		raw, err := stringArg(args, "duration")
		if err != nil {
			return cty.NilVal, err
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cty.NilVal, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		ctxlog.FromContext(ctx).Debug("sleeping", "duration", d)
		select {
		case <-time.After(d):
			return cty.StringVal(d.String()), nil
		case <-ctx.Done():
			return cty.NilVal, context.Cause(ctx)
		}
	})

	r.Register("fail", func(ctx context.Context, args map[string]cty.Value) (cty.Value, error) {
		msg, err := stringArg(args, "message")
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NilVal, fmt.Errorf("step failed: %s", msg)
	})

	return r
}

func stringArg(args map[string]cty.Value, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	if v.Type() != cty.String {
		return "", fmt.Errorf("argument %q must be a string, got %s", name, v.Type().FriendlyName())
	}
	return v.AsString(), nil
}
