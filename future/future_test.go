package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayedPublication(t *testing.T) {
	p := New(func(ctx context.Context) (int, error) { return 42, nil })
	f, err := p.Future()
	require.NoError(t, err)

	require.NoError(t, p.InvokeDelayed(context.Background()))

	// Invoked but not published: consumers stay blocked.
	select {
	case <-f.Done():
		t.Fatal("future published before SetReady")
	case <-time.After(20 * time.Millisecond):
	}

	p.SetReady(true)
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestGetBlocksUntilReady(t *testing.T) {
	p := New(func(ctx context.Context) (string, error) { return "done", nil })
	f, err := p.Future()
	require.NoError(t, err)

	got := make(chan string, 1)
	go func() {
		v, err := f.Get(context.Background())
		require.NoError(t, err)
		got <- v
	}()

	require.NoError(t, p.InvokeDelayed(context.Background()))
	p.SetReady(true)

	select {
	case v := <-got:
		assert.Equal(t, "done", v)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after publication")
	}
}

func TestFunctorFailure(t *testing.T) {
	boom := errors.New("boom")
	p := New(func(ctx context.Context) (int, error) { return 0, boom })
	f, err := p.Future()
	require.NoError(t, err)

	assert.ErrorIs(t, p.InvokeDelayed(context.Background()), boom)
	p.SetReady(true)

	_, err = f.Get(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestFunctorPanicIsCaptured(t *testing.T) {
	p := New(func(ctx context.Context) (int, error) { panic("kaboom") })
	f, err := p.Future()
	require.NoError(t, err)

	invokeErr := p.InvokeDelayed(context.Background())
	var pe *PanicError
	require.ErrorAs(t, invokeErr, &pe)
	assert.Equal(t, "kaboom", pe.Value)

	p.SetReady(true)
	_, err = f.Get(context.Background())
	assert.ErrorAs(t, err, &pe)
}

func TestFailDelayed(t *testing.T) {
	boom := errors.New("upstream broke")
	p := New(func(ctx context.Context) (int, error) {
		t.Fatal("functor must not run")
		return 0, nil
	})
	f, err := p.Future()
	require.NoError(t, err)

	p.FailDelayed(boom)
	p.SetReady(true)

	_, err = f.Get(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestFutureRetrievedOncePerArming(t *testing.T) {
	p := New(func(ctx context.Context) (int, error) { return 1, nil })

	_, err := p.Future()
	require.NoError(t, err)
	_, err = p.Future()
	assert.ErrorIs(t, err, ErrAlreadyRetrieved)
}

func TestRearming(t *testing.T) {
	n := 0
	p := New(func(ctx context.Context) (int, error) { n++; return n, nil })

	f1, err := p.Future()
	require.NoError(t, err)
	require.NoError(t, p.InvokeDelayed(context.Background()))
	p.SetReady(true)
	v, err := f1.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Re-arm: a fresh future becomes retrievable, the old one keeps its
	// published result.
	p.SetReady(false)
	f2, err := p.Future()
	require.NoError(t, err)
	require.NoError(t, p.InvokeDelayed(context.Background()))
	p.SetReady(true)

	v, err = f2.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, err = f1.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestGetIsCancellable(t *testing.T) {
	p := New(func(ctx context.Context) (int, error) { return 1, nil })
	f, err := p.Future()
	require.NoError(t, err)

	cause := errors.New("stop waiting")
	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Get(ctx)
		done <- err
	}()

	cancel(cause)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, cause)
	case <-time.After(time.Second):
		t.Fatal("Get did not observe cancellation")
	}
}

func TestDoubleInvokePanics(t *testing.T) {
	p := New(func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, p.InvokeDelayed(context.Background()))
	assert.Panics(t, func() { _ = p.InvokeDelayed(context.Background()) })
}

func TestPublishBeforeInvokePanics(t *testing.T) {
	p := New(func(ctx context.Context) (int, error) { return 1, nil })
	assert.Panics(t, func() { p.SetReady(true) })
}
