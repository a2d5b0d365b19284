// Package pool runs submitted work on a fixed set of worker goroutines.
// The backlog is ordered by priority (highest first, FIFO among equals) and
// optionally bounded, in which case Submit blocks while the backlog is full.
package pool

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	"github.com/vk/depgridgo/internal/ctxlog"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("pool closed")

// Runner is a unit of work. Run receives the pool's base context (carrying
// the pool's logger) and the index of the executing worker.
type Runner interface {
	Run(ctx context.Context, worker int)
}

// Prioritized is optionally implemented by runners to order the backlog.
// Runners without it submit at priority 0.
type Prioritized interface {
	Priority() int
}

// Pool spreads runner execution across a fixed number of workers.
type Pool struct {
	ctx     context.Context
	mu      sync.Mutex
	ready   *sync.Cond
	notFull *sync.Cond
	backlog backlog
	cap     int
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a Pool.
type Option func(*config)

type config struct {
	ctx      context.Context
	queueCap int
}

// WithContext sets the base context handed to every runner; attach a logger
// with ctxlog.WithLogger to direct worker logging.
func WithContext(ctx context.Context) Option {
	return func(c *config) { c.ctx = ctx }
}

// WithQueueCap bounds the backlog; Submit blocks while it is full.
// Zero or negative means unbounded.
func WithQueueCap(n int) Option {
	return func(c *config) { c.queueCap = n }
}

// New creates a pool and starts its workers. workers must be at least 1.
func New(workers int, opts ...Option) *Pool {
	if workers < 1 {
		panic("pool: worker count must be at least 1")
	}
	cfg := config{ctx: context.Background()}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool{
		ctx: cfg.ctx,
		cap: cfg.queueCap,
	}
	p.ready = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// Submit enqueues a runner for eventual execution on some worker. It blocks
// only while a bounded backlog is at capacity, and returns ErrClosed once
// the pool has been closed.
func (p *Pool) Submit(r Runner) error {
	prio := 0
	if pr, ok := r.(Prioritized); ok {
		prio = pr.Priority()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.cap > 0 && p.backlog.Len() >= p.cap && !p.closed {
		p.notFull.Wait()
	}
	if p.closed {
		return ErrClosed
	}
	p.backlog.push(r, prio)
	p.ready.Signal()
	return nil
}

// Close stops accepting work, drains the backlog, and joins the workers.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.ready.Broadcast()
	p.notFull.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// worker blocks on the backlog and executes runners until the pool is
// closed and drained. A panic outside a runner's own recovery is fatal, by
// contract.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logger := ctxlog.FromContext(p.ctx).With("worker", id)
	logger.Debug("worker started")

	for {
		p.mu.Lock()
		for p.backlog.Len() == 0 && !p.closed {
			p.ready.Wait()
		}
		if p.backlog.Len() == 0 && p.closed {
			p.mu.Unlock()
			logger.Debug("worker stopped")
			return
		}
		r := p.backlog.pop()
		p.notFull.Signal()
		p.mu.Unlock()

		r.Run(p.ctx, id)
	}
}

// backlog is a priority max-heap with FIFO order among equal priorities.
type backlog struct {
	items []backlogItem
	seq   uint64
}

type backlogItem struct {
	r    Runner
	prio int
	seq  uint64
}

func (b *backlog) Len() int { return len(b.items) }

func (b *backlog) Less(i, j int) bool {
	if b.items[i].prio != b.items[j].prio {
		return b.items[i].prio > b.items[j].prio
	}
	return b.items[i].seq < b.items[j].seq
}

func (b *backlog) Swap(i, j int) { b.items[i], b.items[j] = b.items[j], b.items[i] }

func (b *backlog) Push(x any) { b.items = append(b.items, x.(backlogItem)) }

func (b *backlog) Pop() any {
	last := len(b.items) - 1
	item := b.items[last]
	b.items = b.items[:last]
	return item
}

func (b *backlog) push(r Runner, prio int) {
	b.seq++
	heap.Push(b, backlogItem{r: r, prio: prio, seq: b.seq})
}

func (b *backlog) pop() Runner {
	return heap.Pop(b).(backlogItem).r
}
