package dispatch

import (
	"context"
	"strings"

	"golang.org/x/sync/semaphore"
)

// Fn is the function shape every FromFn-family leaf wraps.
type Fn[C, P, I, O any] func(args HandlerArgs[C, P, I]) (O, error)

// fnHandler is the plain leaf: it calls fn directly on the caller's
// goroutine, the equivalent of the original's non-blocking, non-local
// execution path.
type fnHandler[C, P, I, O any] struct {
	fn   Fn[C, P, I, O]
	meta Metadata
}

// FromFn builds a leaf handler from a plain function. This is the
// default, unadorned leaf constructor: no bounded pool, no pinned
// goroutine, just a direct call.
func FromFn[C, P, I, O any](fn Fn[C, P, I, O]) Handler[C, P, I, O] {
	return &fnHandler[C, P, I, O]{fn: fn}
}

func (h *fnHandler[C, P, I, O]) Handle(args HandlerArgs[C, P, I]) (O, error) {
	return h.fn(args)
}

func (h *fnHandler[C, P, I, O]) Metadata([]string) Metadata { return h.meta }

func (h *fnHandler[C, P, I, O]) MethodFromDots(name string) ([]string, bool) {
	if name == "" {
		return nil, false
	}
	return strings.Split(name, "."), true
}

// WithMetadata attaches static metadata to a leaf built with FromFn.
func WithMetadata[C, P, I, O any](h Handler[C, P, I, O], meta Metadata) Handler[C, P, I, O] {
	if fh, ok := h.(*fnHandler[C, P, I, O]); ok {
		clone := *fh
		clone.meta = meta
		return &clone
	}
	return &metaHandler[C, P, I, O]{Handler: h, meta: meta}
}

type metaHandler[C, P, I, O any] struct {
	Handler[C, P, I, O]
	meta Metadata
}

func (h *metaHandler[C, P, I, O]) Metadata([]string) Metadata { return h.meta }

// BlockingPool bounds the number of concurrently-running blocking leaf
// invocations, the Go substitute for tokio's spawn_blocking thread pool.
// A leaf wrapped with Blocking acquires a slot before running and releases
// it on return, so a flood of slow synchronous handlers cannot starve the
// rest of the dispatch tree.
type BlockingPool struct {
	sem *semaphore.Weighted
}

// NewBlockingPool creates a pool that allows at most n concurrent
// blocking invocations.
func NewBlockingPool(n int64) *BlockingPool {
	return &BlockingPool{sem: semaphore.NewWeighted(n)}
}

// Run acquires a slot, invokes fn, and releases the slot. It returns
// ctx.Err() without running fn if the context is cancelled before a slot
// becomes available.
func (p *BlockingPool) Run(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Blocking wraps h so every invocation runs through pool, bounding the
// number of concurrent calls to pool's weight.
func Blocking[C, P, I, O any](pool *BlockingPool, h Handler[C, P, I, O]) Handler[C, P, I, O] {
	return &blockingHandler[C, P, I, O]{inner: h, pool: pool}
}

type blockingHandler[C, P, I, O any] struct {
	inner Handler[C, P, I, O]
	pool  *BlockingPool
}

func (h *blockingHandler[C, P, I, O]) Handle(args HandlerArgs[C, P, I]) (O, error) {
	var out O
	var innerErr error
	ctx := args.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.pool.Run(ctx, func() error {
		out, innerErr = h.inner.Handle(args)
		return innerErr
	}); err != nil && innerErr == nil {
		var zero O
		return zero, TransportError(err)
	}
	return out, innerErr
}

func (h *blockingHandler[C, P, I, O]) Metadata(m []string) Metadata { return h.inner.Metadata(m) }

func (h *blockingHandler[C, P, I, O]) MethodFromDots(name string) ([]string, bool) {
	return h.inner.MethodFromDots(name)
}

// LocalPool runs every job on one dedicated goroutine, the Go substitute
// for a thread-local async task pool: state a handler keeps across calls
// (e.g. a non-thread-safe client) only ever sees a single goroutine.
type LocalPool struct {
	jobs   chan func()
	closed chan struct{}
}

// NewLocalPool starts the pool's dedicated goroutine.
func NewLocalPool() *LocalPool {
	p := &LocalPool{jobs: make(chan func()), closed: make(chan struct{})}
	go p.loop()
	return p
}

func (p *LocalPool) loop() {
	defer close(p.closed)
	for fn := range p.jobs {
		fn()
	}
}

// Run submits fn to the pool's goroutine and blocks until it completes.
func (p *LocalPool) Run(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}
	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pool's goroutine once all queued jobs drain. Do not
// call Run after Close.
func (p *LocalPool) Close() {
	close(p.jobs)
	<-p.closed
}

// Local wraps h so every invocation runs on pool's single dedicated
// goroutine.
func Local[C, P, I, O any](pool *LocalPool, h Handler[C, P, I, O]) Handler[C, P, I, O] {
	return &localHandler[C, P, I, O]{inner: h, pool: pool}
}

type localHandler[C, P, I, O any] struct {
	inner Handler[C, P, I, O]
	pool  *LocalPool
}

func (h *localHandler[C, P, I, O]) Handle(args HandlerArgs[C, P, I]) (O, error) {
	var out O
	var innerErr error
	ctx := args.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.pool.Run(ctx, func() {
		out, innerErr = h.inner.Handle(args)
	}); err != nil {
		var zero O
		return zero, TransportError(err)
	}
	return out, innerErr
}

func (h *localHandler[C, P, I, O]) Metadata(m []string) Metadata { return h.inner.Metadata(m) }

func (h *localHandler[C, P, I, O]) MethodFromDots(name string) ([]string, bool) {
	return h.inner.MethodFromDots(name)
}
