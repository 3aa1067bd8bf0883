package server

import (
	"context"
	"errors"
	"sync"
	"time"

	selva "github.com/saulx/selva/go-selva"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
)

var ErrPoolClosed = errors.New("diff pool closed")

// Pool runs diffs and applies on a fixed number of workers.  Jobs hold
// their inputs and a reply channel, so workers share nothing.  A caller
// whose context ends stops waiting; the job still runs to completion and
// its result is dropped.
type Pool struct {
	jobs    chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	metrics *Metrics
}

// NewPool starts n workers.  metrics may be nil.
func NewPool(n int, metrics *Metrics) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		jobs:    make(chan func()),
		done:    make(chan struct{}),
		metrics: metrics,
	}
	for range n {
		p.wg.Go(p.work)
	}
	return p
}

func (p *Pool) work() {
	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.done:
			return
		}
	}
}

type result[T any] struct {
	v   T
	err error
}

// run hands f to a worker and waits for its result.
func run[T any](ctx context.Context, p *Pool, f func() (T, error)) (T, error) {
	var zero T
	reply := make(chan result[T], 1)
	job := func() {
		v, err := f()
		reply <- result[T]{v, err}
	}
	select {
	case p.jobs <- job:
	case <-p.done:
		return zero, ErrPoolClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Diff computes selva.Diff(from, to) on a worker.
func (p *Pool) Diff(ctx context.Context, from, to *ir.Value) (libdiff.Patch, error) {
	return run(ctx, p, func() (libdiff.Patch, error) {
		start := time.Now()
		d := selva.Diff(from, to)
		if p.metrics != nil {
			p.metrics.DiffDuration.Observe(time.Since(start).Seconds())
		}
		return d, nil
	})
}

// Apply computes selva.Apply(doc, patch) on a worker.
func (p *Pool) Apply(ctx context.Context, doc *ir.Value, patch libdiff.Patch) (*ir.Value, error) {
	return run(ctx, p, func() (*ir.Value, error) {
		return selva.Apply(doc, patch)
	})
}

// Close stops the workers after their current jobs.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
