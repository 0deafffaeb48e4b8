package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// PoolMetrics is a point-in-time view of a WorkerPool's counters.
type PoolMetrics struct {
	Queued    int64 `json:"queued"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
}

// ErrPoolShutdown is returned when work is submitted to a shut-down pool.
var ErrPoolShutdown = errors.New("worker pool is shut down")

type poolCounters struct {
	queued, active, completed, failed, panics atomic.Int64
}

// WorkerPool bounds how many workflow runs execute at once. Runs beyond the
// limit wait in Submit until a slot frees up.
type WorkerPool struct {
	size     int
	slots    *semaphore.Weighted
	counters poolCounters

	// closing ends every pending Acquire once Shutdown is called.
	closing context.Context
	close   context.CancelFunc

	mu      sync.Mutex
	running sync.WaitGroup
}

// NewWorkerPool creates a pool running at most size workflows at once.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	closing, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		size:    size,
		slots:   semaphore.NewWeighted(int64(size)),
		closing: closing,
		close:   cancel,
	}
}

// Size returns the concurrency limit.
func (p *WorkerPool) Size() int {
	return p.size
}

// Submit runs fn once a slot is free. It blocks while the pool is full and
// gives up when ctx is done or the pool shuts down.
func (p *WorkerPool) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.closing.Err() != nil {
		return ErrPoolShutdown
	}

	acquireCtx, stop := context.WithCancel(ctx)
	defer stop()
	unhook := context.AfterFunc(p.closing, stop)
	defer unhook()

	p.counters.queued.Add(1)
	err := p.slots.Acquire(acquireCtx, 1)
	p.counters.queued.Add(-1)
	if err != nil {
		if p.closing.Err() != nil {
			return ErrPoolShutdown
		}
		return ctx.Err()
	}

	// Registering under mu keeps Shutdown's Wait from missing this run.
	p.mu.Lock()
	if p.closing.Err() != nil {
		p.mu.Unlock()
		p.slots.Release(1)
		return ErrPoolShutdown
	}
	p.running.Add(1)
	p.mu.Unlock()

	p.counters.active.Add(1)
	go p.execute(ctx, fn)
	return nil
}

func (p *WorkerPool) execute(ctx context.Context, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			p.counters.panics.Add(1)
			p.counters.failed.Add(1)
		}
		p.counters.active.Add(-1)
		p.slots.Release(1)
		p.running.Done()
	}()

	if err := fn(ctx); err != nil {
		p.counters.failed.Add(1)
		return
	}
	p.counters.completed.Add(1)
}

// Wait blocks until all submitted work completes.
func (p *WorkerPool) Wait() {
	p.running.Wait()
}

// Shutdown rejects new submissions, releases queued submitters and waits
// for running work. Calling it again is a no-op.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	p.close()
	p.mu.Unlock()
	p.running.Wait()
}

// Metrics returns a snapshot of the pool counters.
func (p *WorkerPool) Metrics() PoolMetrics {
	return PoolMetrics{
		Queued:    p.counters.queued.Load(),
		Active:    p.counters.active.Load(),
		Completed: p.counters.completed.Load(),
		Failed:    p.counters.failed.Load(),
		Panics:    p.counters.panics.Load(),
	}
}
