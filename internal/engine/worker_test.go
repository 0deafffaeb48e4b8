package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

// occupy fills every slot of p with a job that blocks until the returned
// release func is called.
func occupy(t *testing.T, p *WorkerPool) (release func()) {
	t.Helper()
	gate := make(chan struct{})
	for range p.Size() {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
			<-gate
			return nil
		}))
	}
	return func() { close(gate) }
}

func TestWorkerPool_Size(t *testing.T) {
	for _, tc := range []struct{ in, want int }{{4, 4}, {1, 1}, {0, 1}, {-3, 1}} {
		p := NewWorkerPool(tc.in)
		assert.Equal(t, tc.want, p.Size(), "NewWorkerPool(%d)", tc.in)
		p.Shutdown()
	}
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	const size = 3
	p := NewWorkerPool(size)
	defer p.Shutdown()

	var running, peak atomic.Int64
	for range 12 {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}
	p.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(size))
	assert.Equal(t, int64(12), p.Metrics().Completed)
}

func TestWorkerPool_QueuesWhileFull(t *testing.T) {
	p := NewWorkerPool(1)
	defer p.Shutdown()
	release := occupy(t, p)

	submitted := make(chan error, 1)
	go func() { submitted <- p.Submit(context.Background(), noop) }()

	require.Eventually(t, func() bool { return p.Metrics().Queued == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), p.Metrics().Active)

	release()
	require.NoError(t, <-submitted)
	p.Wait()
	assert.Equal(t, PoolMetrics{Completed: 2}, p.Metrics())
}

func TestWorkerPool_QueuedSubmitGivesUp(t *testing.T) {
	t.Run("caller context", func(t *testing.T) {
		p := NewWorkerPool(1)
		defer p.Shutdown()
		release := occupy(t, p)
		defer release()

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- p.Submit(ctx, noop) }()
		require.Eventually(t, func() bool { return p.Metrics().Queued == 1 }, time.Second, 5*time.Millisecond)

		cancel()
		assert.ErrorIs(t, <-errCh, context.Canceled)
		assert.Zero(t, p.Metrics().Queued)
	})

	t.Run("shutdown", func(t *testing.T) {
		p := NewWorkerPool(1)
		release := occupy(t, p)

		errCh := make(chan error, 1)
		go func() { errCh <- p.Submit(context.Background(), noop) }()
		require.Eventually(t, func() bool { return p.Metrics().Queued == 1 }, time.Second, 5*time.Millisecond)

		done := make(chan struct{})
		go func() {
			p.Shutdown()
			close(done)
		}()
		assert.ErrorIs(t, <-errCh, ErrPoolShutdown)

		release()
		<-done
		assert.ErrorIs(t, p.Submit(context.Background(), noop), ErrPoolShutdown)
	})
}

func TestWorkerPool_ShutdownDrainsRunningWork(t *testing.T) {
	p := NewWorkerPool(2)

	var finished atomic.Int64
	for range 4 {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
			time.Sleep(10 * time.Millisecond)
			finished.Add(1)
			return nil
		}))
	}
	p.Shutdown()
	assert.Equal(t, int64(4), finished.Load())

	p.Shutdown()
}

func TestWorkerPool_Outcomes(t *testing.T) {
	p := NewWorkerPool(4)
	defer p.Shutdown()

	jobs := []func(context.Context) error{
		noop,
		noop,
		func(context.Context) error { return errors.New("node exploded") },
		func(context.Context) error { panic("boom") },
	}
	for _, job := range jobs {
		require.NoError(t, p.Submit(context.Background(), job))
	}
	p.Wait()

	assert.Equal(t, PoolMetrics{Completed: 2, Failed: 2, Panics: 1}, p.Metrics())

	// a panic does not leak its slot
	release := occupy(t, p)
	release()
	p.Wait()
	assert.Equal(t, int64(6), p.Metrics().Completed)
}
