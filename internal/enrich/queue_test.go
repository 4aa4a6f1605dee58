package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedProcessor blocks every job until release is closed.
type gatedProcessor struct {
	release chan struct{}
	started chan string
	mu      sync.Mutex
	done    []string
}

func newGatedProcessor() *gatedProcessor {
	return &gatedProcessor{release: make(chan struct{}), started: make(chan string, 16)}
}

func (g *gatedProcessor) Process(ctx context.Context, job Job) error {
	g.started <- job.DocumentID
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	g.done = append(g.done, job.DocumentID)
	g.mu.Unlock()
	return nil
}

func TestQueue_SubmitRejectsWhenFull(t *testing.T) {
	// Given: an unstarted queue with room for two jobs
	q := NewQueue(ProcessorFunc(func(context.Context, Job) error { return nil }), QueueConfig{Workers: 1, QueueSize: 2})

	// When: submitting three jobs
	require.NoError(t, q.Submit(Job{DocumentID: "a"}))
	require.NoError(t, q.Submit(Job{DocumentID: "b"}))
	err := q.Submit(Job{DocumentID: "c"})

	// Then: the third is rejected and counted
	assert.ErrorIs(t, err, ErrQueueFull)
	stats := q.Stats()
	assert.Equal(t, int64(2), stats.Accepted)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 2, stats.Capacity)
}

func TestQueue_ProcessesAndDrains(t *testing.T) {
	// Given: a started queue with a counting processor
	var processed atomic.Int32
	q := NewQueue(ProcessorFunc(func(context.Context, Job) error {
		processed.Add(1)
		return nil
	}), QueueConfig{Workers: 3, QueueSize: 10})
	q.Start(context.Background())
	defer func() { _ = q.Stop(context.Background()) }()

	// When: submitting five jobs and draining
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, q.Submit(Job{DocumentID: id}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Drain(ctx))

	// Then: every job ran exactly once
	assert.Equal(t, int32(5), processed.Load())
	stats := q.Stats()
	assert.Equal(t, int64(5), stats.Completed)
	assert.True(t, stats.Idle())
	assert.NotEmpty(t, stats.LastCompletion)
}

func TestQueue_FailuresAndPanicsAreCounted(t *testing.T) {
	q := NewQueue(ProcessorFunc(func(_ context.Context, job Job) error {
		switch job.DocumentID {
		case "panic":
			panic("boom")
		case "fail":
			return assert.AnError
		}
		return nil
	}), QueueConfig{Workers: 1, QueueSize: 4})
	q.Start(context.Background())

	require.NoError(t, q.Submit(Job{DocumentID: "fail"}))
	require.NoError(t, q.Submit(Job{DocumentID: "panic"}))
	require.NoError(t, q.Submit(Job{DocumentID: "ok"}))
	require.NoError(t, q.Stop(context.Background()))

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Contains(t, stats.LastError, "boom")
}

func TestQueue_StopClosesIntake(t *testing.T) {
	q := NewQueue(ProcessorFunc(func(context.Context, Job) error { return nil }), QueueConfig{})
	q.Start(context.Background())

	require.NoError(t, q.Stop(context.Background()))
	require.NoError(t, q.Stop(context.Background()))

	assert.ErrorIs(t, q.Submit(Job{DocumentID: "late"}), ErrQueueClosed)
}

func TestQueue_StopDeadlineDropsBufferedJobs(t *testing.T) {
	// Given: one worker blocked on its first job, and two more buffered
	p := newGatedProcessor()
	q := NewQueue(p, QueueConfig{Workers: 1, QueueSize: 4})
	q.Start(context.Background())
	require.NoError(t, q.Submit(Job{DocumentID: "a"}))
	<-p.started
	require.NoError(t, q.Submit(Job{DocumentID: "b"}))
	require.NoError(t, q.Submit(Job{DocumentID: "c"}))

	// When: stopping with a short deadline
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Stop(ctx)

	// Then: the in-flight job is cancelled and nothing is left pending
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	stats := q.Stats()
	assert.True(t, stats.Idle())
	assert.Empty(t, p.done)
}

func TestQueue_StopWithoutStartDiscards(t *testing.T) {
	q := NewQueue(ProcessorFunc(func(context.Context, Job) error { return nil }), QueueConfig{QueueSize: 4})
	require.NoError(t, q.Submit(Job{DocumentID: "a"}))

	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, 0, q.Stats().Pending)
}

func TestQueue_DrainHonoursContext(t *testing.T) {
	p := newGatedProcessor()
	q := NewQueue(p, QueueConfig{Workers: 1, QueueSize: 1})
	q.Start(context.Background())
	defer func() {
		close(p.release)
		_ = q.Stop(context.Background())
	}()
	require.NoError(t, q.Submit(Job{DocumentID: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Drain(ctx), context.DeadlineExceeded)
}

func TestStats_RejectUndoesAccept(t *testing.T) {
	s := newStats()

	s.accept()
	s.reject()

	snap := s.snapshot(1, 1)
	assert.Equal(t, int64(0), snap.Accepted)
	assert.Equal(t, int64(1), snap.Rejected)
	assert.Equal(t, 0, snap.Pending)
}

func TestQueue_PendingNeverNegative(t *testing.T) {
	// Given: a started queue whose workers finish jobs immediately
	q := NewQueue(ProcessorFunc(func(context.Context, Job) error { return nil }), QueueConfig{Workers: 4, QueueSize: 8})
	q.Start(context.Background())
	defer func() { _ = q.Stop(context.Background()) }()

	// When: sampling stats while jobs are submitted and picked up
	stop := make(chan struct{})
	var minPending atomic.Int64
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if p := int64(q.Stats().Pending); p < minPending.Load() {
				minPending.Store(p)
			}
		}
	}()
	for i := range 500 {
		_ = q.Submit(Job{DocumentID: string(rune('a' + i%26))})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Drain(ctx))
	close(stop)
	<-sampled

	// Then: pending was never observed below zero
	assert.Equal(t, int64(0), minPending.Load())
	assert.Equal(t, 0, q.Stats().Pending)
}
