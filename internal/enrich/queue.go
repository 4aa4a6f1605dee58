// Package enrich runs post-ingest work in the background: each new
// document is summarized and then added to the similarity index.
//
// Submission guarantees acceptance only. A job that is rejected, dropped at
// shutdown or fails midway leaves the document without a vector, which the
// next reconciliation sync repairs.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanread/internal/config"
)

var (
	// ErrQueueFull is returned by Submit when the buffer is at capacity.
	ErrQueueFull = errors.New("enrichment queue is full")

	// ErrQueueClosed is returned by Submit after Stop.
	ErrQueueClosed = errors.New("enrichment queue is closed")
)

const (
	DefaultWorkers   = 2
	DefaultQueueSize = 64

	drainPollInterval = 10 * time.Millisecond
)

// Job asks for one document to be enriched.
type Job struct {
	DocumentID string
	Submitted  time.Time
}

// Processor does the work for a job.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }

// QueueConfig sizes a Queue.
type QueueConfig struct {
	Workers   int
	QueueSize int
}

// QueueConfigFrom maps the enrichment section of the configuration.
func QueueConfigFrom(cfg config.EnrichmentConfig) QueueConfig {
	return QueueConfig{Workers: cfg.Workers, QueueSize: cfg.QueueSize}
}

// Queue is a bounded job buffer drained by a fixed pool of workers.
type Queue struct {
	processor Processor
	config    QueueConfig
	jobs      chan Job
	stats     *stats

	mu      sync.RWMutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewQueue creates a queue. Jobs are buffered until Start.
func NewQueue(p Processor, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Queue{
		processor: p,
		config:    cfg,
		jobs:      make(chan Job, cfg.QueueSize),
		stats:     newStats(),
		done:      make(chan struct{}),
	}
}

// Start launches the workers. Cancelling ctx aborts in-flight jobs.
// Calling Start more than once has no effect.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for i := range q.config.Workers {
		g.Go(func() error {
			q.work(gctx, i)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(q.done)
	}()

	slog.Debug("enrichment_started",
		slog.Int("workers", q.config.Workers),
		slog.Int("queue_size", q.config.QueueSize))
}

// Submit enqueues a job without blocking.
func (q *Queue) Submit(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if job.Submitted.IsZero() {
		job.Submitted = time.Now()
	}

	// Counted before the send so a worker never starts an unaccounted job.
	q.stats.accept()
	select {
	case q.jobs <- job:
		return nil
	default:
		q.stats.reject()
		return ErrQueueFull
	}
}

func (q *Queue) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.run(ctx, worker, job)
		}
	}
}

func (q *Queue) run(ctx context.Context, worker int, job Job) {
	q.stats.start()
	start := time.Now()

	err := safeProcess(ctx, q.processor, job)
	q.stats.finish(err)

	if err != nil {
		slog.Warn("enrichment_failed",
			slog.String("document_id", job.DocumentID),
			slog.Int("worker", worker),
			slog.String("error", err.Error()))
		return
	}
	slog.Debug("enrichment_complete",
		slog.String("document_id", job.DocumentID),
		slog.Int("worker", worker),
		slog.Duration("duration", time.Since(start)),
		slog.Duration("queued", start.Sub(job.Submitted)))
}

func safeProcess(ctx context.Context, p Processor, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment panicked: %v", r)
		}
	}()
	return p.Process(ctx, job)
}

// Drain blocks until no job is queued or running, or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		if q.Stats().Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop closes intake and waits for the workers to finish the buffered
// jobs. When ctx ends first the workers are cancelled, remaining jobs are
// dropped, and ctx's error is returned.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	started := q.started
	cancel := q.cancel
	q.mu.Unlock()

	if !started {
		q.discard()
		return nil
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		cancel()
		<-q.done
		if n := q.discard(); n > 0 {
			slog.Info("enrichment_jobs_dropped", slog.Int("count", n))
		}
		return ctx.Err()
	}
}

// discard empties the closed buffer and returns how many jobs it held.
func (q *Queue) discard() int {
	n := 0
	for range q.jobs {
		n++
	}
	q.stats.drop(n)
	return n
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() StatsSnapshot {
	return q.stats.snapshot(q.config.Workers, q.config.QueueSize)
}
