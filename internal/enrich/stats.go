package enrich

import (
	"sync"
	"time"
)

// StatsSnapshot is an immutable copy of queue counters.
type StatsSnapshot struct {
	Accepted       int64  `json:"accepted"`
	Rejected       int64  `json:"rejected"`
	Completed      int64  `json:"completed"`
	Failed         int64  `json:"failed"`
	Pending        int    `json:"pending"`
	InFlight       int    `json:"in_flight"`
	Workers        int    `json:"workers"`
	Capacity       int    `json:"capacity"`
	LastError      string `json:"last_error,omitempty"`
	UptimeSeconds  int    `json:"uptime_seconds"`
	LastCompletion string `json:"last_completion,omitempty"`
}

// Idle reports whether no job is queued or running.
func (s StatsSnapshot) Idle() bool {
	return s.Pending == 0 && s.InFlight == 0
}

// stats provides thread-safe tracking of queue activity.
type stats struct {
	mu sync.RWMutex

	accepted  int64
	rejected  int64
	completed int64
	failed    int64
	pending   int
	inFlight  int
	lastError string
	lastDone  time.Time
	startTime time.Time
}

func newStats() *stats {
	return &stats{startTime: time.Now()}
}

func (s *stats) accept() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted++
	s.pending++
}

// reject undoes the accept of a job the channel had no room for.
func (s *stats) reject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted--
	s.pending--
	s.rejected++
}

func (s *stats) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	s.inFlight++
}

func (s *stats) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	s.lastDone = time.Now()
	if err != nil {
		s.failed++
		s.lastError = err.Error()
		return
	}
	s.completed++
}

// drop forgets queued jobs discarded at shutdown.
func (s *stats) drop(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending -= n
}

func (s *stats) snapshot(workers, capacity int) StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		Accepted:      s.accepted,
		Rejected:      s.rejected,
		Completed:     s.completed,
		Failed:        s.failed,
		Pending:       s.pending,
		InFlight:      s.inFlight,
		Workers:       workers,
		Capacity:      capacity,
		LastError:     s.lastError,
		UptimeSeconds: int(time.Since(s.startTime).Seconds()),
	}
	if !s.lastDone.IsZero() {
		snap.LastCompletion = s.lastDone.Format(time.RFC3339)
	}
	return snap
}
