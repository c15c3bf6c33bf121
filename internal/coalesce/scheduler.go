// Package coalesce runs an asynchronous job in response to invalidation
// signals, collapsing any number of signals into at most one running and one
// pending execution.
package coalesce

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Job is the work triggered by invalidations. The context is cancelled when
// the scheduler is closed.
type Job func(ctx context.Context) error

// Stats reports scheduler activity.
type Stats struct {
	Runs      uint64 // job executions started
	Coalesced uint64 // invalidations absorbed by an already pending run
	Failures  uint64 // runs that returned an error or panicked
}

// Scheduler serializes executions of a Job.
//
// Invalidate never blocks. If no run is active, one starts immediately. If a
// run is active, a single follow-up run is scheduled; further invalidations
// before that follow-up starts are absorbed. The follow-up starts after the
// active run returns, so it observes everything published before the last
// Invalidate call.
type Scheduler struct {
	job    Job
	logger *zap.Logger
	name   string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	pending bool
	closed  bool
	idle    []chan struct{} // closed when the scheduler next becomes idle
	stats   Stats
	done    sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for job failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithName labels log entries for this scheduler.
func WithName(name string) Option {
	return func(s *Scheduler) { s.name = name }
}

// New creates an idle scheduler for job.
func New(job Job, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		job:    job,
		logger: zap.NewNop(),
		name:   "job",
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(zap.String("component", "scheduler"), zap.String("job", s.name))
	return s
}

// Invalidate requests a run. Safe to call from any goroutine.
func (s *Scheduler) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.running {
		if s.pending {
			s.stats.Coalesced++
			return
		}
		s.pending = true
		s.logger.Debug("run pending")
		return
	}
	s.startLocked()
}

// Wait blocks until no run is active or pending, or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	if !s.running && !s.pending {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.idle = append(s.idle, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting invalidations, cancels the job context and waits for
// an in-flight run to return. A pending follow-up run is discarded.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = false
	s.mu.Unlock()

	s.cancel()
	s.done.Wait()
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) startLocked() {
	s.running = true
	s.stats.Runs++
	s.done.Add(1)
	go s.loop()
}

// loop executes the job until no follow-up is pending.
func (s *Scheduler) loop() {
	defer s.done.Done()

	for {
		err := s.safeRun()

		s.mu.Lock()
		if err != nil {
			s.stats.Failures++
		}
		if s.pending && !s.closed {
			s.pending = false
			s.stats.Runs++
			s.mu.Unlock()
			if err != nil {
				s.logger.Warn("job failed", zap.Error(err))
			}
			continue
		}
		s.running = false
		waiters := s.idle
		s.idle = nil
		s.mu.Unlock()

		if err != nil {
			s.logger.Warn("job failed", zap.Error(err))
		}
		for _, ch := range waiters {
			close(ch)
		}
		return
	}
}

// safeRun executes the job and converts a panic into an error.
func (s *Scheduler) safeRun() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return s.job(s.ctx)
}
