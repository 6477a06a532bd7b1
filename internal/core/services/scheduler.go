package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driving"
)

// SweepJob describes one connector swept on a fixed interval.
type SweepJob struct {
	Connector   driven.Connector
	Filter      domain.ItemFilter
	Concurrency int
	// ExpandConcurrency bounds containers expanded at once, e.g. mail
	// messages (default: the enumerator's ExpandConcurrency).
	ExpandConcurrency int
	Interval          time.Duration // Idle time after a sweep completes (default: scheduler PollInterval)
}

// Scheduler runs connector sweeps on a polling loop: one full sweep, then
// idle for the job's interval, then repeat. A sweep is never interrupted by
// the next tick.
//
// For multi-replica deployments, configure a DistributedLock so each
// connector is swept by one instance at a time.
type Scheduler struct {
	enumerator driving.Enumerator
	jobs       []SweepJob
	lock       driven.DistributedLock
	logger     *slog.Logger

	// Internal state
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
	last     map[string]*SweepStatus

	lockTTL time.Duration
}

// SweepStatus is the most recent outcome for a connector.
type SweepStatus struct {
	Result   *domain.SweepResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
	Skipped  bool                `json:"skipped"`
	Finished time.Time           `json:"finished"`
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Enumerator   driving.Enumerator
	Jobs         []SweepJob
	Lock         driven.DistributedLock // Optional: one sweeper per connector across replicas
	Logger       *slog.Logger
	PollInterval time.Duration // Default idle time between sweeps (default: 30m)
	LockTTL      time.Duration // TTL for sweep locks, extended while a sweep runs (default: 5m)
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}

	return &Scheduler{
		enumerator: cfg.Enumerator,
		jobs:       cfg.Jobs,
		lock:       cfg.Lock,
		logger:     logger,
		interval:   interval,
		lockTTL:    lockTTL,
		last:       make(map[string]*SweepStatus),
	}
}

// Start begins one polling loop per job.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "jobs", len(s.jobs), "poll_interval", s.interval)

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job SweepJob) {
			defer wg.Done()
			s.run(ctx, job)
		}(job)
	}

	go func() {
		wg.Wait()
		close(s.doneCh)
	}()

	return nil
}

// Stop stops the polling loops and waits for running sweeps to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// Wait blocks until every polling loop has exited.
func (s *Scheduler) Wait() {
	s.mu.RLock()
	done := s.doneCh
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// run is the polling loop for one job.
func (s *Scheduler) run(ctx context.Context, job SweepJob) {
	interval := job.Interval
	if interval <= 0 {
		interval = s.interval
	}

	for {
		s.sweep(ctx, job)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler context cancelled", "connector", job.Connector.Name())
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunOnce sweeps every job a single time, sequentially.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var failed int
	for _, job := range s.jobs {
		if status := s.sweep(ctx, job); status.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sweeps failed", failed, len(s.jobs))
	}
	return nil
}

// sweep runs one enumeration for job, guarded by the distributed lock if configured.
func (s *Scheduler) sweep(ctx context.Context, job SweepJob) *SweepStatus {
	name := job.Connector.Name()
	lockName := "sweep:" + name
	status := &SweepStatus{}

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, lockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire sweep lock", "connector", name, "error", err)
			status.Skipped = true
			status.Error = err.Error()
			return s.record(name, status)
		}
		if !acquired {
			s.logger.Debug("sweep lock held by another instance, skipping cycle", "connector", name)
			status.Skipped = true
			return s.record(name, status)
		}

		stopKeepAlive := s.keepAlive(ctx, lockName)
		defer func() {
			stopKeepAlive()
			if err := s.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
				s.logger.Warn("failed to release sweep lock", "connector", name, "error", err)
			}
		}()
	}

	// A started sweep runs to completion; shutdown only prevents the next one.
	result, err := s.enumerator.Sweep(context.WithoutCancel(ctx), job.Connector, job.Filter, domain.SweepLimits{
		Items:      job.Concurrency,
		Containers: job.ExpandConcurrency,
	})
	status.Result = result
	if err != nil {
		status.Error = err.Error()
	}
	return s.record(name, status)
}

// keepAlive extends the sweep lock at half its TTL until the returned func is called.
func (s *Scheduler) keepAlive(ctx context.Context, lockName string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(s.lockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := s.lock.Extend(context.WithoutCancel(ctx), lockName, s.lockTTL); err != nil {
					s.logger.Warn("failed to extend sweep lock", "lock", lockName, "error", err)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func (s *Scheduler) record(name string, status *SweepStatus) *SweepStatus {
	status.Finished = time.Now()
	s.mu.Lock()
	s.last[name] = status
	s.mu.Unlock()
	return status
}

// Status returns the latest sweep status per connector.
func (s *Scheduler) Status() map[string]SweepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]SweepStatus, len(s.last))
	for name, st := range s.last {
		out[name] = *st
	}
	return out
}
