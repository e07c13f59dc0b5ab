// Package scheduler fires the daily full sync and guarantees that a
// horizontally-scaled deployment runs at most one pass cluster-wide.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const lockKey = "crawler:sync:lock"

// Locker is the distributed mutual-exclusion primitive: set-if-absent with
// TTL plus compare-and-delete. The Redis client satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}

// Syncer is the full-sync entry point the scheduler drives.
type Syncer interface {
	SyncAll(ctx context.Context) error
}

type Scheduler struct {
	logger  *slog.Logger
	locker  Locker
	syncer  Syncer
	hour    int           // local hour of day to fire
	lockTTL time.Duration // comfortably longer than a full sync

	// in-process guard; one replica never overlaps its own runs even when
	// the external lock has expired under it
	running atomic.Bool

	now   func() time.Time
	sleep func(d time.Duration, done <-chan struct{}) bool
}

func New(logger *slog.Logger, locker Locker, syncer Syncer, hour int, lockTTL time.Duration) *Scheduler {
	return &Scheduler{
		logger:  logger,
		locker:  locker,
		syncer:  syncer,
		hour:    hour,
		lockTTL: lockTTL,
		now:     time.Now,
		sleep:   sleepOrDone,
	}
}

// Run blocks, firing the sync at the configured hour every day until the
// context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler_started", "hour", s.hour, "lock_ttl", s.lockTTL.String())

	for {
		wait := s.untilNextFire()
		s.logger.Info("scheduler_sleeping", "next_fire_in", wait.String())

		if !s.sleep(wait, ctx.Done()) {
			s.logger.Info("scheduler_stopped")
			return
		}

		runCtx, cancel := context.WithTimeout(ctx, s.lockTTL)
		s.RunOnce(runCtx)
		cancel()
	}
}

// RunOnce attempts a single cluster-exclusive sync pass. Losing either the
// in-process guard or the distributed lock is a normal skip, not an error.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("sync_already_running_on_replica")
		return
	}
	defer s.running.Store(false)

	token := uuid.NewString()
	acquired, err := s.locker.AcquireLock(ctx, lockKey, token, s.lockTTL)
	if err != nil {
		s.logger.Error("sync_lock_acquire_failed", "error", err)
		return
	}
	if !acquired {
		s.logger.Warn("sync_lock_held_elsewhere")
		return
	}

	defer func() {
		released, err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token)
		if err != nil {
			s.logger.Warn("sync_lock_release_failed", "error", err)
		} else if !released {
			// expired and reacquired by someone else; their lock stays
			s.logger.Warn("sync_lock_not_ours_anymore")
		}
	}()

	s.logger.Info("full_sync_started")
	start := s.now()

	if err := s.syncer.SyncAll(ctx); err != nil {
		s.logger.Error("full_sync_failed", "error", err)
		return
	}

	s.logger.Info("full_sync_finished", "elapsed", s.now().Sub(start).String())
}

// untilNextFire computes the wait until the next hour:00 boundary, always in
// the future so a fire at exactly hour:00 schedules tomorrow's run.
func (s *Scheduler) untilNextFire() time.Duration {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// sleepOrDone waits for d; returns false when done fires first.
func sleepOrDone(d time.Duration, done <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}
