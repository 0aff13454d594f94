package storage

import (
	"context"
	"time"
)

// CleanupScheduler runs a Cleaner once immediately and then every Interval
// until its context is cancelled.
type CleanupScheduler struct {
	Cleaner *Cleaner

	// ExcludeID is never removed; usually the current session.
	ExcludeID string

	// Interval <= 0 means only the initial run.
	Interval time.Duration

	// NewTicker overrides time.NewTicker in tests.
	NewTicker func(d time.Duration) (tick <-chan time.Time, stop func())
}

// Run blocks until ctx is done. Cleanup failures are logged by the cleaner's
// logger and otherwise ignored.
func (s *CleanupScheduler) Run(ctx context.Context) {
	s.runOnce()

	if s.Interval <= 0 {
		<-ctx.Done()
		return
	}

	newTicker := s.NewTicker
	if newTicker == nil {
		newTicker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	tick, stop := newTicker(s.Interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.runOnce()
		}
	}
}

func (s *CleanupScheduler) runOnce() {
	if _, err := s.Cleaner.ExecuteCleanup(s.ExcludeID); err != nil {
		s.Cleaner.logger().Debug("scheduled session cleanup skipped", "error", err)
	}
}
