/*
scheduler.go - Automated engagement sync scheduler

PURPOSE:
  Periodically reconciles the current month's ledger with active engagements,
  so a newly signed Creative-Boost line shows up on the ledger without anyone
  pressing "sync".

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Syncs the month containing "now" as the system actor
  - The sync is idempotent, so overlapping manual syncs are harmless

CONFIGURATION:
  - CheckInterval: How often to sync (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSyncScheduler(service, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: SyncEngagements endpoint (manual sync)
  - credits/sync.go: EnsureClientMonthsForActiveEngagements
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/creative-boost/credits"
)

// Syncer runs one reconciliation pass.
type Syncer interface {
	EnsureClientMonthsForActiveEngagements(ctx context.Context, actor credits.Actor, p credits.Period) (credits.SyncResult, error)
}

// SyncScheduler runs the engagement sync on a ticker.
type SyncScheduler struct {
	Syncer        Syncer
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(syncer Syncer, logger *zap.Logger) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		Syncer:        syncer,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler does nothing.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("sync scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("sync scheduler started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("sync scheduler stopped")
	}
}

func (s *SyncScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RunOnce syncs the current month. Errors are logged and returned.
func (s *SyncScheduler) RunOnce(ctx context.Context) (credits.SyncResult, error) {
	p := credits.PeriodOf(s.Now())

	res, err := s.Syncer.EnsureClientMonthsForActiveEngagements(ctx, credits.SystemActor, p)
	if err != nil {
		s.Logger.Error("scheduled sync failed", zap.String("period", p.String()), zap.Error(err))
		return res, err
	}

	if res.Created > 0 || res.Linked > 0 {
		s.Logger.Info("scheduled sync completed",
			zap.String("period", p.String()),
			zap.Int("created", res.Created),
			zap.Int("linked", res.Linked),
			zap.Int("skipped", res.Skipped))
	}
	return res, nil
}
