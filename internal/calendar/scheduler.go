package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/storage/models"
	"github.com/plan-sync/backend/internal/token"
)

// Sweeper refreshes credentials whose access tokens expire within horizon.
type Sweeper interface {
	SweepExpiring(ctx context.Context, providerName string, horizon time.Duration) (int, error)
}

// Scheduler runs the periodic token refresh sweep.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	provider string
	interval time.Duration

	mu      sync.RWMutex
	entryID cron.EntryID
	lastRun time.Time
}

// NewScheduler creates a refresh scheduler that sweeps every interval,
// ten minutes when interval is not positive.
func NewScheduler(sweeper Sweeper, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper:  sweeper,
		provider: models.ProviderMicrosoft,
		interval: interval,
	}
}

// Start schedules the sweep and starts the cron runner. ctx bounds each sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := minutesToCronSpec(s.interval)

	id, err := s.cron.AddFunc(spec, func() {
		s.RunNow(ctx)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entryID = id
	s.mu.Unlock()

	s.cron.Start()
	log.Info().Dur("interval", s.interval).Str("provider", s.provider).Msg("token refresh scheduler started")
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running sweep.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("token refresh scheduler stopped")
}

// Horizon is how far ahead the sweep looks. Tokens expiring before the next
// tick plus the refresh margin are renewed now.
func (s *Scheduler) Horizon() time.Duration {
	return s.interval + token.RefreshMargin
}

// RunNow performs one sweep and returns the number of refreshed credentials.
func (s *Scheduler) RunNow(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	n, err := s.sweeper.SweepExpiring(ctx, s.provider, s.Horizon())

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Int("refreshed", n).Msg("token refresh sweep finished with errors")
		return n
	}
	if n > 0 {
		log.Info().Int("refreshed", n).Msg("token refresh sweep")
	}
	return n
}

// NextRun returns the next scheduled sweep, or nil if not started.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}
	entry := s.cron.Entry(s.entryID)
	if entry.Next.IsZero() {
		return nil
	}
	return &entry.Next
}

// LastRun returns when the last sweep finished, or nil.
func (s *Scheduler) LastRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastRun.IsZero() {
		return nil
	}
	t := s.lastRun
	return &t
}

func minutesToCronSpec(d time.Duration) string {
	return "@every " + d.String()
}
