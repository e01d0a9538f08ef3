// Package scheduler runs the background workers this
// describes: a pending-scheduled-message poller, a daily re-engagement and
// dormancy sweep, and an outbox drainer for transactional notifications.
// None of it is reachable from the HTTP surface; cmd/worker is its only
// caller.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tulia-commerce/convoapi/internal/dispatcher"
	"github.com/tulia-commerce/convoapi/internal/store"
)

// Service owns the poll loop, the cron-scheduled daily sweep, and the
// outbox drainer. One Service runs per worker process.
type Service struct {
	tenants       *store.TenantStore
	conversations *store.ConversationStore
	scheduling    *store.SchedulingStore
	outbox        *store.OutboxStore
	dispatch      *dispatcher.Dispatcher
	log           zerolog.Logger

	// PollInterval governs the pending-scheduled-message worker; it must
	// resolve at 60s or finer.
	PollInterval time.Duration
	// SweepSchedule is a standard 5-field cron expression for the daily
	// re-engagement/dormancy sweep.
	SweepSchedule string
	// OutboxInterval governs the transactional-outbox drainer.
	OutboxInterval time.Duration
	// BatchSize caps how many rows each poll tick claims.
	BatchSize int

	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New builds a Service with the usual promauto/zerolog conventions
// already wired through the injected dispatcher and stores.
func New(tenants *store.TenantStore, conversations *store.ConversationStore, scheduling *store.SchedulingStore, outbox *store.OutboxStore, dispatch *dispatcher.Dispatcher, log zerolog.Logger) *Service {
	return &Service{
		tenants:        tenants,
		conversations:  conversations,
		scheduling:     scheduling,
		outbox:         outbox,
		dispatch:       dispatch,
		log:            log,
		PollInterval:   30 * time.Second,
		SweepSchedule:  "0 3 * * *",
		OutboxInterval: 10 * time.Second,
		BatchSize:      100,
	}
}

// Start launches the poll loop, the outbox drainer, and registers the daily
// sweep with a cron runner that skips overlapping runs (
// cron.SkipIfStillRunning chain).
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler: already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := s.cron.AddFunc(s.SweepSchedule, func() {
		if err := s.runDailySweep(runCtx); err != nil {
			s.log.Error().Err(err).Msg("daily re-engagement/dormancy sweep failed")
		}
	}); err != nil {
		cancel()
		return err
	}
	s.cron.Start()

	s.wg.Add(2)
	go s.runPollLoop(runCtx)
	go s.runOutboxLoop(runCtx)

	s.started = true
	s.log.Info().
		Dur("pollInterval", s.PollInterval).
		Str("sweepSchedule", s.SweepSchedule).
		Msg("scheduler started")
	return nil
}

// Stop cancels the background loops and waits for the current tick of each
// to finish, then stops cron.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	cronDone := s.cron.Stop()
	select {
	case <-cronDone.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.started = false
	s.log.Info().Msg("scheduler stopped")
	return nil
}

func (s *Service) runPollLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.dispatchDue(ctx); err != nil {
				s.log.Error().Err(err).Msg("pending scheduled-message poll failed")
			}
		}
	}
}

func (s *Service) runOutboxLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.OutboxInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.drainOutbox(ctx); err != nil {
				s.log.Error().Err(err).Msg("outbox drain failed")
			}
		}
	}
}
