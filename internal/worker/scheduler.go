package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vintry/sommelier/internal/config"
	"github.com/vintry/sommelier/internal/indexer"
	"github.com/vintry/sommelier/internal/profile"
	"github.com/vintry/sommelier/internal/reranker"
)

// UserLister enumerates users eligible for a profile refresh.
type UserLister interface {
	ListUsersWithRatedBottles(ctx context.Context) ([]int64, error)
}

// ExpiredCleaner removes expired recommendation rows.
type ExpiredCleaner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler runs the periodic batch jobs: the embedding indexer, the
// per-user profile+rerank refresh pipeline, and expired-row cleanup. Each
// job is idempotent, so a missed or doubled tick is harmless.
type Scheduler struct {
	indexer  *indexer.Indexer
	builder  *profile.Builder
	reranker *reranker.Reranker
	users    UserLister
	cleaner  ExpiredCleaner
	logger   zerolog.Logger

	indexerInterval time.Duration
	refreshInterval time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewScheduler creates the batch scheduler.
func NewScheduler(ix *indexer.Indexer, builder *profile.Builder, rr *reranker.Reranker, users UserLister, cleaner ExpiredCleaner, cfg *config.Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		indexer:         ix,
		builder:         builder,
		reranker:        rr,
		users:           users,
		cleaner:         cleaner,
		logger:          log.With().Str("component", "scheduler").Logger(),
		indexerInterval: time.Duration(cfg.IndexerIntervalHours) * time.Hour,
		refreshInterval: time.Duration(cfg.RefreshIntervalHours) * time.Hour,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start begins the scheduling loop. It blocks until Stop is called or the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneCh)
	}()

	s.logger.Info().
		Dur("indexer_interval", s.indexerInterval).
		Dur("refresh_interval", s.refreshInterval).
		Msg("scheduler starting")

	// Index on startup so a fresh deployment gets embeddings promptly.
	s.runIndexer(ctx)

	indexTicker := time.NewTicker(s.indexerInterval)
	defer indexTicker.Stop()
	refreshTicker := time.NewTicker(s.refreshInterval)
	defer refreshTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler shutting down, context cancelled")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("scheduler shutting down, stop signal")
			return
		case <-indexTicker.C:
			s.runIndexer(ctx)
			s.cleanupExpired(ctx)
		case <-refreshTicker.C:
			s.runRefreshAll(ctx)
		}
	}
}

// Stop signals the scheduler to stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
}

// Wait blocks until the scheduling loop has exited.
func (s *Scheduler) Wait() {
	<-s.doneCh
}

func (s *Scheduler) runIndexer(ctx context.Context) {
	stats, err := s.indexer.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("indexer run failed")
		return
	}
	if stats.Scanned > 0 {
		s.logger.Info().
			Int("embedded", stats.Embedded).
			Int("skipped", stats.Skipped).
			Msg("indexer run complete")
	}
}

// runRefreshAll rebuilds every eligible user's profile and recommendations.
// A single user's failure is logged and does not abort the pass.
func (s *Scheduler) runRefreshAll(ctx context.Context) {
	runID := uuid.NewString()
	log := s.logger.With().Str("run_id", runID).Logger()

	users, err := s.users.ListUsersWithRatedBottles(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list users for refresh failed")
		return
	}

	var failed int
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if err := s.RefreshUser(ctx, userID); err != nil {
			failed++
			log.Error().Err(err).Int64("user_id", userID).Msg("user refresh failed")
		}
	}

	log.Info().
		Int("users", len(users)).
		Int("failed", failed).
		Msg("refresh pass complete")
}

// RefreshUser rebuilds one user's profile, then their recommendations.
func (s *Scheduler) RefreshUser(ctx context.Context, userID int64) error {
	if _, err := s.builder.Build(ctx, userID); err != nil {
		return err
	}
	return s.reranker.RefreshUser(ctx, userID)
}

func (s *Scheduler) cleanupExpired(ctx context.Context) {
	removed, err := s.cleaner.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("expired recommendation cleanup failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("expired recommendations purged")
	}
}
