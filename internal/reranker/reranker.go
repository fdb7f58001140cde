// Package reranker curates recommendation lists with an LLM, falling back to
// the deterministic pre-score ranking when the model misbehaves.
package reranker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vintry/sommelier/internal/config"
	"github.com/vintry/sommelier/internal/llm"
	"github.com/vintry/sommelier/internal/scoring"
	"github.com/vintry/sommelier/pkg/models"
)

// rankDecay spaces consecutive recommendation scores.
const rankDecay = 0.02

// ProfileSource loads stored taste profiles.
type ProfileSource interface {
	Get(ctx context.Context, userID int64) (*models.TasteProfile, error)
}

// CandidateSource supplies the bounded candidate slice.
type CandidateSource interface {
	GetRecentPricedWines(ctx context.Context, limit int) ([]*models.CatalogWine, error)
}

// RecommendationSink atomically replaces a user's recommendation set for one
// source tag.
type RecommendationSink interface {
	ReplaceForUser(ctx context.Context, userID int64, source models.RecommendationSource, recs []*models.Recommendation) error
}

// ChatClient issues one completion call.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Reranker refreshes one user's recommendation set: score candidates, ask
// the model to curate, persist atomically. Every model failure degrades to
// the deterministic ranking; a refresh never returns an LLM error.
type Reranker struct {
	profiles ProfileSource
	catalog  CandidateSource
	scorer   *scoring.Scorer
	chat     ChatClient
	recs     RecommendationSink
	logger   zerolog.Logger

	candidateLimit int
	poolSize       int
	maxPicks       int
	ttl            time.Duration
}

// New creates a reranker.
func New(profiles ProfileSource, catalog CandidateSource, scorer *scoring.Scorer, chat ChatClient, recs RecommendationSink, cfg *config.Config, logger zerolog.Logger) *Reranker {
	return &Reranker{
		profiles:       profiles,
		catalog:        catalog,
		scorer:         scorer,
		chat:           chat,
		recs:           recs,
		logger:         logger.With().Str("component", "reranker").Logger(),
		candidateLimit: cfg.CandidateLimit,
		poolSize:       cfg.RerankPoolSize,
		maxPicks:       cfg.RerankMaxPicks,
		ttl:            cfg.RecommendationTTL(),
	}
}

// RefreshUser rebuilds the user's recommendations. On model success the new
// curated set replaces all prior rerank rows in one transaction. On any model
// failure the deterministic top picks replace the heuristic set instead,
// leaving previously curated rows untouched until they expire.
func (r *Reranker) RefreshUser(ctx context.Context, userID int64) error {
	p, err := r.profiles.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile for user %d: %w", userID, err)
	}

	wines, err := r.catalog.GetRecentPricedWines(ctx, r.candidateLimit)
	if err != nil {
		return fmt.Errorf("load candidates for user %d: %w", userID, err)
	}

	pool := r.scorer.ScoreCandidates(p, wines, r.poolSize)
	if len(pool) == 0 {
		// An empty catalog clears both sets rather than erroring.
		if err := r.recs.ReplaceForUser(ctx, userID, models.SourceRerank, nil); err != nil {
			return err
		}
		return r.recs.ReplaceForUser(ctx, userID, models.SourceHeuristic, nil)
	}

	picks, curated := r.curate(ctx, userID, p, pool)

	now := time.Now()
	expiry := now.Add(r.ttl)

	source := models.SourceRerank
	if !curated {
		source = models.SourceHeuristic
	}

	recs := make([]*models.Recommendation, len(picks))
	for rank, pick := range picks {
		recs[rank] = &models.Recommendation{
			UserID:      userID,
			WineID:      pick.WineID,
			Score:       1.0 - float64(rank)*rankDecay,
			Reason:      pick.Reason,
			Source:      source,
			GeneratedAt: now,
			ExpiresAt:   expiry,
		}
	}

	if err := r.recs.ReplaceForUser(ctx, userID, source, recs); err != nil {
		return fmt.Errorf("replace %s recommendations for user %d: %w", source, userID, err)
	}
	if curated {
		// A successful curation supersedes any earlier fallback set.
		if err := r.recs.ReplaceForUser(ctx, userID, models.SourceHeuristic, nil); err != nil {
			return fmt.Errorf("clear heuristic recommendations for user %d: %w", userID, err)
		}
	}

	r.logger.Info().
		Int64("user_id", userID).
		Int("pool", len(pool)).
		Int("picks", len(picks)).
		Bool("curated", curated).
		Msg("recommendations refreshed")

	return nil
}

// curate runs the single LLM call and falls back to the pre-score order on
// any failure. The bool reports whether the model's selection was used.
func (r *Reranker) curate(ctx context.Context, userID int64, p *models.TasteProfile, pool []*scoring.Candidate) ([]rerankPick, bool) {
	userPrompt, err := buildUserPrompt(p, pool)
	if err != nil {
		r.logger.Warn().Err(err).Int64("user_id", userID).Msg("payload build failed, using fallback ranking")
		return fallbackPicks(pool, r.maxPicks), false
	}

	content, err := r.chat.Complete(ctx, fmt.Sprintf(systemPrompt, r.maxPicks), userPrompt)
	if err != nil {
		r.logger.Warn().Err(err).Int64("user_id", userID).Msg("rerank call failed, using fallback ranking")
		return fallbackPicks(pool, r.maxPicks), false
	}

	picks, ok := parsePicks(llm.StripFences(content), pool, r.maxPicks)
	if !ok {
		r.logger.Warn().Int64("user_id", userID).Msg("rerank response unusable, using fallback ranking")
		return fallbackPicks(pool, r.maxPicks), false
	}
	return picks, true
}

// fallbackPicks takes the pool's deterministic head, reusing each
// candidate's pre-score rationale as the user-facing reason.
func fallbackPicks(pool []*scoring.Candidate, maxPicks int) []rerankPick {
	n := len(pool)
	if n > maxPicks {
		n = maxPicks
	}
	picks := make([]rerankPick, n)
	for i := 0; i < n; i++ {
		picks[i] = rerankPick{WineID: pool[i].Wine.ID, Reason: pool[i].Rationale}
	}
	return picks
}
