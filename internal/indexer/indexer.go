// Package indexer keeps catalog wine embeddings fresh.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
	"golang.org/x/time/rate"

	"github.com/vintry/sommelier/internal/config"
	"github.com/vintry/sommelier/pkg/models"
)

// embedChunkSize is the number of canonical texts sent per provider call.
const embedChunkSize = 100

// WineSource lists catalog wines whose embedding is missing or stale.
type WineSource interface {
	GetWinesNeedingEmbedding(ctx context.Context, staleBefore time.Time, limit int) ([]*models.CatalogWine, error)
}

// Embedder turns canonical texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// EmbeddingSink persists vectors keyed by wine id.
type EmbeddingSink interface {
	Upsert(ctx context.Context, wineID int64, vector []float32, model string) error
}

// Stats summarizes one indexer run.
type Stats struct {
	Scanned  int
	Embedded int
	Skipped  int
}

// Indexer regenerates missing and stale catalog embeddings in bounded
// batches. Runs are idempotent; once every entry is fresh a run scans
// nothing and writes nothing.
type Indexer struct {
	wines     WineSource
	embedder  Embedder
	sink      EmbeddingSink
	limiter   *rate.Limiter
	codec     tokenizer.Codec
	logger    zerolog.Logger
	ttl       time.Duration
	batchSize int
}

// New creates an indexer.
func New(wines WineSource, embedder Embedder, sink EmbeddingSink, cfg *config.Config, logger zerolog.Logger) *Indexer {
	// The cl100k codec ships with the library; failure to load it only
	// disables client-side truncation.
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		codec = nil
	}

	rps := cfg.ProviderRPS
	if rps <= 0 {
		rps = config.DefaultProviderRPS
	}

	return &Indexer{
		wines:     wines,
		embedder:  embedder,
		sink:      sink,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		codec:     codec,
		logger:    logger.With().Str("component", "indexer").Logger(),
		ttl:       cfg.EmbeddingTTL(),
		batchSize: cfg.MaxBatchSize,
	}
}

// Run processes one batch of wines needing embeddings. Provider failures
// skip the affected wines; the next scheduled run retries them. Only store
// and listing errors propagate.
func (ix *Indexer) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	staleBefore := time.Now().Add(-ix.ttl)
	wines, err := ix.wines.GetWinesNeedingEmbedding(ctx, staleBefore, ix.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list wines needing embedding: %w", err)
	}
	stats.Scanned = len(wines)
	if len(wines) == 0 {
		return stats, nil
	}

	for start := 0; start < len(wines); start += embedChunkSize {
		end := start + embedChunkSize
		if end > len(wines) {
			end = len(wines)
		}
		chunk := wines[start:end]

		if err := ix.limiter.Wait(ctx); err != nil {
			return stats, err
		}

		texts := make([]string, len(chunk))
		for i, w := range chunk {
			texts[i] = truncateToTokenBudget(ix.codec, BuildCanonicalText(w))
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			// Skip the whole chunk; staleness tolerance absorbs the delay.
			ix.logger.Warn().Err(err).
				Int("chunk_size", len(chunk)).
				Msg("embedding call failed, chunk deferred to next run")
			stats.Skipped += len(chunk)
			continue
		}

		for i, w := range chunk {
			if i >= len(vectors) || len(vectors[i]) == 0 {
				stats.Skipped++
				continue
			}
			if err := ix.sink.Upsert(ctx, w.ID, vectors[i], ix.embedder.Model()); err != nil {
				return stats, fmt.Errorf("store embedding for wine %d: %w", w.ID, err)
			}
			stats.Embedded++
		}
	}

	ix.logger.Info().
		Int("scanned", stats.Scanned).
		Int("embedded", stats.Embedded).
		Int("skipped", stats.Skipped).
		Msg("embedding index run complete")

	return stats, nil
}
