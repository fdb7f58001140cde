// Package gorm provides GORM-based database operations for sommelier.
package gorm

import (
	"context"
	"time"

	pgvec "github.com/pgvector/pgvector-go"
	"gorm.io/gorm/clause"
)

// EmbeddingStore persists per-wine catalog embeddings.
type EmbeddingStore struct {
	store *Store
}

// NewEmbeddingStore creates a new EmbeddingStore.
func NewEmbeddingStore(store *Store) *EmbeddingStore {
	return &EmbeddingStore{store: store}
}

// Upsert writes one embedding per wine, replacing any existing row in place.
func (s *EmbeddingStore) Upsert(ctx context.Context, wineID int64, vector []float32, model string) error {
	row := WineEmbedding{
		WineID:    wineID,
		Embedding: pgvec.NewVector(vector),
		Model:     model,
		UpdatedAt: time.Now().UTC(),
	}

	return s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wine_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "model", "updated_at"}),
		}).
		Create(&row).Error
}

// GetByWineIDs returns stored embeddings for the given wines, keyed by wine id.
// Wines with no stored embedding are simply absent from the result.
func (s *EmbeddingStore) GetByWineIDs(ctx context.Context, ids []int64) (map[int64][]float32, error) {
	if len(ids) == 0 {
		return map[int64][]float32{}, nil
	}

	var rows []WineEmbedding
	err := s.store.DB.WithContext(ctx).
		Where("wine_id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64][]float32, len(rows))
	for i := range rows {
		out[rows[i].WineID] = rows[i].Embedding.Slice()
	}
	return out, nil
}

// Count returns the number of stored embeddings.
func (s *EmbeddingStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.store.DB.WithContext(ctx).Model(&WineEmbedding{}).Count(&n).Error
	return n, err
}

// CountStale returns the number of embeddings older than the cutoff.
func (s *EmbeddingStore) CountStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	var n int64
	err := s.store.DB.WithContext(ctx).
		Model(&WineEmbedding{}).
		Where("updated_at < ?", staleBefore).
		Count(&n).Error
	return n, err
}
