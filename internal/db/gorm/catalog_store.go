// Package gorm provides GORM-based database operations for sommelier.
package gorm

import (
	"context"
	"strings"
	"time"

	"github.com/vintry/sommelier/pkg/models"
)

// CatalogStore provides read access to catalog wines.
type CatalogStore struct {
	store *Store
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(store *Store) *CatalogStore {
	return &CatalogStore{store: store}
}

// GetWinesNeedingEmbedding returns catalog wines whose embedding is missing
// or older than the staleness cutoff, oldest-embedding-first, capped at limit.
func (s *CatalogStore) GetWinesNeedingEmbedding(ctx context.Context, staleBefore time.Time, limit int) ([]*models.CatalogWine, error) {
	var rows []CatalogWine

	// Missing embeddings first, then oldest. The CASE ordering is portable
	// across postgres and sqlite (NULLS FIRST is not).
	err := s.store.DB.WithContext(ctx).
		Joins("LEFT JOIN catalog_embeddings ON catalog_embeddings.wine_id = catalog_wines.id").
		Where("catalog_embeddings.wine_id IS NULL OR catalog_embeddings.updated_at < ?", staleBefore).
		Order("CASE WHEN catalog_embeddings.wine_id IS NULL THEN 0 ELSE 1 END, catalog_embeddings.updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelWines(rows), nil
}

// GetRecentPricedWines returns the most recent catalog wines that carry a
// price, newest-first, capped at limit. This is the candidate slice for the
// blended scorer.
func (s *CatalogStore) GetRecentPricedWines(ctx context.Context, limit int) ([]*models.CatalogWine, error) {
	var rows []CatalogWine

	err := s.store.DB.WithContext(ctx).
		Where("price > 0").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelWines(rows), nil
}

// CandidateFilters are the SQL-level predicates applied during NL search
// candidate retrieval. Zero fields mean no constraint.
type CandidateFilters struct {
	MinPrice *float64
	MaxPrice *float64
	Regions  []string // matched case-insensitively
	Types    []string
}

// GetFilteredWines returns a bounded most-recent-first candidate slice with
// the given predicates applied in SQL.
func (s *CatalogStore) GetFilteredWines(ctx context.Context, filters CandidateFilters, limit int) ([]*models.CatalogWine, error) {
	q := s.store.DB.WithContext(ctx).Model(&CatalogWine{})

	if filters.MinPrice != nil {
		q = q.Where("price >= ?", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		q = q.Where("price <= ?", *filters.MaxPrice)
	}
	if len(filters.Regions) > 0 {
		q = q.Where("LOWER(region) IN ?", lowerAll(filters.Regions))
	}
	if len(filters.Types) > 0 {
		q = q.Where("LOWER(type) IN ?", lowerAll(filters.Types))
	}

	var rows []CatalogWine
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelWines(rows), nil
}

// GetWinesByIDs returns catalog wines for the given ids, keyed by id.
func (s *CatalogStore) GetWinesByIDs(ctx context.Context, ids []int64) (map[int64]*models.CatalogWine, error) {
	if len(ids) == 0 {
		return map[int64]*models.CatalogWine{}, nil
	}

	var rows []CatalogWine
	err := s.store.DB.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*models.CatalogWine, len(rows))
	for i := range rows {
		out[rows[i].ID] = toModelWine(&rows[i])
	}
	return out, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
