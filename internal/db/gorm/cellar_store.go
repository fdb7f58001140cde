// Package gorm provides GORM-based database operations for sommelier.
package gorm

import (
	"context"

	"github.com/vintry/sommelier/pkg/models"
)

// CellarStore provides read access to user inventory bottles.
type CellarStore struct {
	store *Store
}

// NewCellarStore creates a new CellarStore.
func NewCellarStore(store *Store) *CellarStore {
	return &CellarStore{store: store}
}

// GetRatedBottles returns the user's bottles that carry a rating.
func (s *CellarStore) GetRatedBottles(ctx context.Context, userID int64) ([]*models.CellarBottle, error) {
	var rows []CellarBottle

	err := s.store.DB.WithContext(ctx).
		Where("user_id = ? AND rating IS NOT NULL", userID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*models.CellarBottle, len(rows))
	for i := range rows {
		out[i] = toModelBottle(&rows[i])
	}
	return out, nil
}

// ListUsersWithRatedBottles returns the distinct user ids that have at least
// one rated bottle. The profile refresh job iterates this set.
func (s *CellarStore) ListUsersWithRatedBottles(ctx context.Context) ([]int64, error) {
	var ids []int64

	err := s.store.DB.WithContext(ctx).
		Model(&CellarBottle{}).
		Where("rating IS NOT NULL").
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
