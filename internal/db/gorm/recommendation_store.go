// Package gorm provides GORM-based database operations for sommelier.
package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vintry/sommelier/pkg/models"
)

// RecommendationStore persists per-user ranked recommendations.
type RecommendationStore struct {
	store *Store
}

// NewRecommendationStore creates a new RecommendationStore.
func NewRecommendationStore(store *Store) *RecommendationStore {
	return &RecommendationStore{store: store}
}

// ReplaceForUser deletes the user's rows for the given source and inserts the
// new set in one transaction. A failed insert leaves the previous set intact.
func (s *RecommendationStore) ReplaceForUser(ctx context.Context, userID int64, source models.RecommendationSource, recs []*models.Recommendation) error {
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND source = ?", userID, string(source)).
			Delete(&Recommendation{}).Error
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			return nil
		}

		rows := make([]Recommendation, len(recs))
		for i, r := range recs {
			rows[i] = Recommendation{
				ID:          r.ID,
				UserID:      r.UserID,
				WineID:      r.WineID,
				Score:       r.Score,
				Reason:      r.Reason,
				Source:      string(r.Source),
				GeneratedAt: r.GeneratedAt,
				ExpiresAt:   r.ExpiresAt,
			}
		}
		return tx.Create(&rows).Error
	})
}

// GetActive returns the user's unexpired recommendations, best score first.
func (s *RecommendationStore) GetActive(ctx context.Context, userID int64, now time.Time) ([]*models.Recommendation, error) {
	var rows []Recommendation
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("score DESC, wine_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*models.Recommendation, len(rows))
	for i := range rows {
		out[i] = toModelRecommendation(&rows[i])
	}
	return out, nil
}

// DeleteExpired removes rows past their expiry and returns the count removed.
func (s *RecommendationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.store.DB.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&Recommendation{})
	return res.RowsAffected, res.Error
}
