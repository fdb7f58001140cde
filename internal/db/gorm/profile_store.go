// Package gorm provides GORM-based database operations for sommelier.
package gorm

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vintry/sommelier/pkg/models"
)

// ProfileStore persists learned taste profiles.
type ProfileStore struct {
	store *Store
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(store *Store) *ProfileStore {
	return &ProfileStore{store: store}
}

// Upsert replaces the user's profile wholesale. Every column is rewritten so
// a rebuild that loses a price band or a top list also clears it in storage.
func (s *ProfileStore) Upsert(ctx context.Context, p *models.TasteProfile) error {
	row := UserProfile{
		UserID:      p.UserID,
		StyleVector: p.Style,
		VarietalTop: p.TopVarietals,
		RegionTop:   p.TopRegions,
		UpdatedAt:   time.Now().UTC(),
	}
	if p.PriceMin != nil {
		row.PriceMin = sql.NullFloat64{Float64: *p.PriceMin, Valid: true}
	}
	if p.PriceMax != nil {
		row.PriceMax = sql.NullFloat64{Float64: *p.PriceMax, Valid: true}
	}

	return s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"style_vector", "varietal_top3", "region_top3",
				"price_min", "price_max", "updated_at",
			}),
		}).
		Create(&row).Error
}

// Get returns the user's profile, or nil when none has been built yet.
func (s *ProfileStore) Get(ctx context.Context, userID int64) (*models.TasteProfile, error) {
	var row UserProfile
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelProfile(&row), nil
}
