// Package gorm provides GORM-based database operations for sommelier.
package gorm

import (
	"database/sql"
	"time"

	pgvec "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/vintry/sommelier/pkg/models"
)

// GORM Models

// CatalogWine is the catalog record. The catalog subsystem owns writes; the
// recommendation engine only reads it.
type CatalogWine struct {
	Name         string             `gorm:"type:text;not null"`
	Winery       string             `gorm:"type:text;index:idx_catalog_winery"`
	Region       string             `gorm:"type:text;index:idx_catalog_region"`
	Country      string             `gorm:"type:text"`
	Grapes       string             `gorm:"type:text"`
	Type         string             `gorm:"type:text;index:idx_catalog_type"`
	ImageURL     string             `gorm:"type:text"`
	TastingNotes string             `gorm:"type:text"`
	Pairings     string             `gorm:"type:text"`
	StyleVector  models.StyleVector `gorm:"type:text"`
	DrinkFrom    sql.NullTime
	DrinkTo      sql.NullTime
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_catalog_created,sort:desc"`
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Vintage      int
	Price        float64 `gorm:"index:idx_catalog_price"`
}

func (CatalogWine) TableName() string { return "catalog_wines" }

// CellarBottle is a bottle in a user's inventory. Owned by the inventory
// subsystem; read here for profile learning only.
type CellarBottle struct {
	Rating    sql.NullInt64
	PricePaid sql.NullFloat64
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"index:idx_bottles_user;not null"`
	WineID    int64     `gorm:"index:idx_bottles_wine"`
}

func (CellarBottle) TableName() string { return "cellar_bottles" }

// WineEmbedding holds one dense vector per catalog wine. Stale rows (past the
// refresh TTL) are replaced in place, never deleted first.
type WineEmbedding struct {
	Embedding pgvec.Vector `gorm:"column:embedding;type:vector"`
	Model     string       `gorm:"type:text;not null"`
	UpdatedAt time.Time    `gorm:"index:idx_embeddings_updated"`
	WineID    int64        `gorm:"primaryKey;column:wine_id"`
}

func (WineEmbedding) TableName() string { return "catalog_embeddings" }

// UserProfile is the learned taste profile, rebuilt wholesale each run.
type UserProfile struct {
	StyleVector models.StyleVector     `gorm:"type:text"`
	VarietalTop models.JSONStringArray `gorm:"column:varietal_top3;type:text"`
	RegionTop   models.JSONStringArray `gorm:"column:region_top3;type:text"`
	PriceMin    sql.NullFloat64
	PriceMax    sql.NullFloat64
	UpdatedAt   time.Time
	UserID      int64 `gorm:"primaryKey;column:user_id"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// Recommendation is one ranked pick for a user with an expiry.
type Recommendation struct {
	Reason      string    `gorm:"type:text"`
	Source      string    `gorm:"type:text;index:idx_recs_user_source,priority:2;not null"`
	GeneratedAt time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"index:idx_recs_expires;not null"`
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	UserID      int64     `gorm:"index:idx_recs_user_source,priority:1;not null"`
	WineID      int64     `gorm:"not null"`
	Score       float64   `gorm:"type:real;not null"`
}

func (Recommendation) TableName() string { return "user_recommendations" }

// BeforeCreate hook to ensure timestamps are set.
func (r *Recommendation) BeforeCreate(tx *gorm.DB) error {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}
	return nil
}

// Conversion helpers

func toModelWine(w *CatalogWine) *models.CatalogWine {
	out := &models.CatalogWine{
		ID:           w.ID,
		Name:         w.Name,
		Winery:       w.Winery,
		Region:       w.Region,
		Country:      w.Country,
		Grapes:       w.Grapes,
		Type:         models.WineType(w.Type),
		Vintage:      w.Vintage,
		Price:        w.Price,
		ImageURL:     w.ImageURL,
		TastingNotes: w.TastingNotes,
		Pairings:     w.Pairings,
		StyleVector:  w.StyleVector,
		CreatedAt:    w.CreatedAt,
	}
	if w.DrinkFrom.Valid {
		t := w.DrinkFrom.Time
		out.DrinkFrom = &t
	}
	if w.DrinkTo.Valid {
		t := w.DrinkTo.Time
		out.DrinkTo = &t
	}
	return out
}

func toModelWines(rows []CatalogWine) []*models.CatalogWine {
	out := make([]*models.CatalogWine, len(rows))
	for i := range rows {
		out[i] = toModelWine(&rows[i])
	}
	return out
}

func toModelBottle(b *CellarBottle) *models.CellarBottle {
	out := &models.CellarBottle{
		ID:        b.ID,
		UserID:    b.UserID,
		WineID:    b.WineID,
		CreatedAt: b.CreatedAt,
	}
	if b.Rating.Valid {
		r := int(b.Rating.Int64)
		out.Rating = &r
	}
	if b.PricePaid.Valid {
		p := b.PricePaid.Float64
		out.PricePaid = &p
	}
	return out
}

func toModelProfile(p *UserProfile) *models.TasteProfile {
	out := &models.TasteProfile{
		UserID:       p.UserID,
		Style:        p.StyleVector,
		TopVarietals: p.VarietalTop,
		TopRegions:   p.RegionTop,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.PriceMin.Valid {
		v := p.PriceMin.Float64
		out.PriceMin = &v
	}
	if p.PriceMax.Valid {
		v := p.PriceMax.Float64
		out.PriceMax = &v
	}
	return out
}

func toModelRecommendation(r *Recommendation) *models.Recommendation {
	return &models.Recommendation{
		ID:          r.ID,
		UserID:      r.UserID,
		WineID:      r.WineID,
		Score:       r.Score,
		Reason:      r.Reason,
		Source:      models.RecommendationSource(r.Source),
		GeneratedAt: r.GeneratedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}
