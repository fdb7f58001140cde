// Package profile builds per-user taste profiles from rated inventory.
package profile

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/vintry/sommelier/pkg/models"
)

const (
	// minBandRating is the rating floor for bottles that shape the price band.
	minBandRating = 4
	// bandHalfWidth scales the stddev term on each side of the mean.
	bandHalfWidth = 0.5
	// minObservations keeps one-off varietals and regions out of the top lists.
	minObservations = 2
	// topPreferences caps the ranked varietal and region lists.
	topPreferences = 3
)

// BottleSource supplies a user's rated inventory.
type BottleSource interface {
	GetRatedBottles(ctx context.Context, userID int64) ([]*models.CellarBottle, error)
}

// WineSource resolves catalog metadata for bottles.
type WineSource interface {
	GetWinesByIDs(ctx context.Context, ids []int64) (map[int64]*models.CatalogWine, error)
}

// ProfileSink persists built profiles.
type ProfileSink interface {
	Upsert(ctx context.Context, p *models.TasteProfile) error
}

// Builder aggregates rated bottles into a taste profile.
type Builder struct {
	bottles  BottleSource
	wines    WineSource
	profiles ProfileSink
	logger   zerolog.Logger
}

// NewBuilder creates a profile builder.
func NewBuilder(bottles BottleSource, wines WineSource, profiles ProfileSink, logger zerolog.Logger) *Builder {
	return &Builder{
		bottles:  bottles,
		wines:    wines,
		profiles: profiles,
		logger:   logger.With().Str("component", "profile-builder").Logger(),
	}
}

// Build computes the user's taste profile and replaces the stored one. A user
// with no rated, catalog-resolvable bottles gets an empty profile; that is a
// valid state, not an error.
func (b *Builder) Build(ctx context.Context, userID int64) (*models.TasteProfile, error) {
	bottles, err := b.bottles.GetRatedBottles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load rated bottles for user %d: %w", userID, err)
	}

	wineIDs := make([]int64, 0, len(bottles))
	for _, bt := range bottles {
		wineIDs = append(wineIDs, bt.WineID)
	}
	wines, err := b.wines.GetWinesByIDs(ctx, wineIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog wines for user %d: %w", userID, err)
	}

	p := &models.TasteProfile{UserID: userID}
	p.PriceMin, p.PriceMax = b.priceBand(bottles, wines)
	p.Style = b.styleCentroid(bottles, wines)
	p.TopVarietals, p.TopRegions = b.topTallies(bottles, wines)

	if err := b.profiles.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("store profile for user %d: %w", userID, err)
	}

	b.logger.Debug().
		Int64("user_id", userID).
		Int("rated_bottles", len(bottles)).
		Bool("has_price_band", p.HasPriceBand()).
		Int("style_dims", len(p.Style)).
		Msg("taste profile rebuilt")

	return p, nil
}

// priceBand returns [mean - 0.5*stddev, mean + 0.5*stddev] over the prices of
// highly rated bottles, clamped at zero on the low end. Nil when no highly
// rated bottle carries a usable price.
func (b *Builder) priceBand(bottles []*models.CellarBottle, wines map[int64]*models.CatalogWine) (*float64, *float64) {
	var prices []float64
	for _, bt := range bottles {
		if bt.Rating == nil || *bt.Rating < minBandRating {
			continue
		}
		price := bottlePrice(bt, wines[bt.WineID])
		if price > 0 {
			prices = append(prices, price)
		}
	}
	if len(prices) == 0 {
		return nil, nil
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))

	var sq float64
	for _, p := range prices {
		d := p - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(prices)))

	low := mean - bandHalfWidth*stddev
	if low < 0 {
		low = 0
	}
	high := mean + bandHalfWidth*stddev
	return &low, &high
}

// bottlePrice prefers what the user actually paid over the catalog list price.
func bottlePrice(bt *models.CellarBottle, wine *models.CatalogWine) float64 {
	if bt.PricePaid != nil && *bt.PricePaid > 0 {
		return *bt.PricePaid
	}
	if wine != nil {
		return wine.Price
	}
	return 0
}

// styleCentroid is the ratings-weighted average of the catalog style vectors
// behind the user's rated bottles. Wines without a style vector contribute
// nothing, including to the weight denominator.
func (b *Builder) styleCentroid(bottles []*models.CellarBottle, wines map[int64]*models.CatalogWine) models.StyleVector {
	sums := make(map[string]float64)
	var totalRating float64

	for _, bt := range bottles {
		if bt.Rating == nil {
			continue
		}
		wine := wines[bt.WineID]
		if wine == nil || wine.StyleVector.IsEmpty() {
			continue
		}
		rating := float64(*bt.Rating)
		totalRating += rating
		for dim, v := range wine.StyleVector {
			sums[dim] += rating * v
		}
	}

	if totalRating == 0 {
		return models.StyleVector{}
	}
	centroid := make(models.StyleVector, len(sums))
	for dim, v := range sums {
		centroid[dim] = v / totalRating
	}
	return centroid
}

type tally struct {
	name      string
	ratingSum float64
	count     int
}

// topTallies ranks varietal tokens and regions by average rating, keeping
// only entries observed at least twice.
func (b *Builder) topTallies(bottles []*models.CellarBottle, wines map[int64]*models.CatalogWine) (models.JSONStringArray, models.JSONStringArray) {
	varietals := make(map[string]*tally)
	regions := make(map[string]*tally)

	for _, bt := range bottles {
		if bt.Rating == nil {
			continue
		}
		wine := wines[bt.WineID]
		if wine == nil {
			continue
		}
		rating := float64(*bt.Rating)

		for _, token := range ParseGrapeTokens(wine.Grapes) {
			bump(varietals, token, rating)
		}
		if region := NormalizeRegion(wine.Region); region != "" {
			bump(regions, region, rating)
		}
	}

	return rankTallies(varietals), rankTallies(regions)
}

func bump(m map[string]*tally, name string, rating float64) {
	t, ok := m[name]
	if !ok {
		t = &tally{name: name}
		m[name] = t
	}
	t.ratingSum += rating
	t.count++
}

func rankTallies(m map[string]*tally) models.JSONStringArray {
	eligible := make([]*tally, 0, len(m))
	for _, t := range m {
		if t.count >= minObservations {
			eligible = append(eligible, t)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		ai := eligible[i].ratingSum / float64(eligible[i].count)
		aj := eligible[j].ratingSum / float64(eligible[j].count)
		if ai != aj {
			return ai > aj
		}
		if eligible[i].count != eligible[j].count {
			return eligible[i].count > eligible[j].count
		}
		return eligible[i].name < eligible[j].name
	})

	n := len(eligible)
	if n > topPreferences {
		n = topPreferences
	}
	out := make(models.JSONStringArray, n)
	for i := 0; i < n; i++ {
		out[i] = eligible[i].name
	}
	return out
}
