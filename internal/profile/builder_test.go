package profile

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintry/sommelier/pkg/models"
)

type fakeBottles struct {
	bottles []*models.CellarBottle
}

func (f *fakeBottles) GetRatedBottles(ctx context.Context, userID int64) ([]*models.CellarBottle, error) {
	return f.bottles, nil
}

type fakeWines struct {
	wines map[int64]*models.CatalogWine
}

func (f *fakeWines) GetWinesByIDs(ctx context.Context, ids []int64) (map[int64]*models.CatalogWine, error) {
	out := make(map[int64]*models.CatalogWine)
	for _, id := range ids {
		if w, ok := f.wines[id]; ok {
			out[id] = w
		}
	}
	return out, nil
}

type fakeProfiles struct {
	stored *models.TasteProfile
}

func (f *fakeProfiles) Upsert(ctx context.Context, p *models.TasteProfile) error {
	f.stored = p
	return nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func testBuilder(bottles []*models.CellarBottle, wines map[int64]*models.CatalogWine) (*Builder, *fakeProfiles) {
	sink := &fakeProfiles{}
	b := NewBuilder(&fakeBottles{bottles: bottles}, &fakeWines{wines: wines}, sink, zerolog.Nop())
	return b, sink
}

// GOOD SCENARIOS

func TestBuilder_NapaCabernetScenario(t *testing.T) {
	wines := map[int64]*models.CatalogWine{
		1: {ID: 1, Region: "Napa", Grapes: "Cabernet Sauvignon", Price: 80},
		2: {ID: 2, Region: "Napa", Grapes: "Cabernet Sauvignon", Price: 60},
	}
	bottles := []*models.CellarBottle{
		{UserID: 9, WineID: 1, Rating: intPtr(5)},
		{UserID: 9, WineID: 2, Rating: intPtr(4)},
	}

	b, sink := testBuilder(bottles, wines)
	p, err := b.Build(context.Background(), 9)
	require.NoError(t, err)

	// Prices 80 and 60: mean 70, stddev 10, half-width 0.5 gives [65, 75].
	require.NotNil(t, p.PriceMin)
	require.NotNil(t, p.PriceMax)
	assert.InDelta(t, 65.0, *p.PriceMin, 1e-9)
	assert.InDelta(t, 75.0, *p.PriceMax, 1e-9)

	// Both lists are eligible only because each entry was observed twice.
	assert.Equal(t, models.JSONStringArray{"cabernet sauvignon"}, p.TopVarietals)
	assert.Equal(t, models.JSONStringArray{"napa"}, p.TopRegions)

	assert.Same(t, p, sink.stored)
}

func TestBuilder_SingleObservationExcludedFromTopLists(t *testing.T) {
	wines := map[int64]*models.CatalogWine{
		1: {ID: 1, Region: "Napa", Grapes: "Cabernet Sauvignon", Price: 80},
	}
	bottles := []*models.CellarBottle{
		{UserID: 9, WineID: 1, Rating: intPtr(5)},
	}

	b, _ := testBuilder(bottles, wines)
	p, err := b.Build(context.Background(), 9)
	require.NoError(t, err)

	assert.Empty(t, p.TopVarietals)
	assert.Empty(t, p.TopRegions)
	// A single qualifying bottle still produces a degenerate band.
	require.NotNil(t, p.PriceMin)
	assert.InDelta(t, 80.0, *p.PriceMin, 1e-9)
	assert.InDelta(t, 80.0, *p.PriceMax, 1e-9)
}

func TestBuilder_StyleCentroidRatingsWeighted(t *testing.T) {
	wines := map[int64]*models.CatalogWine{
		1: {ID: 1, StyleVector: models.StyleVector{"tannin": 1.0, "oak": 0.5}, Price: 30},
		2: {ID: 2, StyleVector: models.StyleVector{"tannin": 0.0}, Price: 20},
		3: {ID: 3, Price: 25}, // no style vector, contributes nothing
	}
	bottles := []*models.CellarBottle{
		{UserID: 1, WineID: 1, Rating: intPtr(5)},
		{UserID: 1, WineID: 2, Rating: intPtr(3)},
		{UserID: 1, WineID: 3, Rating: intPtr(5)},
	}

	b, _ := testBuilder(bottles, wines)
	p, err := b.Build(context.Background(), 1)
	require.NoError(t, err)

	// tannin: (5*1.0 + 3*0.0) / (5+3) = 0.625; oak: (5*0.5) / 8 = 0.3125
	assert.InDelta(t, 0.625, p.Style["tannin"], 1e-9)
	assert.InDelta(t, 0.3125, p.Style["oak"], 1e-9)
}

func TestBuilder_PricePaidPreferredOverCatalogPrice(t *testing.T) {
	wines := map[int64]*models.CatalogWine{
		1: {ID: 1, Price: 100},
	}
	bottles := []*models.CellarBottle{
		{UserID: 1, WineID: 1, Rating: intPtr(5), PricePaid: floatPtr(40)},
	}

	b, _ := testBuilder(bottles, wines)
	p, err := b.Build(context.Background(), 1)
	require.NoError(t, err)

	require.NotNil(t, p.PriceMin)
	assert.InDelta(t, 40.0, *p.PriceMin, 1e-9)
}

func TestBuilder_LowRatedBottlesExcludedFromBand(t *testing.T) {
	wines := map[int64]*models.CatalogWine{
		1: {ID: 1, Price: 300},
		2: {ID: 2, Price: 50},
	}
	bottles := []*models.CellarBottle{
		{UserID: 1, WineID: 1, Rating: intPtr(2)}, // disliked, ignored for band
		{UserID: 1, WineID: 2, Rating: intPtr(4)},
	}

	b, _ := testBuilder(bottles, wines)
	p, err := b.Build(context.Background(), 1)
	require.NoError(t, err)

	require.NotNil(t, p.PriceMin)
	assert.InDelta(t, 50.0, *p.PriceMin, 1e-9)
	assert.InDelta(t, 50.0, *p.PriceMax, 1e-9)
}

// EDGE CASES

func TestBuilder_NoRatedBottlesYieldsEmptyProfile(t *testing.T) {
	b, sink := testBuilder(nil, nil)
	p, err := b.Build(context.Background(), 42)
	require.NoError(t, err)

	assert.Nil(t, p.PriceMin)
	assert.Nil(t, p.PriceMax)
	assert.Empty(t, p.Style)
	assert.Empty(t, p.TopVarietals)
	assert.Empty(t, p.TopRegions)
	assert.NotNil(t, sink.stored)
}

func TestBuilder_UnresolvableBottlesIgnored(t *testing.T) {
	bottles := []*models.CellarBottle{
		{UserID: 1, WineID: 404, Rating: intPtr(5)},
	}

	b, _ := testBuilder(bottles, map[int64]*models.CatalogWine{})
	p, err := b.Build(context.Background(), 1)
	require.NoError(t, err)

	assert.Nil(t, p.PriceMin)
	assert.Empty(t, p.Style)
}

func TestBuilder_TopThreeCapAndAverageRatingOrder(t *testing.T) {
	wines := map[int64]*models.CatalogWine{}
	var bottles []*models.CellarBottle
	id := int64(1)

	add := func(grape string, ratings ...int) {
		for _, r := range ratings {
			wines[id] = &models.CatalogWine{ID: id, Grapes: grape, Price: 20}
			bottles = append(bottles, &models.CellarBottle{UserID: 1, WineID: id, Rating: intPtr(r)})
			id++
		}
	}
	add("syrah", 5, 5)
	add("merlot", 4, 4)
	add("malbec", 3, 3)
	add("gamay", 2, 2)

	b, _ := testBuilder(bottles, wines)
	p, err := b.Build(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, models.JSONStringArray{"syrah", "merlot", "malbec"}, p.TopVarietals)
}
