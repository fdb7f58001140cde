package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintry/sommelier/internal/config"
	"github.com/vintry/sommelier/pkg/models"
)

type fakeWineSource struct {
	wines []*models.CatalogWine
}

func (f *fakeWineSource) GetWinesNeedingEmbedding(ctx context.Context, staleBefore time.Time, limit int) ([]*models.CatalogWine, error) {
	if len(f.wines) > limit {
		return f.wines[:limit], nil
	}
	return f.wines, nil
}

type fakeEmbedder struct {
	fail  bool
	calls int
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-model" }

type fakeSink struct {
	upserts map[int64][]float32
	failOn  int64
}

func (f *fakeSink) Upsert(ctx context.Context, wineID int64, vector []float32, model string) error {
	if f.failOn != 0 && wineID == f.failOn {
		return errors.New("disk full")
	}
	if f.upserts == nil {
		f.upserts = make(map[int64][]float32)
	}
	f.upserts[wineID] = vector
	return nil
}

func testIndexer(wines []*models.CatalogWine, embedder *fakeEmbedder, sink *fakeSink) *Indexer {
	cfg := config.Default()
	cfg.ProviderRPS = 1000 // keep tests fast
	return New(&fakeWineSource{wines: wines}, embedder, sink, cfg, zerolog.Nop())
}

// GOOD SCENARIOS

func TestIndexer_EmbedsAllPending(t *testing.T) {
	wines := []*models.CatalogWine{
		{ID: 1, Name: "Syrah A"},
		{ID: 2, Name: "Syrah B"},
	}
	embedder := &fakeEmbedder{}
	sink := &fakeSink{}

	stats, err := testIndexer(wines, embedder, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Embedded)
	assert.Equal(t, 0, stats.Skipped)
	assert.Len(t, sink.upserts, 2)
}

func TestIndexer_NothingPendingWritesNothing(t *testing.T) {
	embedder := &fakeEmbedder{}
	sink := &fakeSink{}

	stats, err := testIndexer(nil, embedder, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Scanned)
	assert.Equal(t, 0, embedder.calls)
	assert.Empty(t, sink.upserts)
}

// BAD SCENARIOS

func TestIndexer_ProviderFailureSkipsWithoutError(t *testing.T) {
	wines := []*models.CatalogWine{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}
	embedder := &fakeEmbedder{fail: true}
	sink := &fakeSink{}

	stats, err := testIndexer(wines, embedder, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 0, stats.Embedded)
	assert.Empty(t, sink.upserts)
}

func TestIndexer_StoreFailurePropagates(t *testing.T) {
	wines := []*models.CatalogWine{{ID: 1, Name: "A"}}
	sink := &fakeSink{failOn: 1}

	_, err := testIndexer(wines, &fakeEmbedder{}, sink).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store embedding")
}

// CANONICAL TEXT

func TestBuildCanonicalText_Deterministic(t *testing.T) {
	wine := &models.CatalogWine{
		Name:         "Hermitage Rouge",
		Winery:       "Domaine Test",
		Region:       "Rhone",
		Country:      "France",
		Type:         models.WineTypeRed,
		Grapes:       "Syrah",
		Vintage:      2019,
		Pairings:     "Lamb, game",
		TastingNotes: "Peppery <b>dark fruit</b> with *firm* tannins\x07",
	}

	first := BuildCanonicalText(wine)
	assert.Equal(t, first, BuildCanonicalText(wine))
	assert.Equal(t,
		"Hermitage Rouge | Domaine Test | Rhone | France | red | Syrah | 2019 | Lamb, game | Peppery dark fruit with firm tannins",
		first)
}

func TestBuildCanonicalText_SkipsEmptyFields(t *testing.T) {
	wine := &models.CatalogWine{Name: "Mystery Red"}
	assert.Equal(t, "Mystery Red", BuildCanonicalText(wine))
}

func TestCleanText_StripsMarkupAndControlChars(t *testing.T) {
	assert.Equal(t, "bold and plain", cleanText("<b>bold</b> and\r\n__plain__"))
}
