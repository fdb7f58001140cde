package reranker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintry/sommelier/internal/config"
	"github.com/vintry/sommelier/internal/scoring"
	"github.com/vintry/sommelier/pkg/models"
)

type fakeProfiles struct {
	profile *models.TasteProfile
}

func (f *fakeProfiles) Get(ctx context.Context, userID int64) (*models.TasteProfile, error) {
	return f.profile, nil
}

type fakeCatalog struct {
	wines []*models.CatalogWine
}

func (f *fakeCatalog) GetRecentPricedWines(ctx context.Context, limit int) ([]*models.CatalogWine, error) {
	return f.wines, nil
}

type fakeChat struct {
	response string
	err      error
	called   bool
}

func (f *fakeChat) Complete(ctx context.Context, system, user string) (string, error) {
	f.called = true
	return f.response, f.err
}

type fakeSink struct {
	replaced map[models.RecommendationSource][]*models.Recommendation
	err      error
}

func (f *fakeSink) ReplaceForUser(ctx context.Context, userID int64, source models.RecommendationSource, recs []*models.Recommendation) error {
	if f.err != nil {
		return f.err
	}
	if f.replaced == nil {
		f.replaced = make(map[models.RecommendationSource][]*models.Recommendation)
	}
	f.replaced[source] = recs
	return nil
}

func poolWines(n int) []*models.CatalogWine {
	wines := make([]*models.CatalogWine, n)
	for i := range wines {
		wines[i] = &models.CatalogWine{ID: int64(i + 1), Name: fmt.Sprintf("Wine %d", i+1), Price: 20}
	}
	return wines
}

func testReranker(wines []*models.CatalogWine, chat *fakeChat, sink *fakeSink) *Reranker {
	cfg := config.Default()
	scorer := scoring.NewScorer(cfg.Weights)
	return New(&fakeProfiles{}, &fakeCatalog{wines: wines}, scorer, chat, sink, cfg, zerolog.Nop())
}

// GOOD SCENARIOS

func TestReranker_CuratedPicksReplaceRerankSet(t *testing.T) {
	chat := &fakeChat{response: `{"picks":[{"wine_id":3,"reason":"Bold and structured"},{"wine_id":1,"reason":"Great value"}]}`}
	sink := &fakeSink{}

	err := testReranker(poolWines(5), chat, sink).RefreshUser(context.Background(), 7)
	require.NoError(t, err)

	recs := sink.replaced[models.SourceRerank]
	require.Len(t, recs, 2)
	assert.Equal(t, int64(3), recs[0].WineID)
	assert.Equal(t, "Bold and structured", recs[0].Reason)
	assert.InDelta(t, 1.0, recs[0].Score, 1e-9)
	assert.InDelta(t, 0.98, recs[1].Score, 1e-9)

	// A successful curation clears any earlier fallback rows.
	cleared, ok := sink.replaced[models.SourceHeuristic]
	assert.True(t, ok)
	assert.Empty(t, cleared)
}

func TestReranker_FencedJSONAccepted(t *testing.T) {
	chat := &fakeChat{response: "```json\n{\"picks\":[{\"wine_id\":2,\"reason\":\"A match\"}]}\n```"}
	sink := &fakeSink{}

	err := testReranker(poolWines(3), chat, sink).RefreshUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, sink.replaced[models.SourceRerank], 1)
}

// FALLBACK SCENARIOS

func TestReranker_MalformedJSONFallsBackToPreScoreOrder(t *testing.T) {
	chat := &fakeChat{response: "I would recommend the Syrah because"}
	sink := &fakeSink{}

	err := testReranker(poolWines(30), chat, sink).RefreshUser(context.Background(), 7)
	require.NoError(t, err)

	recs := sink.replaced[models.SourceHeuristic]
	require.Len(t, recs, 24)
	for rank, rec := range recs {
		// Identical pre-scores keep candidate order, so ids ascend.
		assert.Equal(t, int64(rank+1), rec.WineID)
		assert.InDelta(t, 1.0-float64(rank)*0.02, rec.Score, 1e-9)
		assert.NotEmpty(t, rec.Reason)
		assert.Equal(t, models.SourceHeuristic, rec.Source)
	}

	// The curated set must not be touched by a fallback run.
	_, touched := sink.replaced[models.SourceRerank]
	assert.False(t, touched)
}

func TestReranker_ChatErrorFallsBack(t *testing.T) {
	chat := &fakeChat{err: errors.New("timeout")}
	sink := &fakeSink{}

	err := testReranker(poolWines(5), chat, sink).RefreshUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, sink.replaced[models.SourceHeuristic], 5)
}

func TestReranker_UnknownAndDuplicateIDsDropped(t *testing.T) {
	chat := &fakeChat{response: `{"picks":[
		{"wine_id":999,"reason":"not in pool"},
		{"wine_id":2,"reason":"first"},
		{"wine_id":2,"reason":"duplicate"},
		{"wine_id":1,"reason":""}
	]}`}
	sink := &fakeSink{}

	err := testReranker(poolWines(3), chat, sink).RefreshUser(context.Background(), 7)
	require.NoError(t, err)

	recs := sink.replaced[models.SourceRerank]
	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].WineID)
	assert.Equal(t, "first", recs[0].Reason)
}

// EDGE CASES

func TestReranker_EmptyCatalogClearsBothSets(t *testing.T) {
	chat := &fakeChat{}
	sink := &fakeSink{}

	err := testReranker(nil, chat, sink).RefreshUser(context.Background(), 7)
	require.NoError(t, err)

	assert.False(t, chat.called)
	assert.Empty(t, sink.replaced[models.SourceRerank])
	assert.Empty(t, sink.replaced[models.SourceHeuristic])
}

func TestReranker_SinkErrorPropagates(t *testing.T) {
	chat := &fakeChat{response: `{"picks":[{"wine_id":1,"reason":"ok"}]}`}
	sink := &fakeSink{err: errors.New("db down")}

	err := testReranker(poolWines(2), chat, sink).RefreshUser(context.Background(), 7)
	assert.Error(t, err)
}

func TestParsePicks_CapsAtMaxPicks(t *testing.T) {
	pool := make([]*scoring.Candidate, 30)
	response := `{"picks":[`
	for i := range pool {
		pool[i] = &scoring.Candidate{Wine: &models.CatalogWine{ID: int64(i + 1)}}
		if i > 0 {
			response += ","
		}
		response += fmt.Sprintf(`{"wine_id":%d,"reason":"r"}`, i+1)
	}
	response += `]}`

	picks, ok := parsePicks(response, pool, 24)
	require.True(t, ok)
	assert.Len(t, picks, 24)
}
