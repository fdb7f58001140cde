// Package search answers free-text wine queries with semantic scoring.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vintry/sommelier/internal/config"
	gormstore "github.com/vintry/sommelier/internal/db/gorm"
	"github.com/vintry/sommelier/internal/profile"
	"github.com/vintry/sommelier/pkg/models"
	"github.com/vintry/sommelier/pkg/similarity"
)

// ErrEmptyQuery rejects blank queries; callers map it to a 400.
var ErrEmptyQuery = errors.New("search query is empty")

// ErrUnavailable signals that the query could not be embedded. There is no
// deterministic fallback for semantic scoring, so the request fails.
var ErrUnavailable = errors.New("search unavailable")

// Filter-match bonuses added on top of cosine similarity.
const (
	bonusVarietal    = 0.12
	bonusRegion      = 0.08
	bonusType        = 0.05
	bonusPriceFit    = 0.05
	bonusPriceNear   = 0.02
	bonusWindowNow   = 0.10
	bonusWindowReady = 0.08
	bonusWindowLater = 0.05

	// priceTolerance widens extracted price bounds; near-misses still
	// surface, just without the strict price-fit bonus.
	priceTolerance = 0.15

	// windowLookahead bounds how far ahead "soon"/"aging" looks.
	windowLookahead = 90 * 24 * time.Hour
)

// Embedder embeds the raw query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CatalogSource retrieves a bounded filtered candidate slice.
type CatalogSource interface {
	GetFilteredWines(ctx context.Context, filters gormstore.CandidateFilters, limit int) ([]*models.CatalogWine, error)
}

// EmbeddingSource loads stored candidate embeddings.
type EmbeddingSource interface {
	GetByWineIDs(ctx context.Context, ids []int64) (map[int64][]float32, error)
}

// Service runs the full query pipeline: filter extraction, query embedding,
// filtered retrieval, and blended cosine scoring. Identical concurrent
// queries are coalesced into one execution.
type Service struct {
	interpreter *Interpreter
	embedder    Embedder
	catalog     CatalogSource
	embeddings  EmbeddingSource
	group       singleflight.Group
	logger      zerolog.Logger
	now         func() time.Time

	candidateLimit int
	limit          int
}

// NewService creates a search service.
func NewService(interpreter *Interpreter, embedder Embedder, catalog CatalogSource, embeddings EmbeddingSource, cfg *config.Config, logger zerolog.Logger) *Service {
	return &Service{
		interpreter:    interpreter,
		embedder:       embedder,
		catalog:        catalog,
		embeddings:     embeddings,
		logger:         logger.With().Str("component", "search").Logger(),
		now:            time.Now,
		candidateLimit: cfg.CandidateLimit,
		limit:          cfg.SearchLimit,
	}
}

// Search answers a free-text query. Missing catalog data yields an empty
// result set; only a blank query or a failed query embedding is an error.
func (s *Service) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	v, err, _ := s.group.Do(strings.ToLower(query), func() (interface{}, error) {
		return s.run(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.SearchResult), nil
}

func (s *Service) run(ctx context.Context, query string) ([]models.SearchResult, error) {
	filters := s.interpreter.ExtractFilters(ctx, query)

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Error().Err(err).Msg("query embedding failed")
		return nil, fmt.Errorf("%w: query embedding failed", ErrUnavailable)
	}

	wines, err := s.catalog.GetFilteredWines(ctx, sqlFilters(filters), s.candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	if len(wines) == 0 {
		return []models.SearchResult{}, nil
	}

	ids := make([]int64, len(wines))
	for i, w := range wines {
		ids[i] = w.ID
	}
	vectors, err := s.embeddings.GetByWineIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate embeddings: %w", err)
	}

	type scored struct {
		result models.SearchResult
		score  float64
	}
	hits := make([]scored, 0, len(wines))
	now := s.now()

	for _, wine := range wines {
		vec, ok := vectors[wine.ID]
		if !ok {
			// Embedding not generated yet; the indexer will fill it in.
			continue
		}

		score := similarity.CosineDense(queryVec, vec)
		reasons := []string{}

		if grape := matchVarietal(filters.Varietals, wine.Grapes); grape != "" {
			score += bonusVarietal
			reasons = append(reasons, "features "+grape)
		}
		if matchesFold(filters.Regions, profile.NormalizeRegion(wine.Region)) {
			score += bonusRegion
			reasons = append(reasons, "from "+wine.Region)
		}
		if matchesFold(filters.Types, strings.ToLower(string(wine.Type))) {
			score += bonusType
			reasons = append(reasons, "a "+string(wine.Type)+" as requested")
		}
		if b, why := priceBonus(filters, wine.Price); b > 0 {
			score += b
			reasons = append(reasons, why)
		}
		if b, why := windowBonus(filters.DrinkWindow, wine, now); b > 0 {
			score += b
			reasons = append(reasons, why)
		}

		hits = append(hits, scored{score: score, result: toResult(wine, reasons)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > s.limit {
		hits = hits[:s.limit]
	}
	results := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = h.result
	}

	s.logger.Debug().
		Str("query", query).
		Int("candidates", len(wines)).
		Int("results", len(results)).
		Msg("search complete")

	return results, nil
}

// sqlFilters widens price bounds by the tolerance so near-misses stay in the
// candidate slice; the scorer then ranks strict fits above them.
func sqlFilters(f models.QueryFilters) gormstore.CandidateFilters {
	out := gormstore.CandidateFilters{
		Regions: f.Regions,
		Types:   f.Types,
	}
	if f.MinPrice != nil {
		relaxed := *f.MinPrice * (1 - priceTolerance)
		out.MinPrice = &relaxed
	}
	if f.MaxPrice != nil {
		relaxed := *f.MaxPrice * (1 + priceTolerance)
		out.MaxPrice = &relaxed
	}
	return out
}

// priceBonus rewards strict fits over tolerance fits.
func priceBonus(f models.QueryFilters, price float64) (float64, string) {
	if f.MinPrice == nil && f.MaxPrice == nil {
		return 0, ""
	}
	if price <= 0 {
		return 0, ""
	}

	strict := (f.MinPrice == nil || price >= *f.MinPrice) &&
		(f.MaxPrice == nil || price <= *f.MaxPrice)
	if strict {
		return bonusPriceFit, "fits your budget"
	}
	return bonusPriceNear, "close to your budget"
}

// windowBonus aligns the wine's drink window with the requested one.
func windowBonus(window models.DrinkWindow, wine *models.CatalogWine, now time.Time) (float64, string) {
	if window == models.DrinkWindowAny {
		return 0, ""
	}

	drinkable := (wine.DrinkFrom == nil || !now.Before(*wine.DrinkFrom)) &&
		(wine.DrinkTo == nil || !now.After(*wine.DrinkTo))
	upcoming := wine.DrinkFrom != nil &&
		wine.DrinkFrom.After(now) &&
		wine.DrinkFrom.Before(now.Add(windowLookahead))

	switch window {
	case models.DrinkWindowNow:
		if drinkable {
			return bonusWindowNow, "drinking beautifully right now"
		}
	case models.DrinkWindowReady:
		if drinkable {
			return bonusWindowReady, "in its drinking window"
		}
	case models.DrinkWindowSoon, models.DrinkWindowAging:
		if upcoming {
			return bonusWindowLater, "approaching its drinking window"
		}
	}
	return 0, ""
}

// matchVarietal returns the first requested varietal found among the wine's
// parsed grape tokens, or "".
func matchVarietal(wanted []string, grapes string) string {
	if len(wanted) == 0 {
		return ""
	}
	tokens := profile.ParseGrapeTokens(grapes)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	for _, w := range wanted {
		if _, ok := set[strings.ToLower(w)]; ok {
			return w
		}
	}
	return ""
}

func matchesFold(wanted []string, have string) bool {
	if have == "" {
		return false
	}
	for _, w := range wanted {
		if strings.EqualFold(w, have) {
			return true
		}
	}
	return false
}

func toResult(wine *models.CatalogWine, reasons []string) models.SearchResult {
	reason := "Closely matches your search"
	if len(reasons) > 0 {
		reason = strings.ToUpper(reasons[0][:1]) + reasons[0][1:] + joinRest(reasons[1:])
	}
	return models.SearchResult{
		ID:       wine.ID,
		Name:     wine.Name,
		Winery:   wine.Winery,
		Region:   wine.Region,
		Country:  wine.Country,
		Type:     wine.Type,
		Grapes:   wine.Grapes,
		Vintage:  wine.Vintage,
		Price:    wine.Price,
		ImageURL: wine.ImageURL,
		Reason:   reason,
	}
}

func joinRest(rest []string) string {
	if len(rest) == 0 {
		return ""
	}
	return ", " + strings.Join(rest, ", ")
}
