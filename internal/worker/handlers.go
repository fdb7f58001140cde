package worker

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/vintry/sommelier/internal/search"
	"github.com/vintry/sommelier/pkg/models"
)

// writeJSON writes a JSON response with proper error handling.
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("encode JSON response failed")
	}
}

func (s *Service) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth reports liveness and database reachability.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]interface{}{
		"status": status,
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleSearch answers GET /api/search?q=...&limit=...
func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := s.search.Search(r.Context(), query)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			s.writeError(w, http.StatusBadRequest, "query parameter q is required")
		case errors.Is(err, search.ErrUnavailable):
			s.writeError(w, http.StatusServiceUnavailable, "search unavailable")
		default:
			s.logger.Error().Err(err).Msg("search failed")
			s.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if limit := parseLimit(r.URL.Query().Get("limit")); limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	s.writeJSON(w, http.StatusOK, results)
}

// recommendationItem is one entry of the recommendation read endpoint,
// enriched with catalog display fields.
type recommendationItem struct {
	WineID      int64           `json:"wine_id"`
	Name        string          `json:"name"`
	Winery      string          `json:"winery,omitempty"`
	Region      string          `json:"region,omitempty"`
	Country     string          `json:"country,omitempty"`
	Type        models.WineType `json:"type,omitempty"`
	Grapes      string          `json:"grapes,omitempty"`
	Vintage     int             `json:"vintage,omitempty"`
	Price       float64         `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	Score       float64         `json:"score"`
	Reason      string          `json:"reason"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// handleRecommendations answers GET /api/users/{userID}/recommendations.
// Expired rows are filtered lazily at read time; the scheduler purges them
// later. When curated picks exist they win over fallback picks so the two
// sources never interleave.
func (s *Service) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	recs, err := s.recs.GetActive(r.Context(), userID, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("load recommendations failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	recs = preferCurated(recs)

	ids := make([]int64, len(recs))
	for i, rec := range recs {
		ids[i] = rec.WineID
	}
	wines, err := s.catalog.GetWinesByIDs(r.Context(), ids)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("resolve recommended wines failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]recommendationItem, 0, len(recs))
	for _, rec := range recs {
		item := recommendationItem{
			WineID:      rec.WineID,
			Score:       rec.Score,
			Reason:      rec.Reason,
			GeneratedAt: rec.GeneratedAt,
		}
		if wine := wines[rec.WineID]; wine != nil {
			item.Name = wine.Name
			item.Winery = wine.Winery
			item.Region = wine.Region
			item.Country = wine.Country
			item.Type = wine.Type
			item.Grapes = wine.Grapes
			item.Vintage = wine.Vintage
			item.Price = wine.Price
			item.ImageURL = wine.ImageURL
		}
		items = append(items, item)
	}

	s.writeJSON(w, http.StatusOK, items)
}

// handleRefreshUser answers POST /api/users/{userID}/refresh by running the
// profile+rerank pipeline for one user synchronously.
func (s *Service) handleRefreshUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := s.scheduler.RefreshUser(r.Context(), userID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("manual refresh failed")
		s.writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// handleStats answers GET /api/stats with store and index counters.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	embedded, err := s.embeddings.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	stale, err := s.embeddings.CountStale(r.Context(), time.Now().Add(-s.config.EmbeddingTTL()))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	dbStats := s.store.Stats()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"embeddings": map[string]int64{
			"total": embedded,
			"stale": stale,
		},
		"db": map[string]int{
			"open_connections": dbStats.OpenConnections,
			"in_use":           dbStats.InUse,
		},
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// preferCurated drops fallback rows whenever curated rows are present.
func preferCurated(recs []*models.Recommendation) []*models.Recommendation {
	var curated []*models.Recommendation
	for _, rec := range recs {
		if rec.Source == models.SourceRerank {
			curated = append(curated, rec)
		}
	}
	if len(curated) > 0 {
		return curated
	}
	return recs
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
