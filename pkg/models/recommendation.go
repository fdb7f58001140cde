package models

import "time"

// RecommendationSource tags how a recommendation was produced.
type RecommendationSource string

const (
	// SourceRerank marks picks curated by the LLM reranker. Rows with this
	// source form a complete replacement set per user: a new rerank run
	// deletes all prior rerank rows before inserting fresh ones.
	SourceRerank RecommendationSource = "rerank"
	// SourceHeuristic marks picks produced by the deterministic fallback
	// ranking when the LLM call failed or returned malformed output.
	SourceHeuristic RecommendationSource = "heuristic"
)

// Recommendation is one ranked pick for a user. Rows past ExpiresAt are
// semantically invalid and excluded from every read path.
type Recommendation struct {
	ID          int64
	UserID      int64
	WineID      int64
	Score       float64
	Reason      string
	Source      RecommendationSource
	GeneratedAt time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the recommendation is past its expiry at now.
func (r *Recommendation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
