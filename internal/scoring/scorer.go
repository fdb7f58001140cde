// Package scoring computes deterministic blended pre-scores for candidate
// wines against a user's taste profile.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vintry/sommelier/internal/config"
	"github.com/vintry/sommelier/internal/profile"
	"github.com/vintry/sommelier/pkg/models"
	"github.com/vintry/sommelier/pkg/similarity"
)

// Candidate pairs a catalog wine with its blended pre-score and the
// heuristic rationale behind it. The rationale doubles as the reason string
// when the reranker falls back to the deterministic ranking.
type Candidate struct {
	Wine      *models.CatalogWine
	Rationale string
	PreScore  float64
}

// Scorer blends style similarity with price, varietal, region, and recency
// heuristics. Scoring is pure; given the same profile and candidate slice it
// always produces the same scores and ordering.
type Scorer struct {
	weights config.Weights
}

// NewScorer creates a scorer with the given blend weights.
func NewScorer(weights config.Weights) *Scorer {
	return &Scorer{weights: weights}
}

// ScoreCandidates scores every candidate and returns the top poolSize by
// pre-score descending. Equal scores keep the original candidate order, so
// a most-recent-first input slice breaks ties toward fresher listings.
func (s *Scorer) ScoreCandidates(p *models.TasteProfile, wines []*models.CatalogWine, poolSize int) []*Candidate {
	scored := make([]*Candidate, len(wines))
	for i, wine := range wines {
		scored[i] = s.score(p, wine)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].PreScore > scored[j].PreScore
	})

	if poolSize > 0 && len(scored) > poolSize {
		scored = scored[:poolSize]
	}
	return scored
}

// score computes one candidate's blended pre-score. Empty profile fields
// contribute nothing; a user with no profile signal at all still gets the
// recency bump so fresh listings surface.
func (s *Scorer) score(p *models.TasteProfile, wine *models.CatalogWine) *Candidate {
	var score float64
	var reasons []string

	if p != nil && !p.Style.IsEmpty() && !wine.StyleVector.IsEmpty() {
		cos := similarity.CosineSparse(p.Style, wine.StyleVector)
		score += s.weights.Style * cos
		if cos > 0 {
			reasons = append(reasons, fmt.Sprintf("close to your style profile (%.2f)", cos))
		}
	}

	if p != nil && p.HasPriceBand() && p.InPriceBand(wine.Price) {
		score += s.weights.Price
		reasons = append(reasons, "within your usual price range")
	}

	if p != nil && len(p.TopVarietals) > 0 {
		if grape := matchVarietal(p.TopVarietals, wine.Grapes); grape != "" {
			score += s.weights.Varietal
			reasons = append(reasons, "features "+grape+", a varietal you rate highly")
		}
	}

	if p != nil && len(p.TopRegions) > 0 {
		if region := profile.NormalizeRegion(wine.Region); region != "" && contains(p.TopRegions, region) {
			score += s.weights.Region
			reasons = append(reasons, "from "+wine.Region+", a region you favor")
		}
	}

	// Recency bump applies to the whole slice; it separates candidates only
	// from anything scored outside this most-recent slice.
	score += s.weights.RecencyBump

	rationale := "A recent arrival in the catalog"
	if len(reasons) > 0 {
		rationale = strings.ToUpper(reasons[0][:1]) + reasons[0][1:]
		if len(reasons) > 1 {
			rationale += "; " + strings.Join(reasons[1:], "; ")
		}
	}

	return &Candidate{Wine: wine, PreScore: score, Rationale: rationale}
}

// matchVarietal returns the first of the user's top varietals present in the
// candidate's parsed grape tokens, or "".
func matchVarietal(top models.JSONStringArray, grapes string) string {
	tokens := profile.ParseGrapeTokens(grapes)
	if len(tokens) == 0 {
		return ""
	}
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	for _, want := range top {
		if _, ok := set[strings.ToLower(want)]; ok {
			return want
		}
	}
	return ""
}

func contains(list models.JSONStringArray, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
