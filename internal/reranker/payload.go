package reranker

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vintry/sommelier/internal/scoring"
	"github.com/vintry/sommelier/pkg/models"
)

// payloadStyleDims caps each candidate's style vector in the prompt.
const payloadStyleDims = 4

const systemPrompt = `You are a sommelier curating wine recommendations.
Given a user's taste summary and a candidate list, select up to %d wines and
order them best first. Honor the user's price band where feasible, align with
their style dimensions and favored varietals and regions, and avoid stacking
near-identical styles. Respond with JSON only:
{"picks": [{"wine_id": <id>, "reason": "<one short sentence for the user>"}]}
Only use wine_id values from the candidate list.`

type promptCandidate struct {
	Style    map[string]float64 `json:"style,omitempty"`
	Name     string             `json:"name"`
	Winery   string             `json:"winery,omitempty"`
	Region   string             `json:"region,omitempty"`
	Type     string             `json:"type,omitempty"`
	Grapes   string             `json:"grapes,omitempty"`
	WineID   int64              `json:"wine_id"`
	Vintage  int                `json:"vintage,omitempty"`
	Price    float64            `json:"price"`
	PreScore float64            `json:"pre_score"`
}

type promptPayload struct {
	Preferences promptPreferences `json:"preferences"`
	Candidates  []promptCandidate `json:"candidates"`
}

type promptPreferences struct {
	PriceMin     *float64           `json:"price_min,omitempty"`
	PriceMax     *float64           `json:"price_max,omitempty"`
	TopVarietals []string           `json:"top_varietals,omitempty"`
	TopRegions   []string           `json:"top_regions,omitempty"`
	TopStyleDims map[string]float64 `json:"top_style_dimensions,omitempty"`
}

// buildUserPrompt serializes the preference summary and candidate pool.
// Candidate style vectors are capped to their strongest dimensions to keep
// token usage predictable across pool sizes.
func buildUserPrompt(p *models.TasteProfile, pool []*scoring.Candidate) (string, error) {
	payload := promptPayload{Candidates: make([]promptCandidate, len(pool))}

	if p != nil {
		payload.Preferences = promptPreferences{
			PriceMin:     p.PriceMin,
			PriceMax:     p.PriceMax,
			TopVarietals: p.TopVarietals,
			TopRegions:   p.TopRegions,
		}
		if dims := p.Style.TopDimensions(payloadStyleDims); len(dims) > 0 {
			top := make(map[string]float64, len(dims))
			for _, d := range dims {
				top[d] = p.Style[d]
			}
			payload.Preferences.TopStyleDims = top
		}
	}

	for i, c := range pool {
		pc := promptCandidate{
			WineID:   c.Wine.ID,
			Name:     c.Wine.Name,
			Winery:   c.Wine.Winery,
			Region:   c.Wine.Region,
			Type:     string(c.Wine.Type),
			Grapes:   c.Wine.Grapes,
			Vintage:  c.Wine.Vintage,
			Price:    c.Wine.Price,
			PreScore: c.PreScore,
		}
		if dims := c.Wine.StyleVector.TopDimensions(payloadStyleDims); len(dims) > 0 {
			pc.Style = make(map[string]float64, len(dims))
			for _, d := range dims {
				pc.Style[d] = c.Wine.StyleVector[d]
			}
		}
		payload.Candidates[i] = pc
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal rerank payload: %w", err)
	}
	return string(body), nil
}

type rerankPick struct {
	Reason string `json:"reason"`
	WineID int64  `json:"wine_id"`
}

type rerankResponse struct {
	Picks []rerankPick `json:"picks"`
}

// parsePicks validates the model's response against the candidate pool. It
// returns the usable picks and false whenever the response is malformed or
// yields nothing usable; callers then take the fallback path. Unknown wine
// ids, duplicates, and blank reasons are dropped rather than failing the
// whole response.
func parsePicks(content string, pool []*scoring.Candidate, maxPicks int) ([]rerankPick, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false
	}

	var resp rerankResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, false
	}
	if len(resp.Picks) == 0 {
		return nil, false
	}

	known := make(map[int64]struct{}, len(pool))
	for _, c := range pool {
		known[c.Wine.ID] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(resp.Picks))
	picks := make([]rerankPick, 0, len(resp.Picks))
	for _, p := range resp.Picks {
		if _, ok := known[p.WineID]; !ok {
			continue
		}
		if _, dup := seen[p.WineID]; dup {
			continue
		}
		if strings.TrimSpace(p.Reason) == "" {
			continue
		}
		seen[p.WineID] = struct{}{}
		picks = append(picks, p)
		if len(picks) == maxPicks {
			break
		}
	}

	if len(picks) == 0 {
		return nil, false
	}
	return picks, true
}
