package models

// DrinkWindow is the consumption-timing preference extracted from a query.
type DrinkWindow string

const (
	DrinkWindowAny   DrinkWindow = ""
	DrinkWindowNow   DrinkWindow = "now"
	DrinkWindowReady DrinkWindow = "ready"
	DrinkWindowSoon  DrinkWindow = "soon"
	DrinkWindowAging DrinkWindow = "aging"
)

// QueryFilters are the structured constraints extracted from a free-text
// search query. Every zero field means "no constraint" - absence of a filter
// is never an error.
type QueryFilters struct {
	MinPrice    *float64    `json:"min_price,omitempty"`
	MaxPrice    *float64    `json:"max_price,omitempty"`
	Varietals   []string    `json:"varietals,omitempty"`
	Regions     []string    `json:"regions,omitempty"`
	Types       []string    `json:"types,omitempty"`
	DrinkWindow DrinkWindow `json:"drink_window,omitempty"`
}

// IsZero reports whether no constraint was extracted.
func (f QueryFilters) IsZero() bool {
	return f.MinPrice == nil && f.MaxPrice == nil &&
		len(f.Varietals) == 0 && len(f.Regions) == 0 && len(f.Types) == 0 &&
		f.DrinkWindow == DrinkWindowAny
}

// SearchResult is one semantic-search hit returned to callers. It carries a
// human-readable reason but deliberately no numeric score: scores are an
// internal ranking detail stripped before serialization.
type SearchResult struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Winery   string   `json:"winery"`
	Region   string   `json:"region"`
	Country  string   `json:"country"`
	Type     WineType `json:"type"`
	Grapes   string   `json:"grapes"`
	Vintage  int      `json:"vintage"`
	Price    float64  `json:"price"`
	ImageURL string   `json:"image_url"`
	Reason   string   `json:"reason"`
}
