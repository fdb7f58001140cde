// Package search answers free-text wine queries with semantic scoring.
package search

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vintry/sommelier/internal/llm"
	"github.com/vintry/sommelier/pkg/models"
)

const filterSystemPrompt = `Extract wine search filters from the user's query.
Respond with JSON only, using this schema (omit keys with no constraint):
{"min_price": <number>, "max_price": <number>, "varietals": ["..."],
 "regions": ["..."], "types": ["red"|"white"|"rose"|"sparkling"|"dessert"|"fortified"],
 "drink_window": "now"|"ready"|"soon"|"aging"}
Never invent constraints the query does not state.`

// ChatClient issues one completion call.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Interpreter extracts structured filters from a free-text query. Extraction
// is best effort; every failure mode degrades to "no filters".
type Interpreter struct {
	chat   ChatClient
	logger zerolog.Logger
}

// NewInterpreter creates a filter interpreter.
func NewInterpreter(chat ChatClient, logger zerolog.Logger) *Interpreter {
	return &Interpreter{
		chat:   chat,
		logger: logger.With().Str("component", "query-interpreter").Logger(),
	}
}

// rawFilters is the strict response schema. Anything that fails to unmarshal
// into it is discarded wholesale.
type rawFilters struct {
	MinPrice    *float64 `json:"min_price"`
	MaxPrice    *float64 `json:"max_price"`
	Varietals   []string `json:"varietals"`
	Regions     []string `json:"regions"`
	Types       []string `json:"types"`
	DrinkWindow string   `json:"drink_window"`
}

// ExtractFilters asks the model for filters. Missing keys mean no constraint;
// a failed call or malformed response means no filters at all.
func (i *Interpreter) ExtractFilters(ctx context.Context, query string) models.QueryFilters {
	content, err := i.chat.Complete(ctx, filterSystemPrompt, query)
	if err != nil {
		i.logger.Warn().Err(err).Msg("filter extraction failed, searching without filters")
		return models.QueryFilters{}
	}

	var raw rawFilters
	if err := json.Unmarshal([]byte(llm.StripFences(content)), &raw); err != nil {
		i.logger.Warn().Err(err).Msg("filter response malformed, searching without filters")
		return models.QueryFilters{}
	}

	filters := models.QueryFilters{
		Varietals: normalizeList(raw.Varietals),
		Regions:   normalizeList(raw.Regions),
		Types:     normalizeList(raw.Types),
	}
	if raw.MinPrice != nil && *raw.MinPrice > 0 {
		filters.MinPrice = raw.MinPrice
	}
	if raw.MaxPrice != nil && *raw.MaxPrice > 0 {
		filters.MaxPrice = raw.MaxPrice
	}
	switch w := models.DrinkWindow(strings.ToLower(strings.TrimSpace(raw.DrinkWindow))); w {
	case models.DrinkWindowNow, models.DrinkWindowReady, models.DrinkWindowSoon, models.DrinkWindowAging:
		filters.DrinkWindow = w
	}
	return filters
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
