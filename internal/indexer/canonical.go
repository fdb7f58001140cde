// Package indexer keeps catalog wine embeddings fresh.
package indexer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/tiktoken-go/tokenizer"

	"github.com/vintry/sommelier/pkg/models"
)

const (
	// fieldSeparator joins canonical text fields. Changing it invalidates
	// every stored embedding, so treat it as frozen.
	fieldSeparator = " | "

	// maxCanonicalTokens bounds the text sent to the embedding provider.
	maxCanonicalTokens = 512
)

var markupRe = regexp.MustCompile(`<[^>]*>|[*_#` + "`" + `]+`)

// BuildCanonicalText concatenates a wine's non-empty attributes with a fixed
// separator. AI tasting notes are folded in last, stripped of markup and
// control characters. Identical inputs always produce identical text, which
// keeps regeneration deterministic.
func BuildCanonicalText(wine *models.CatalogWine) string {
	parts := make([]string, 0, 9)
	appendPart := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	appendPart(wine.Name)
	appendPart(wine.Winery)
	appendPart(wine.Region)
	appendPart(wine.Country)
	appendPart(string(wine.Type))
	appendPart(wine.Grapes)
	if wine.Vintage > 0 {
		appendPart(strconv.Itoa(wine.Vintage))
	}
	appendPart(cleanText(wine.Pairings))
	appendPart(cleanText(wine.TastingNotes))

	return strings.Join(parts, fieldSeparator)
}

// cleanText strips markup and control characters and collapses whitespace.
func cleanText(s string) string {
	s = markupRe.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// truncateToTokenBudget cuts text to maxCanonicalTokens using the cl100k
// encoding. On any tokenizer error the text passes through untruncated; the
// provider enforces its own hard limit anyway.
func truncateToTokenBudget(codec tokenizer.Codec, text string) string {
	if codec == nil {
		return text
	}
	ids, _, err := codec.Encode(text)
	if err != nil || len(ids) <= maxCanonicalTokens {
		return text
	}
	truncated, err := codec.Decode(ids[:maxCanonicalTokens])
	if err != nil {
		return text
	}
	return truncated
}
