// Package profile builds per-user taste profiles from rated inventory.
package profile

import "strings"

// grapeSeparators are the characters that delimit varietals inside the
// catalog's free-text grape composition field.
const grapeSeparators = ",&/;"

// ParseGrapeTokens splits a free-text grape composition into normalized
// lowercase varietal tokens. Duplicates within one composition are collapsed
// so a single wine never counts the same varietal twice.
func ParseGrapeTokens(grapes string) []string {
	if strings.TrimSpace(grapes) == "" {
		return nil
	}

	fields := strings.FieldsFunc(grapes, func(r rune) bool {
		return strings.ContainsRune(grapeSeparators, r)
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		token := strings.ToLower(strings.TrimSpace(f))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// NormalizeRegion lowercases and trims a region string for matching.
func NormalizeRegion(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}
