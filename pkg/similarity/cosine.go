// Package similarity provides vector similarity utilities used by scoring
// and semantic search.
package similarity

import "math"

// CosineSparse computes cosine similarity between two named-dimension vectors,
// restricted to their shared dimensions. Norms are taken over the shared
// dimensions only. Returns 0 when there is no overlap or either restricted
// norm is zero. The result is symmetric and bounded in [-1, 1].
func CosineSparse(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Iterate the smaller map for fewer lookups.
	if len(b) < len(a) {
		a, b = b, a
	}

	var dot, normA, normB float64
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// CosineDense computes cosine similarity between two dense embedding vectors.
// Vectors of different lengths or zero norm yield 0.
func CosineDense(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// clamp bounds a cosine value to [-1, 1] against floating-point drift.
func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
