package similarity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

// GOOD SCENARIOS

func TestCosineSparse_IdenticalVectors(t *testing.T) {
	v := map[string]float64{"body": 0.8, "tannin": 0.6, "oak": 0.3}
	assert.InDelta(t, 1.0, CosineSparse(v, v), 1e-12)
}

func TestCosineSparse_OppositeVectors(t *testing.T) {
	a := map[string]float64{"body": 1, "acidity": 0.5}
	b := map[string]float64{"body": -1, "acidity": -0.5}
	assert.InDelta(t, -1.0, CosineSparse(a, b), 1e-12)
}

func TestCosineSparse_RestrictedToSharedDimensions(t *testing.T) {
	a := map[string]float64{"body": 1, "sweetness": 99}
	b := map[string]float64{"body": 1, "oak": -42}
	// Only "body" overlaps; the unshared dimensions must not dilute the score.
	assert.InDelta(t, 1.0, CosineSparse(a, b), 1e-12)
}

func TestCosineSparse_SymmetricAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	dims := []string{"body", "acidity", "tannin", "oak", "sweetness"}

	for i := 0; i < 200; i++ {
		a := make(map[string]float64)
		b := make(map[string]float64)
		for _, d := range dims {
			if rng.Intn(3) > 0 {
				a[d] = rng.Float64()*2 - 1
			}
			if rng.Intn(3) > 0 {
				b[d] = rng.Float64()*2 - 1
			}
		}

		ab := CosineSparse(a, b)
		ba := CosineSparse(b, a)
		assert.Equal(t, ab, ba)
		assert.GreaterOrEqual(t, ab, -1.0)
		assert.LessOrEqual(t, ab, 1.0)
	}
}

// EDGE CASES

func TestCosineSparse_ZeroAndEmptyInputs(t *testing.T) {
	v := map[string]float64{"body": 0.5}

	assert.Zero(t, CosineSparse(nil, v))
	assert.Zero(t, CosineSparse(v, nil))
	assert.Zero(t, CosineSparse(v, map[string]float64{"oak": 1}))
	assert.Zero(t, CosineSparse(v, map[string]float64{"body": 0}))
}

func TestCosineDense(t *testing.T) {
	assert.InDelta(t, 1.0, CosineDense([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, CosineDense([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, CosineDense([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, CosineDense(nil, nil))
	assert.Zero(t, CosineDense([]float32{0, 0}, []float32{1, 1}))
}
