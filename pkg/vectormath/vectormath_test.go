package vectormath

import (
	"math"
	"testing"

	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	v, err := Normalize([]float32{3, 4})
	require.NoError(t, err)

	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, Norm(v), 1e-6)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	src := []float32{3, 4}
	_, err := Normalize(src)
	require.NoError(t, err)

	assert.Equal(t, []float32{3, 4}, src)
}

func TestNormalize_ZeroVector(t *testing.T) {
	_, err := Normalize([]float32{0, 0, 0})
	assert.ErrorIs(t, err, e.ErrDegenerateVector)

	_, err = Normalize(nil)
	assert.ErrorIs(t, err, e.ErrDegenerateVector)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, expected: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, expected: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, expected: -1},
		{name: "scaled copy", a: []float32{1, 1}, b: []float32{5, 5}, expected: 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sim, err := CosineSimilarity(test.a, test.b)
			require.NoError(t, err)
			assert.InDelta(t, test.expected, sim, 1e-6)
		})
	}
}

func TestCosineSimilarity_Clamped(t *testing.T) {
	// Близкие длинные векторы могут дать значение чуть выше 1 из-за ошибок
	// округления; результат всегда остается в [-1, 1].
	a := make([]float32, 512)
	for i := range a {
		a[i] = 0.998877
	}
	sim, err := CosineSimilarity(a, a)
	require.NoError(t, err)
	assert.LessOrEqual(t, sim, 1.0)
	assert.GreaterOrEqual(t, sim, -1.0)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, e.ErrDimensionMismatch)
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	_, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	assert.ErrorIs(t, err, e.ErrDegenerateVector)
}

func TestCentroid(t *testing.T) {
	c, err := Centroid([][]float32{
		{1, 0},
		{0, 1},
	})
	require.NoError(t, err)

	// Среднее (0.5, 0.5), после нормализации (1/sqrt2, 1/sqrt2)
	expected := 1 / math.Sqrt2
	assert.InDelta(t, expected, float64(c[0]), 1e-6)
	assert.InDelta(t, expected, float64(c[1]), 1e-6)
	assert.InDelta(t, 1.0, Norm(c), 1e-6)
}

func TestCentroid_SingleVector(t *testing.T) {
	c, err := Centroid([][]float32{{2, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, c)
}

func TestCentroid_EmptySet(t *testing.T) {
	_, err := Centroid(nil)
	assert.ErrorIs(t, err, e.ErrEmptyVectorSet)
}

func TestCentroid_OppositeVectorsDegenerate(t *testing.T) {
	// Сумма противоположных векторов — ноль, у центроида нет направления.
	_, err := Centroid([][]float32{
		{1, 0},
		{-1, 0},
	})
	assert.ErrorIs(t, err, e.ErrDegenerateVector)
}
