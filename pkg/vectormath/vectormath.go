// Package vectormath содержит чистые операции над embedding-векторами:
// нормализация, косинусная близость и центроид. Функции детерминированы
// и не имеют побочных эффектов.
package vectormath

import (
	"math"

	"github.com/RohanKP1/image-upload-service/pkg/e"
)

// Norm возвращает евклидову длину вектора.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize возвращает копию вектора, приведенную к единичной длине.
// Нулевой вектор не имеет направления — возвращается e.ErrDegenerateVector.
func Normalize(v []float32) ([]float32, error) {
	norm := Norm(v)
	if norm == 0 {
		return nil, e.ErrDegenerateVector
	}

	out := make([]float32, len(v))
	inv := 1.0 / norm
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, nil
}

// Dot возвращает скалярное произведение двух векторов одинаковой длины.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity возвращает косинусную близость двух векторов в диапазоне [-1, 1].
// Возвращает e.ErrDegenerateVector, если один из векторов нулевой,
// и e.ErrDimensionMismatch при разной размерности.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, e.ErrDimensionMismatch
	}

	na := Norm(a)
	nb := Norm(b)
	if na == 0 || nb == 0 {
		return 0, e.ErrDegenerateVector
	}

	sim := Dot(a, b) / (na * nb)

	// Числовая погрешность может вывести результат чуть за пределы [-1, 1]
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// Centroid возвращает нормализованное среднее набора векторов.
// Возвращает e.ErrEmptyVectorSet для пустого набора и e.ErrDimensionMismatch,
// если векторы имеют разную длину.
func Centroid(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, e.ErrEmptyVectorSet
	}

	dim := len(vectors[0])
	mean := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, e.ErrDimensionMismatch
		}
		for i, x := range v {
			mean[i] += float64(x)
		}
	}

	inv := 1.0 / float64(len(vectors))
	out := make([]float32, dim)
	for i, x := range mean {
		out[i] = float32(x * inv)
	}

	return Normalize(out)
}
