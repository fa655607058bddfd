package cluster

import (
	"math"
	"math/rand"

	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/vectormath"
)

const (
	// defaultSeed фиксирует инициализацию k-means, чтобы повторный запуск на
	// тех же векторах давал то же разбиение (структурная идемпотентность).
	defaultSeed = 42

	// defaultFallbackK — запасное число кластеров, когда silhouette-поиск
	// не дал результата.
	defaultFallbackK = 3
)

// KMeansPartitioner реализует Partitioner поверх k-means с косинусным
// расстоянием. Векторы на входе ожидаются нормализованными, поэтому
// расстояние считается как 1 - dot. Число кластеров выбирается автоматически
// по silhouette-оценке, если не задано явно.
type KMeansPartitioner struct {
	MaxIter  int // максимум итераций Ллойда
	MaxAutoK int // верхняя граница перебора k при автоподборе
}

func NewKMeansPartitioner(maxIter, maxAutoK int) *KMeansPartitioner {
	return &KMeansPartitioner{
		MaxIter:  maxIter,
		MaxAutoK: maxAutoK,
	}
}

// Partition разбивает векторы на k групп; k <= 0 включает автоматический
// выбор. Группы с нулевым составом отбрасываются, поэтому фактическое число
// кластеров может быть меньше запрошенного.
func (p *KMeansPartitioner) Partition(vectors [][]float32, k int) ([][]int, error) {
	n := len(vectors)
	if n == 0 {
		return nil, e.ErrEmptyVectorSet
	}

	if k <= 0 {
		k = p.selectK(vectors)
	}
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	_, assignments := p.run(vectors, k)

	groups := make([][]int, k)
	for i, label := range assignments {
		groups[label] = append(groups[label], i)
	}

	out := make([][]int, 0, k)
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out, nil
}

// selectK перебирает k в диапазоне [2, min(MaxAutoK, n-1)] и возвращает k с
// лучшей silhouette-оценкой. При пустом диапазоне или отсутствии валидной
// оценки возвращает min(3, n).
func (p *KMeansPartitioner) selectK(vectors [][]float32) int {
	n := len(vectors)
	if n < 2 {
		return 1
	}

	maxK := p.MaxAutoK
	if maxK > n-1 {
		maxK = n - 1
	}

	bestK := 0
	bestScore := -1.0
	dist := pairwiseDistances(vectors)

	for k := 2; k <= maxK; k++ {
		_, assignments := p.run(vectors, k)
		if distinctLabels(assignments) < 2 {
			continue
		}
		score := silhouetteScore(dist, assignments, k)
		if score > bestScore {
			bestScore = score
			bestK = k
		}
	}

	if bestK == 0 {
		if n < defaultFallbackK {
			return n
		}
		return defaultFallbackK
	}
	return bestK
}

// run выполняет k-means c детерминированной инициализацией k-means++
// и возвращает центроиды и метки.
func (p *KMeansPartitioner) run(vectors [][]float32, k int) ([][]float32, []int) {
	rng := rand.New(rand.NewSource(defaultSeed))
	centroids := seedCentroids(vectors, k, rng)
	assignments := make([]int, len(vectors))
	for i := range assignments {
		assignments[i] = -1
	}

	maxIter := p.MaxIter
	if maxIter <= 0 {
		maxIter = 20
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vectors {
			label := nearestCentroid(v, centroids)
			if label != assignments[i] {
				assignments[i] = label
				changed = true
			}
		}
		if !changed {
			break
		}
		updateCentroids(vectors, assignments, centroids)
	}

	return centroids, assignments
}

// seedCentroids — k-means++: первый центр берется у детерминированного rng,
// последующие — пропорционально квадрату расстояния до ближайшего из выбранных.
func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, vectors[rng.Intn(len(vectors))])

	minDist := make([]float64, len(vectors))
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := cosineDistance(v, centroids[len(centroids)-1])
			if len(centroids) == 1 || d < minDist[i] {
				minDist[i] = d
			}
			total += minDist[i] * minDist[i]
		}

		if total == 0 {
			// Все точки совпали с выбранными центрами
			centroids = append(centroids, vectors[rng.Intn(len(vectors))])
			continue
		}

		target := rng.Float64() * total
		var acc float64
		next := len(vectors) - 1
		for i := range vectors {
			acc += minDist[i] * minDist[i]
			if acc >= target {
				next = i
				break
			}
		}
		centroids = append(centroids, vectors[next])
	}

	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		d := cosineDistance(v, c)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// updateCentroids пересчитывает центры как нормализованное среднее участников.
// Пустые кластеры сохраняют прежний центр — детерминизм важнее скорости схождения.
func updateCentroids(vectors [][]float32, assignments []int, centroids [][]float32) {
	for label := range centroids {
		members := make([][]float32, 0)
		for i, a := range assignments {
			if a == label {
				members = append(members, vectors[i])
			}
		}
		if len(members) == 0 {
			continue
		}
		if c, err := vectormath.Centroid(members); err == nil {
			centroids[label] = c
		}
	}
}

func cosineDistance(a, b []float32) float64 {
	return 1 - vectormath.Dot(a, b)
}

func pairwiseDistances(vectors [][]float32) [][]float64 {
	n := len(vectors)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := cosineDistance(vectors[i], vectors[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// silhouetteScore — средняя silhouette-оценка разбиения: s(i) = (b-a)/max(a,b),
// где a — среднее расстояние до своего кластера, b — до ближайшего чужого.
// Точки в кластерах из одного участника получают оценку 0.
func silhouetteScore(dist [][]float64, assignments []int, k int) float64 {
	n := len(assignments)
	sizes := make([]int, k)
	for _, a := range assignments {
		sizes[a]++
	}

	var total float64
	for i := 0; i < n; i++ {
		own := assignments[i]
		if sizes[own] < 2 {
			continue
		}

		sums := make([]float64, k)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sums[assignments[j]] += dist[i][j]
		}

		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for label := 0; label < k; label++ {
			if label == own || sizes[label] == 0 {
				continue
			}
			avg := sums[label] / float64(sizes[label])
			if avg < b {
				b = avg
			}
		}

		if max := math.Max(a, b); max > 0 {
			total += (b - a) / max
		}
	}

	return total / float64(n)
}

func distinctLabels(assignments []int) int {
	seen := make(map[int]struct{})
	for _, a := range assignments {
		seen[a] = struct{}{}
	}
	return len(seen)
}
