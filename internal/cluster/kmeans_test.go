package cluster

import (
	"sort"
	"testing"

	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoGroupVectors — два плотных пучка вокруг ортогональных направлений.
func twoGroupVectors() [][]float32 {
	return [][]float32{
		{1, 0, 0},
		{0.995, 0.0998, 0},
		{0.995, 0, 0.0998},
		{0, 1, 0},
		{0.0998, 0.995, 0},
		{0, 0.995, 0.0998},
	}
}

// groupsAsSets приводит разбиение к канонической форме для сравнения.
func groupsAsSets(groups [][]int) [][]int {
	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		s := append([]int(nil), g...)
		sort.Ints(s)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func TestKMeans_SeparatesObviousGroups(t *testing.T) {
	p := NewKMeansPartitioner(20, 10)

	groups, err := p.Partition(twoGroupVectors(), 2)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	canonical := groupsAsSets(groups)
	assert.Equal(t, []int{0, 1, 2}, canonical[0])
	assert.Equal(t, []int{3, 4, 5}, canonical[1])
}

func TestKMeans_Deterministic(t *testing.T) {
	p := NewKMeansPartitioner(20, 10)

	first, err := p.Partition(twoGroupVectors(), 2)
	require.NoError(t, err)
	second, err := p.Partition(twoGroupVectors(), 2)
	require.NoError(t, err)

	assert.Equal(t, groupsAsSets(first), groupsAsSets(second))
}

func TestKMeans_AutoK(t *testing.T) {
	p := NewKMeansPartitioner(20, 10)

	groups, err := p.Partition(twoGroupVectors(), 0)
	require.NoError(t, err)

	// Silhouette-поиск должен найти два естественных пучка
	assert.Len(t, groups, 2)
}

func TestKMeans_KAboveN(t *testing.T) {
	p := NewKMeansPartitioner(20, 10)

	vectors := [][]float32{{1, 0}, {0, 1}}
	groups, err := p.Partition(vectors, 5)
	require.NoError(t, err)

	// k ограничивается числом векторов, пустые группы отбрасываются
	total := 0
	for _, g := range groups {
		require.NotEmpty(t, g)
		total += len(g)
	}
	assert.Equal(t, 2, total)
}

func TestKMeans_SingleCluster(t *testing.T) {
	p := NewKMeansPartitioner(20, 10)

	groups, err := p.Partition(twoGroupVectors(), 1)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 6)
}

func TestKMeans_EmptyInput(t *testing.T) {
	p := NewKMeansPartitioner(20, 10)

	_, err := p.Partition(nil, 2)
	assert.ErrorIs(t, err, e.ErrEmptyVectorSet)
}
