package cluster

import (
	"testing"

	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_AddImageDuplicate(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "img-1", []float32{1, 0, 0})

	img := st.Image("img-1")
	require.NotNil(t, img)
	assert.ErrorIs(t, st.AddImage(img), e.ErrDuplicateImage)
}

func TestState_AddSingletonCluster(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "img-1", []float32{3, 4, 0})

	c, err := st.AddSingletonCluster("img-1")
	require.NoError(t, err)

	// Центроид — нормализованный вектор изображения
	assert.InDelta(t, 0.6, float64(c.Centroid[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(c.Centroid[1]), 1e-6)
	assert.Equal(t, 1, c.Size())
	assert.Zero(t, c.Cohesion.Mean)
	assert.Zero(t, c.Cohesion.StdDev)
	assert.NoError(t, st.Validate())
}

func TestState_AddImageToClusterRecomputesStats(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "img-1", []float32{1, 0, 0})
	addTestImage(t, st, "img-2", []float32{0, 1, 0})

	c, err := st.AddSingletonCluster("img-1")
	require.NoError(t, err)

	require.NoError(t, st.AddImageToCluster("img-2", c.ID))

	assert.Equal(t, 2, c.Size())
	// Центроид двух ортогональных векторов лежит на биссектрисе,
	// близость каждого участника к нему cos(45°).
	assert.InDelta(t, 0.7071, c.Cohesion.Mean, 1e-3)
	assert.InDelta(t, 0, c.Cohesion.StdDev, 1e-6)
	assert.NoError(t, st.Validate())
}

func TestState_AddImageToClusterRollsBackOnError(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "img-1", []float32{1, 0, 0})
	addTestImage(t, st, "bad", []float32{0, 0, 0})

	c, err := st.AddSingletonCluster("img-1")
	require.NoError(t, err)

	err = st.AddImageToCluster("bad", c.ID)
	assert.ErrorIs(t, err, e.ErrDegenerateVector)

	// Неудачное добавление не оставляет следов в кластере
	assert.Equal(t, 1, c.Size())
	assert.False(t, c.HasMember("bad"))
	assert.Nil(t, st.Image("bad").ClusterID)
	assert.NoError(t, st.Validate())
}

func TestState_ReplaceAllClusters(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "a1", []float32{1, 0, 0})
	addTestImage(t, st, "a2", []float32{0.99, 0.14, 0})
	addTestImage(t, st, "b1", []float32{0, 1, 0})
	addTestImage(t, st, "orphan", []float32{0, 0, 1})

	old, err := st.AddSingletonCluster("orphan")
	require.NoError(t, err)

	clusters, err := st.ReplaceAllClusters([][]string{{"a1", "a2"}, {"b1"}})
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	// Прежний кластер не пережил замену, идентификаторы свежие
	assert.Nil(t, st.Cluster(old.ID))
	for _, c := range clusters {
		assert.NotEqual(t, old.ID, c.ID)
	}

	// Изображение вне групп стало некластеризованным
	assert.Nil(t, st.Image("orphan").ClusterID)
	assert.NoError(t, st.Validate())
}

func TestState_ReplaceAllClustersUnknownImage(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "a1", []float32{1, 0, 0})

	before, err := st.AddSingletonCluster("a1")
	require.NoError(t, err)

	_, err = st.ReplaceAllClusters([][]string{{"a1", "ghost"}})
	assert.ErrorIs(t, err, e.ErrImageNotFound)

	// Ошибка сборки нового разбиения не трогает старое
	assert.NotNil(t, st.Cluster(before.ID))
	assert.NoError(t, st.Validate())
}

func TestState_ReplaceAllClustersDuplicateMember(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "a1", []float32{1, 0, 0})

	_, err := st.ReplaceAllClusters([][]string{{"a1"}, {"a1"}})
	assert.ErrorIs(t, err, e.ErrImageAlreadyMember)
}

func TestState_ClusterMemberIDsSorted(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "b", []float32{1, 0, 0})
	addTestImage(t, st, "a", []float32{0.99, 0.1, 0})

	clusters, err := st.ReplaceAllClusters([][]string{{"b", "a"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, st.ClusterMemberIDs(clusters[0].ID))
}

func TestState_RemoveImageRecomputesCluster(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "img-1", []float32{1, 0, 0})
	addTestImage(t, st, "img-2", []float32{0, 1, 0})

	c, err := st.AddSingletonCluster("img-1")
	require.NoError(t, err)
	require.NoError(t, st.AddImageToCluster("img-2", c.ID))

	require.NoError(t, st.RemoveImage("img-2"))

	assert.Nil(t, st.Image("img-2"))
	assert.Equal(t, 1, c.Size())
	// После ухода второго участника центроид снова совпадает с единственным вектором
	assert.InDelta(t, 1.0, float64(c.Centroid[0]), 1e-6)
	assert.Zero(t, c.Cohesion.Mean)
	assert.NoError(t, st.Validate())
}

func TestState_RemoveImageDropsEmptyCluster(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "img-1", []float32{1, 0, 0})

	_, err := st.AddSingletonCluster("img-1")
	require.NoError(t, err)

	require.NoError(t, st.RemoveImage("img-1"))

	assert.Empty(t, st.Clusters)
	assert.Empty(t, st.Images)
}

func TestState_RemoveImageUnknown(t *testing.T) {
	st := NewState("user-1")
	assert.ErrorIs(t, st.RemoveImage("missing"), e.ErrImageNotFound)
}
