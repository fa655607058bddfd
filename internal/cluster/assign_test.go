package cluster

import (
	"testing"

	"github.com/RohanKP1/image-upload-service/internal/domain"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() AssignParams {
	return AssignParams{
		Dimension:          3,
		CohesionK:          1.5,
		MarginThreshold:    0.05,
		FallbackSimilarity: 0.92,
	}
}

func newTestEngine() *AssignmentEngine {
	return NewAssignmentEngine(testParams(), logger.Nop{})
}

func addTestImage(t *testing.T, st *State, id string, embedding []float32) {
	t.Helper()
	img := domain.NewImage(st.UserID, id, id+".jpg", "image/jpeg")
	img.Embedding = embedding
	require.NoError(t, st.AddImage(img))
}

func TestAssign_FirstImageCreatesCluster(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "img-1", []float32{1, 0, 0})

	res, err := newTestEngine().Assign(st, "img-1", []float32{1, 0, 0})
	require.NoError(t, err)

	assert.True(t, res.Created)
	require.Len(t, st.Clusters, 1)

	c := st.Cluster(res.ClusterID)
	require.NotNil(t, c)
	assert.True(t, c.HasMember("img-1"))
	require.NotNil(t, st.Image("img-1").ClusterID)
	assert.Equal(t, c.ID, *st.Image("img-1").ClusterID)
	assert.NoError(t, st.Validate())
}

func TestAssign_JoinsCohesiveCluster(t *testing.T) {
	st := NewState("user-1")
	engine := newTestEngine()

	addTestImage(t, st, "img-1", []float32{1, 0, 0})
	addTestImage(t, st, "img-2", []float32{0.99, 0.14, 0})

	_, err := engine.Assign(st, "img-1", []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = engine.Assign(st, "img-2", []float32{0.99, 0.14, 0})
	require.NoError(t, err)
	require.Len(t, st.Clusters, 1)

	existing := st.ClusterList()[0]
	// Фиксируем статистику: порог принятия = 0.90 - 1.5*0.02 = 0.87
	existing.Cohesion = domain.Cohesion{Mean: 0.90, StdDev: 0.02}

	addTestImage(t, st, "img-3", []float32{0.95, 0.05, 0})
	res, err := engine.Assign(st, "img-3", []float32{0.95, 0.05, 0})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, existing.ID, res.ClusterID)
	assert.Greater(t, res.BestSimilarity, 0.87)
	assert.Equal(t, 3, existing.Size())
	assert.NoError(t, st.Validate())
}

func TestAssign_BelowThresholdCreatesSingleton(t *testing.T) {
	st := NewState("user-1")
	engine := newTestEngine()

	addTestImage(t, st, "img-1", []float32{1, 0, 0})
	addTestImage(t, st, "img-2", []float32{0.99, 0.14, 0})
	_, err := engine.Assign(st, "img-1", []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = engine.Assign(st, "img-2", []float32{0.99, 0.14, 0})
	require.NoError(t, err)

	// Ортогональный вектор далек от плотного кластера
	addTestImage(t, st, "img-3", []float32{0, 1, 0})
	res, err := engine.Assign(st, "img-3", []float32{0, 1, 0})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Len(t, st.Clusters, 2)
	assert.NoError(t, st.Validate())
}

func TestAssign_SmallMarginCreatesSingleton(t *testing.T) {
	st := NewState("user-1")
	engine := newTestEngine()

	// Два singleton-кластера: второй вектор недостаточно близок к первому
	// (sim 0.73 < 0.92), поэтому образует собственный кластер.
	addTestImage(t, st, "img-1", []float32{1, 0, 0})
	addTestImage(t, st, "img-2", []float32{0.73, 0.6834, 0})
	_, err := engine.Assign(st, "img-1", []float32{1, 0, 0})
	require.NoError(t, err)
	res2, err := engine.Assign(st, "img-2", []float32{0.73, 0.6834, 0})
	require.NoError(t, err)
	require.True(t, res2.Created)
	require.Len(t, st.Clusters, 2)

	// Биссектриса между кластерами: близость к обоим выше порога (~0.93),
	// но лучший кластер не отрывается от второго.
	addTestImage(t, st, "img-3", []float32{0.93, 0.3674, 0})
	res, err := engine.Assign(st, "img-3", []float32{0.93, 0.3674, 0})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Less(t, res.Margin, 0.05)
	assert.Greater(t, res.BestSimilarity, 0.92)
	assert.Len(t, st.Clusters, 3)
	assert.NoError(t, st.Validate())
}

func TestAssign_DimensionMismatchLeavesStateUntouched(t *testing.T) {
	st := NewState("user-1")
	engine := newTestEngine()

	addTestImage(t, st, "img-1", []float32{1, 0})

	_, err := engine.Assign(st, "img-1", []float32{1, 0})
	assert.ErrorIs(t, err, e.ErrDimensionMismatch)

	assert.Empty(t, st.Clusters)
	assert.Nil(t, st.Image("img-1").ClusterID)
}

func TestAssign_UnknownImage(t *testing.T) {
	st := NewState("user-1")

	_, err := newTestEngine().Assign(st, "ghost", []float32{1, 0, 0})
	assert.ErrorIs(t, err, e.ErrImageNotFound)
}

func TestAssign_AlreadyAssigned(t *testing.T) {
	st := NewState("user-1")
	engine := newTestEngine()

	addTestImage(t, st, "img-1", []float32{1, 0, 0})
	_, err := engine.Assign(st, "img-1", []float32{1, 0, 0})
	require.NoError(t, err)

	_, err = engine.Assign(st, "img-1", []float32{1, 0, 0})
	assert.ErrorIs(t, err, e.ErrImageAlreadyMember)
}

func TestAssign_ZeroVector(t *testing.T) {
	st := NewState("user-1")
	addTestImage(t, st, "img-1", []float32{0, 0, 0})

	_, err := newTestEngine().Assign(st, "img-1", []float32{0, 0, 0})
	assert.ErrorIs(t, err, e.ErrDegenerateVector)
	assert.Empty(t, st.Clusters)
}
