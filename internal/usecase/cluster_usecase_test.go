package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/RohanKP1/image-upload-service/internal/cluster"
	"github.com/RohanKP1/image-upload-service/internal/domain"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clusterUCFixture struct {
	uc       *ClusterUseCase
	repo     *fakeStateRepo
	ml       *fakeMlService
	cache    *fakeCacheRepo
	producer *fakeProducer
}

func newClusterUCFixture(t *testing.T) *clusterUCFixture {
	t.Helper()

	conf := testClusteringCfg()
	f := &clusterUCFixture{
		repo:     newFakeStateRepo(),
		ml:       &fakeMlService{name: "pets"},
		cache:    &fakeCacheRepo{},
		producer: &fakeProducer{},
	}

	engine := cluster.NewReclusterEngine(
		cluster.NewKMeansPartitioner(conf.KMeansMaxIter, conf.MaxAutoK),
		conf.VectorSize,
		logger.Nop{},
	)

	f.uc = NewClusterUC(
		NewCoordinator(&fakeTransactor{}, f.repo),
		f.repo,
		engine,
		f.ml,
		f.cache,
		f.producer,
		conf,
		logger.Nop{},
	)
	return f
}

func seedUserState(t *testing.T, repo *fakeStateRepo, userID string, embeddings map[string][]float32) {
	t.Helper()

	st := cluster.NewState(userID)
	for id, emb := range embeddings {
		img := domain.NewImage(userID, id, id+".jpg", "image/jpeg")
		img.Embedding = emb
		desc := "photo of " + id
		img.Description = &desc
		require.NoError(t, st.AddImage(img))
	}
	repo.states[userID] = st
}

func TestRecluster_MissingUserID(t *testing.T) {
	f := newClusterUCFixture(t)

	_, err := f.uc.Recluster(context.Background(), NewReclusterReq("", 0, false))
	assert.ErrorIs(t, err, e.ErrMissingUserID)
}

func TestRecluster_PartitionsAndPublishes(t *testing.T) {
	f := newClusterUCFixture(t)
	seedUserState(t, f.repo, "user-1", map[string][]float32{
		"a1": {1, 0, 0},
		"a2": {0.995, 0.0998, 0},
		"b1": {0, 1, 0},
		"b2": {0.0998, 0.995, 0},
	})

	res, err := f.uc.Recluster(context.Background(), NewReclusterReq("user-1", 2, false))
	require.NoError(t, err)
	require.Len(t, res.Clusters, 2)
	assert.Empty(t, res.Unclustered)

	for _, summary := range res.Clusters {
		assert.Equal(t, 2, summary.Size)
		assert.Nil(t, summary.Name)
	}

	require.NoError(t, f.repo.states["user-1"].Validate())
	assert.Equal(t, 1, f.cache.invalidations)

	require.Len(t, f.producer.reclustered, 1)
	assert.Equal(t, 2, f.producer.reclustered[0].ClusterCount)
	assert.Equal(t, 4, f.producer.reclustered[0].ImageCount)
	assert.Zero(t, f.ml.nameCalls)
}

func TestRecluster_GeneratesNames(t *testing.T) {
	f := newClusterUCFixture(t)
	seedUserState(t, f.repo, "user-1", map[string][]float32{
		"a1": {1, 0, 0},
		"a2": {0.995, 0.0998, 0},
	})

	res, err := f.uc.Recluster(context.Background(), NewReclusterReq("user-1", 1, true))
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)

	require.NotNil(t, res.Clusters[0].Name)
	assert.Equal(t, "pets", *res.Clusters[0].Name)
	assert.Equal(t, 1, f.ml.nameCalls)

	// Имя записано в сохраненное состояние второй эксклюзивной секцией
	stored := f.repo.states["user-1"]
	require.NotNil(t, stored)
	for _, cl := range stored.ClusterList() {
		require.NotNil(t, cl.Name)
		assert.Equal(t, "pets", *cl.Name)
	}
	assert.Equal(t, 2, f.repo.saves)
}

func TestRecluster_NamingFailureIsNotFatal(t *testing.T) {
	f := newClusterUCFixture(t)
	f.ml.nameErr = fmt.Errorf("ml service unavailable")
	seedUserState(t, f.repo, "user-1", map[string][]float32{
		"a1": {1, 0, 0},
	})

	res, err := f.uc.Recluster(context.Background(), NewReclusterReq("user-1", 0, true))
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Nil(t, res.Clusters[0].Name)
}

func TestRecluster_EmptyUser(t *testing.T) {
	f := newClusterUCFixture(t)

	res, err := f.uc.Recluster(context.Background(), NewReclusterReq("user-1", 0, false))
	require.NoError(t, err)
	assert.Empty(t, res.Clusters)
	assert.Empty(t, res.Unclustered)
}

func TestListClusters_CacheHit(t *testing.T) {
	f := newClusterUCFixture(t)
	f.cache.hit = true
	f.cache.summaries = []ClusterSummary{{ID: "c-1", Size: 3}}
	f.repo.loadErr = fmt.Errorf("must not touch storage on cache hit")

	res, err := f.uc.ListClusters(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "c-1", res[0].ID)
}

func TestListClusters_CacheMissBackfills(t *testing.T) {
	f := newClusterUCFixture(t)
	f.cache.setDone = make(chan struct{})
	seedUserState(t, f.repo, "user-1", map[string][]float32{
		"a1": {1, 0, 0},
	})
	_, err := f.uc.Recluster(context.Background(), NewReclusterReq("user-1", 0, false))
	require.NoError(t, err)

	res, err := f.uc.ListClusters(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, []string{"a1"}, res[0].ImageIDs)

	select {
	case <-f.cache.setDone:
	case <-time.After(time.Second):
		t.Fatal("cache was not backfilled in background")
	}
	assert.Equal(t, 1, f.cache.sets)
}
