package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RohanKP1/image-upload-service/internal/cfg"
	"github.com/RohanKP1/image-upload-service/internal/cluster"
	"github.com/RohanKP1/image-upload-service/internal/domain"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/google/uuid"
)

// ClusterUseCase реализует полную перекластеризацию и выдачу сводок кластеров.
type ClusterUseCase struct {
	coordinator     *Coordinator
	stateRepo       StateRepository
	reclusterEngine *cluster.ReclusterEngine
	mlService       MlServiceInfra
	cacheRepo       CacheRepository
	producer        EventProducer
	cfg             *cfg.ClusteringCfg
	logger          logger.Logger
}

func NewClusterUC(
	coordinator *Coordinator,
	stateRepo StateRepository,
	reclusterEngine *cluster.ReclusterEngine,
	mlService MlServiceInfra,
	cacheRepo CacheRepository,
	producer EventProducer,
	cfg *cfg.ClusteringCfg,
	logger logger.Logger,
) *ClusterUseCase {
	return &ClusterUseCase{
		coordinator:     coordinator,
		stateRepo:       stateRepo,
		reclusterEngine: reclusterEngine,
		mlService:       mlService,
		cacheRepo:       cacheRepo,
		producer:        producer,
		cfg:             cfg,
		logger:          logger,
	}
}

// Recluster пересчитывает разбиение пользователя с нуля. При ошибке записи
// прежнее разбиение остается нетронутым. Именование кластеров выполняется
// после выхода из эксклюзивной секции и не влияет на успех операции.
func (c *ClusterUseCase) Recluster(ctx context.Context, req *ReclusterReq) (*ReclusterRes, error) {
	const op = "ClusterUseCase.Recluster"

	if req.UserID == "" {
		return nil, e.Wrap(op, e.ErrMissingUserID)
	}

	k := req.NClusters
	if k < 1 {
		k = 0 // автоподбор
	}

	var (
		result       *cluster.ReclusterResult
		descriptions map[string][]string
		imageCount   int
	)
	err := c.coordinator.WithUserState(ctx, req.UserID, func(st *cluster.State) error {
		res, err := c.reclusterEngine.Recluster(st, k)
		if err != nil {
			return err
		}
		result = res
		descriptions = collectDescriptions(st, res.Clusters, c.cfg.NamingSampleLimit)
		imageCount = len(st.Images)
		return nil
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	names := map[string]string{}
	if req.GenerateNames {
		names = c.nameClusters(ctx, req.UserID, descriptions)
	}

	if err := c.cacheRepo.InvalidateUser(ctx, req.UserID); err != nil {
		c.logger.Warnf("failed to invalidate cluster cache: %v", e.Wrap(op, err))
	}

	event := &ReclusterCompletedEvent{
		EventID:      uuid.NewString(),
		UserID:       req.UserID,
		ClusterCount: len(result.Clusters),
		ImageCount:   imageCount,
		Timestamp:    time.Now().UTC().UnixNano(),
	}
	if err := c.producer.PublishReclusterCompleted(ctx, event); err != nil {
		c.logger.Warnf("failed to publish recluster event: %v", e.Wrap(op, err))
	}

	summaries := make([]ClusterSummary, 0, len(result.Clusters))
	for _, cl := range result.Clusters {
		summary := newClusterSummary(cl)
		if name, ok := names[cl.ID]; ok {
			summary.Name = &name
		}
		summaries = append(summaries, summary)
	}

	return &ReclusterRes{
		Clusters:    summaries,
		Unclustered: result.Unclustered,
	}, nil
}

// ListClusters возвращает сводки кластеров пользователя, используя кэш.
// Промах кэша приводит к чтению состояния и фоновому заполнению кэша.
func (c *ClusterUseCase) ListClusters(ctx context.Context, userID string) ([]ClusterSummary, error) {
	const op = "ClusterUseCase.ListClusters"

	if cached, ok, err := c.cacheRepo.GetClusterSummaries(ctx, userID); err == nil && ok {
		return cached, nil
	}

	st, err := c.stateRepo.LoadState(ctx, userID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	summaries := make([]ClusterSummary, 0, len(st.Clusters))
	for _, cl := range st.ClusterList() {
		summaries = append(summaries, newClusterSummary(cl))
	}

	// Фоновое заполнение кэша, не задерживаем ответ
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := c.cacheRepo.SetClusterSummaries(bgCtx, userID, summaries); err != nil {
			c.logger.Warnf("failed to cache cluster summaries in background: %v", e.Wrap(op, err))
		}
	}()

	return summaries, nil
}

// nameClusters запрашивает имена для кластеров параллельно и записывает их
// во второй короткой эксклюзивной секции; кластеры, исчезнувшие к этому
// моменту, молча пропускаются. Отказ именования отдельного кластера не
// фатален: кластер останется без имени до следующей перекластеризации.
func (c *ClusterUseCase) nameClusters(ctx context.Context, userID string, descriptions map[string][]string) map[string]string {
	const op = "ClusterUseCase.nameClusters"

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		names = make(map[string]string, len(descriptions))
	)

	for clusterID, samples := range descriptions {
		if len(samples) == 0 {
			continue
		}

		wg.Add(1)
		go func(clusterID string, samples []string) {
			defer wg.Done()

			name, err := c.mlService.NameCluster(ctx, samples)
			if err != nil {
				c.logger.Warnf("failed to name cluster %s: %v", clusterID, err)
				return
			}

			mu.Lock()
			names[clusterID] = name
			mu.Unlock()
		}(clusterID, samples)
	}
	wg.Wait()

	if len(names) == 0 {
		return names
	}

	err := c.coordinator.WithUserState(ctx, userID, func(st *cluster.State) error {
		for clusterID, name := range names {
			cl := st.Cluster(clusterID)
			if cl == nil {
				continue
			}
			n := name
			cl.Name = &n
		}
		return nil
	})
	if err != nil {
		c.logger.Warnf("failed to persist cluster names: %v", e.Wrap(op, err))
	}
	return names
}

// collectDescriptions отбирает до limit описаний участников каждого кластера
// для сервиса именования; при отсутствии описаний берутся имена файлов.
func collectDescriptions(st *cluster.State, clusters []*domain.Cluster, limit int) map[string][]string {
	out := make(map[string][]string, len(clusters))
	for _, cl := range clusters {
		samples := make([]string, 0, limit)
		fallbacks := make([]string, 0, limit)

		for _, imageID := range st.ClusterMemberIDs(cl.ID) {
			if len(samples) >= limit {
				break
			}
			img := st.Image(imageID)
			if img == nil {
				continue
			}
			if img.Description != nil && *img.Description != "" {
				samples = append(samples, *img.Description)
			} else if len(fallbacks) < limit {
				fallbacks = append(fallbacks, img.Filename)
			}
		}

		if len(samples) == 0 {
			samples = fallbacks
		}
		out[cl.ID] = samples
	}
	return out
}

func newClusterSummary(cl *domain.Cluster) ClusterSummary {
	ids := make([]string, 0, len(cl.Members))
	for id := range cl.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ClusterSummary{
		ID:             cl.ID,
		Name:           cl.Name,
		Size:           cl.Size(),
		CohesionMean:   cl.Cohesion.Mean,
		CohesionStdDev: cl.Cohesion.StdDev,
		ImageIDs:       ids,
	}
}
