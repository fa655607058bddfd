package cluster

import (
	"github.com/RohanKP1/image-upload-service/internal/domain"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/RohanKP1/image-upload-service/pkg/vectormath"
)

// Partitioner разбивает набор нормализованных векторов на группы.
// Возвращает группы индексов входного среза. Конкретный алгоритм
// (k-means, агломеративный и т.п.) — деталь реализации, заменяемая целиком.
type Partitioner interface {
	Partition(vectors [][]float32, k int) ([][]int, error)
}

// ReclusterResult — итог полной перекластеризации.
type ReclusterResult struct {
	Clusters    []*domain.Cluster
	Unclustered []string // изображения без embedding, оставшиеся вне разбиения
}

// ReclusterEngine пересчитывает разбиение пользователя с нуля по всем
// изображениям с embedding. Прежние идентификаторы кластеров не сохраняются.
type ReclusterEngine struct {
	partitioner Partitioner
	dimension   int
	logger      logger.Logger
}

func NewReclusterEngine(partitioner Partitioner, dimension int, logger logger.Logger) *ReclusterEngine {
	return &ReclusterEngine{
		partitioner: partitioner,
		dimension:   dimension,
		logger:      logger,
	}
}

// Recluster заменяет разбиение состояния новым. k — желаемое число кластеров;
// k <= 0 означает автоматический выбор. Структурно идемпотентна: одинаковые
// embeddings и детерминированный Partitioner дают одинаковые составы групп
// (идентификаторы кластеров при этом всегда свежие).
func (r *ReclusterEngine) Recluster(st *State, k int) (*ReclusterResult, error) {
	const op = "ReclusterEngine.Recluster"

	images := make([]*domain.Image, 0, len(st.Images))
	unclustered := make([]string, 0)
	for _, img := range st.ImageList() {
		if !img.HasEmbedding() {
			unclustered = append(unclustered, img.ID)
			continue
		}
		if len(img.Embedding) != r.dimension {
			return nil, e.Wrap(op, e.ErrDimensionMismatch)
		}
		images = append(images, img)
	}

	groups, err := r.partitionImages(images, k)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	clusters, err := st.ReplaceAllClusters(groups)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	r.logger.Infof("recluster: user=%s images=%d clusters=%d unclustered=%d",
		st.UserID, len(images), len(clusters), len(unclustered))

	return &ReclusterResult{
		Clusters:    clusters,
		Unclustered: unclustered,
	}, nil
}

// partitionImages переводит изображения в нормализованные векторы, запускает
// Partitioner и возвращает группы image id. Вырожденные случаи обрабатываются
// без запуска алгоритма: ноль изображений — ноль кластеров, одно изображение —
// ровно один singleton-кластер.
func (r *ReclusterEngine) partitionImages(images []*domain.Image, k int) ([][]string, error) {
	switch len(images) {
	case 0:
		return nil, nil
	case 1:
		return [][]string{{images[0].ID}}, nil
	}

	vectors := make([][]float32, len(images))
	for i, img := range images {
		v, err := vectormath.Normalize(img.Embedding)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}

	indexGroups, err := r.partitioner.Partition(vectors, k)
	if err != nil {
		return nil, err
	}

	groups := make([][]string, 0, len(indexGroups))
	for _, idxs := range indexGroups {
		if len(idxs) == 0 {
			continue
		}
		group := make([]string, 0, len(idxs))
		for _, idx := range idxs {
			group = append(group, images[idx].ID)
		}
		groups = append(groups, group)
	}
	return groups, nil
}
