// Package cluster содержит ядро кластеризации изображений: состояние кластеров
// пользователя, инкрементальное назначение нового изображения и полную
// перекластеризацию. Все вычисления выполняются в памяти и не ходят в сеть.
package cluster

import (
	"math"
	"sort"

	"github.com/RohanKP1/image-upload-service/internal/domain"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/vectormath"
	"github.com/google/uuid"
)

// State — авторитетное in-memory состояние кластеров и изображений одного
// пользователя на время скоординированной операции. Единица блокировки и
// записи в хранилище.
//
// Инварианты, поддерживаемые мутаторами:
//   - каждое кластеризованное изображение входит ровно в один кластер,
//     и этот кластер совпадает с image.ClusterID;
//   - каждый участник кластера ссылается на существующее изображение;
//   - центроид кластера единичной длины и вместе с cohesion пересчитан
//     точно по текущему составу участников.
type State struct {
	UserID   string
	Images   map[string]*domain.Image
	Clusters map[string]*domain.Cluster
}

// NewState создает пустое состояние пользователя.
func NewState(userID string) *State {
	return &State{
		UserID:   userID,
		Images:   make(map[string]*domain.Image),
		Clusters: make(map[string]*domain.Cluster),
	}
}

// Image возвращает запись изображения или nil.
func (s *State) Image(imageID string) *domain.Image {
	return s.Images[imageID]
}

// Cluster возвращает кластер или nil.
func (s *State) Cluster(clusterID string) *domain.Cluster {
	return s.Clusters[clusterID]
}

// ClusterList возвращает кластеры, отсортированные по ID, для детерминированного обхода.
func (s *State) ClusterList() []*domain.Cluster {
	out := make([]*domain.Cluster, 0, len(s.Clusters))
	for _, c := range s.Clusters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ImageList возвращает изображения, отсортированные по ID.
func (s *State) ImageList() []*domain.Image {
	out := make([]*domain.Image, 0, len(s.Images))
	for _, img := range s.Images {
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClusterMemberIDs возвращает отсортированные id участников кластера;
// nil, если кластера нет.
func (s *State) ClusterMemberIDs(clusterID string) []string {
	c, ok := s.Clusters[clusterID]
	if !ok {
		return nil
	}
	return sortedMembers(c)
}

// AddImage добавляет некластеризованную запись изображения в состояние.
func (s *State) AddImage(img *domain.Image) error {
	if _, ok := s.Images[img.ID]; ok {
		return e.ErrDuplicateImage
	}
	s.Images[img.ID] = img
	return nil
}

// AddSingletonCluster создает кластер из одного изображения: центроид равен
// нормализованному вектору изображения, cohesion не определена.
func (s *State) AddSingletonCluster(imageID string) (*domain.Cluster, error) {
	img, ok := s.Images[imageID]
	if !ok {
		return nil, e.ErrImageNotFound
	}
	if img.ClusterID != nil {
		return nil, e.ErrImageAlreadyMember
	}

	centroid, err := vectormath.Normalize(img.Embedding)
	if err != nil {
		return nil, err
	}

	c := domain.NewCluster(s.UserID, uuid.NewString())
	c.Centroid = centroid
	c.Members[imageID] = struct{}{}

	s.Clusters[c.ID] = c
	img.ClusterID = &c.ID
	return c, nil
}

// AddImageToCluster добавляет изображение в существующий кластер и точно
// пересчитывает центроид и cohesion по обновленному составу.
func (s *State) AddImageToCluster(imageID, clusterID string) error {
	img, ok := s.Images[imageID]
	if !ok {
		return e.ErrImageNotFound
	}
	c, ok := s.Clusters[clusterID]
	if !ok {
		return e.ErrClusterNotFound
	}
	if img.ClusterID != nil {
		return e.ErrImageAlreadyMember
	}

	c.Members[imageID] = struct{}{}
	if err := s.recomputeStats(c); err != nil {
		// Откат: не оставляем кластер с устаревшей статистикой
		delete(c.Members, imageID)
		return err
	}

	img.ClusterID = &clusterID
	return nil
}

// RemoveImage удаляет изображение из состояния. Если изображение состояло в
// кластере, статистика кластера пересчитывается по оставшимся участникам;
// опустевший кластер удаляется целиком.
func (s *State) RemoveImage(imageID string) error {
	img, ok := s.Images[imageID]
	if !ok {
		return e.ErrImageNotFound
	}

	if img.ClusterID != nil {
		c, ok := s.Clusters[*img.ClusterID]
		if !ok {
			return e.ErrClusterNotFound
		}

		delete(c.Members, imageID)
		if len(c.Members) == 0 {
			delete(s.Clusters, c.ID)
		} else if err := s.recomputeStats(c); err != nil {
			c.Members[imageID] = struct{}{}
			return err
		}
	}

	delete(s.Images, imageID)
	return nil
}

// ReplaceAllClusters атомарно заменяет весь набор кластеров пользователя
// новым разбиением. Каждая группа — список image id; кластеры получают свежие
// идентификаторы, прежние не переиспользуются. Изображения вне групп
// становятся некластеризованными.
func (s *State) ReplaceAllClusters(groups [][]string) ([]*domain.Cluster, error) {
	clusters := make([]*domain.Cluster, 0, len(groups))
	assigned := make(map[string]*domain.Cluster, len(s.Images))

	for _, group := range groups {
		if len(group) == 0 {
			continue
		}

		c := domain.NewCluster(s.UserID, uuid.NewString())
		for _, imageID := range group {
			img, ok := s.Images[imageID]
			if !ok {
				return nil, e.ErrImageNotFound
			}
			if _, dup := assigned[imageID]; dup {
				return nil, e.ErrImageAlreadyMember
			}
			if !img.HasEmbedding() {
				return nil, e.ErrEmptyEmbedding
			}
			c.Members[imageID] = struct{}{}
			assigned[imageID] = c
		}

		if err := s.recomputeStats(c); err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}

	// Старое разбиение отбрасывается только после успешной сборки нового
	s.Clusters = make(map[string]*domain.Cluster, len(clusters))
	for _, c := range clusters {
		s.Clusters[c.ID] = c
	}
	for _, img := range s.Images {
		if c, ok := assigned[img.ID]; ok {
			id := c.ID
			img.ClusterID = &id
		} else {
			img.ClusterID = nil
		}
	}

	return clusters, nil
}

// Validate проверяет инварианты состояния. Используется после загрузки из
// хранилища и в тестах.
func (s *State) Validate() error {
	seen := make(map[string]string, len(s.Images))
	for _, c := range s.Clusters {
		for imageID := range c.Members {
			img, ok := s.Images[imageID]
			if !ok {
				return e.ErrImageNotFound
			}
			if img.ClusterID == nil || *img.ClusterID != c.ID {
				return e.ErrClusterNotFound
			}
			if _, dup := seen[imageID]; dup {
				return e.ErrImageAlreadyMember
			}
			seen[imageID] = c.ID
		}
	}
	for _, img := range s.Images {
		if img.ClusterID == nil {
			continue
		}
		c, ok := s.Clusters[*img.ClusterID]
		if !ok || !c.HasMember(img.ID) {
			return e.ErrClusterNotFound
		}
	}
	return nil
}

// recomputeStats пересчитывает центроид и cohesion кластера с нуля по текущим
// участникам. Инкрементальные приближения не используются намеренно: составы
// кластеров небольшие, а накопленный дрейф нарушил бы инвариант.
func (s *State) recomputeStats(c *domain.Cluster) error {
	vectors := make([][]float32, 0, len(c.Members))
	for _, imageID := range sortedMembers(c) {
		img, ok := s.Images[imageID]
		if !ok {
			return e.ErrImageNotFound
		}
		v, err := vectormath.Normalize(img.Embedding)
		if err != nil {
			return err
		}
		vectors = append(vectors, v)
	}

	centroid, err := vectormath.Centroid(vectors)
	if err != nil {
		return err
	}
	c.Centroid = centroid

	if len(vectors) < 2 {
		c.Cohesion = domain.Cohesion{}
		return nil
	}

	sims := make([]float64, len(vectors))
	var mean float64
	for i, v := range vectors {
		sims[i] = vectormath.Dot(v, centroid)
		mean += sims[i]
	}
	mean /= float64(len(sims))

	var variance float64
	for _, sim := range sims {
		d := sim - mean
		variance += d * d
	}
	variance /= float64(len(sims))

	c.Cohesion = domain.Cohesion{Mean: mean, StdDev: math.Sqrt(variance)}
	return nil
}

func sortedMembers(c *domain.Cluster) []string {
	ids := make([]string, 0, len(c.Members))
	for id := range c.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
