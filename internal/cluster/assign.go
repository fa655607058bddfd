package cluster

import (
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/RohanKP1/image-upload-service/pkg/vectormath"
)

// AssignParams — настраиваемые константы инкрементального назначения.
// Пороги заданы явно в конфигурации, а не выводятся из данных: наборы
// изображений одного пользователя обычно слишком малы для устойчивой
// адаптивной настройки.
type AssignParams struct {
	Dimension          int     // размерность векторов D
	CohesionK          float64 // k в пороге принятия mean - k*stddev
	MarginThreshold    float64 // минимальный отрыв от второго кандидата
	FallbackSimilarity float64 // порог для кластеров без статистики cohesion (<2 участников)
}

// AssignResult — итог инкрементального назначения одного изображения.
type AssignResult struct {
	ClusterID      string
	Created        bool // true — создан новый singleton-кластер
	BestSimilarity float64
	Margin         float64
}

// AssignmentEngine решает, присоединить ли новое изображение к существующему
// кластеру или создать новый, не перезапуская полную кластеризацию.
type AssignmentEngine struct {
	params AssignParams
	logger logger.Logger
}

func NewAssignmentEngine(params AssignParams, logger logger.Logger) *AssignmentEngine {
	return &AssignmentEngine{
		params: params,
		logger: logger,
	}
}

// Assign выполняет процедуру назначения для изображения, уже добавленного в
// состояние как некластеризованная запись.
//
// Правило решения: изображение присоединяется к лучшему кластеру только если
// близость к его центроиду не ниже порога принятия кластера И отрыв от
// второго кандидата не ниже порога margin. Иначе создается новый
// singleton-кластер — последующая полная перекластеризация при необходимости
// объединит его с соседями.
func (a *AssignmentEngine) Assign(st *State, imageID string, embedding []float32) (*AssignResult, error) {
	const op = "AssignmentEngine.Assign"

	if len(embedding) != a.params.Dimension {
		return nil, e.Wrap(op, e.ErrDimensionMismatch)
	}

	img := st.Image(imageID)
	if img == nil {
		return nil, e.Wrap(op, e.ErrImageNotFound)
	}
	if img.ClusterID != nil {
		return nil, e.Wrap(op, e.ErrImageAlreadyMember)
	}

	// Первое изображение пользователя всегда образует новый кластер
	if len(st.Clusters) == 0 {
		return a.createSingleton(st, imageID)
	}

	normalized, err := vectormath.Normalize(embedding)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	best, secondBestSim, err := a.rankClusters(st, normalized)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	required := a.acceptanceThreshold(best)
	margin := best.similarity - secondBestSim
	accept := best.similarity >= required && margin >= a.params.MarginThreshold

	a.logger.Debugf(
		"assign decision: user=%s image=%s best=%s sim=%.3f second=%.3f required=%.3f margin=%.3f accept=%t",
		st.UserID, imageID, best.clusterID, best.similarity, secondBestSim, required, margin, accept,
	)

	if !accept {
		res, err := a.createSingleton(st, imageID)
		if err != nil {
			return nil, err
		}
		res.BestSimilarity = best.similarity
		res.Margin = margin
		return res, nil
	}

	if err := st.AddImageToCluster(imageID, best.clusterID); err != nil {
		return nil, e.Wrap(op, err)
	}

	return &AssignResult{
		ClusterID:      best.clusterID,
		Created:        false,
		BestSimilarity: best.similarity,
		Margin:         margin,
	}, nil
}

type candidate struct {
	clusterID  string
	similarity float64
	size       int
	cohesion   float64
	stddev     float64
}

// rankClusters возвращает лучший кластер и близость ко второму по рангу.
// Если кластер один, близость второго равна -1 (margin заведомо проходит).
func (a *AssignmentEngine) rankClusters(st *State, normalized []float32) (candidate, float64, error) {
	var (
		best   = candidate{similarity: -2}
		second = -1.0
	)

	for _, c := range st.ClusterList() {
		if len(c.Centroid) != len(normalized) {
			return candidate{}, 0, e.ErrDimensionMismatch
		}

		// Центроиды единичной длины — достаточно скалярного произведения
		sim := vectormath.Dot(normalized, c.Centroid)
		if sim > best.similarity {
			if best.similarity > second {
				second = best.similarity
			}
			best = candidate{
				clusterID:  c.ID,
				similarity: sim,
				size:       c.Size(),
				cohesion:   c.Cohesion.Mean,
				stddev:     c.Cohesion.StdDev,
			}
		} else if sim > second {
			second = sim
		}
	}

	return best, second, nil
}

// acceptanceThreshold возвращает порог принятия для кластера: mean - k*stddev
// по статистике cohesion, либо фиксированный порог для кластеров, у которых
// статистика еще не определена.
func (a *AssignmentEngine) acceptanceThreshold(c candidate) float64 {
	if c.size < 2 {
		return a.params.FallbackSimilarity
	}
	return c.cohesion - a.params.CohesionK*c.stddev
}

func (a *AssignmentEngine) createSingleton(st *State, imageID string) (*AssignResult, error) {
	const op = "AssignmentEngine.createSingleton"

	c, err := st.AddSingletonCluster(imageID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &AssignResult{
		ClusterID: c.ID,
		Created:   true,
	}, nil
}
