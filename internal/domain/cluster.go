package domain

import "time"

// Cohesion — статистика плотности кластера: среднее и стандартное отклонение
// косинусной близости участников к центроиду. Для кластеров с менее чем двумя
// участниками статистика не определена (нулевые значения).
type Cohesion struct {
	Mean   float64
	StdDev float64
}

// Cluster описывает кластер изображений одного пользователя.
// Инвариант: Centroid всегда единичной длины и пересчитывается вместе с Cohesion
// при каждом изменении состава участников.
type Cluster struct {
	UserID    string
	ID        string // uuid, не переживает полную перекластеризацию
	Name      *string
	Centroid  []float32
	Members   map[string]struct{} // image ids
	Cohesion  Cohesion
	CreatedAt time.Time
}

func NewCluster(userID, id string) *Cluster {
	return &Cluster{
		UserID:    userID,
		ID:        id,
		Members:   make(map[string]struct{}),
		CreatedAt: time.Now().UTC(),
	}
}

// Size возвращает количество участников кластера.
func (c *Cluster) Size() int {
	return len(c.Members)
}

// HasMember возвращает true, если изображение входит в кластер.
func (c *Cluster) HasMember(imageID string) bool {
	_, ok := c.Members[imageID]
	return ok
}
