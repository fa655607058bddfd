package usecase

import (
	"context"

	"github.com/RohanKP1/image-upload-service/internal/cluster"
	"github.com/RohanKP1/image-upload-service/internal/domain"
)

// Transactor выполняет fn в рамках одной транзакции базы данных.
// Транзакционный объект передается вниз через контекст.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// StateRepository — коллаборатор долговременного хранения состояния кластеров пользователя.
type StateRepository interface {
	// LoadState возвращает текущее состояние пользователя; пустое состояние, если записей нет.
	LoadState(ctx context.Context, userID string) (*cluster.State, error)
	// SaveState записывает состояние целиком; запись атомарна с точки зрения вызывающего.
	SaveState(ctx context.Context, st *cluster.State) error
	// UpdateClusterNames проставляет имена кластерам; несуществующие кластеры молча пропускаются.
	UpdateClusterNames(ctx context.Context, userID string, names map[string]string) error
}

// VectorIndexRepository — вторичный векторный индекс для поиска похожих изображений.
type VectorIndexRepository interface {
	Upsert(ctx context.Context, vectors []domain.Embedding) error
	DeleteByImage(ctx context.Context, userID, imageID string) error
	SearchSimilar(ctx context.Context, userID string, vector []float32, limit uint64) ([]SimilarImage, error)
}

// CacheRepository — кэш сводок кластеров пользователя.
type CacheRepository interface {
	GetClusterSummaries(ctx context.Context, userID string) ([]ClusterSummary, bool, error)
	SetClusterSummaries(ctx context.Context, userID string, summaries []ClusterSummary) error
	InvalidateUser(ctx context.Context, userID string) error
}

// ObjectRepository — хранилище байтов изображений.
type ObjectRepository interface {
	Upload(ctx context.Context, obj *domain.Object) (string, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string) (string, error)
}
