package usecase

import "context"

// MlServiceInfra — внешний ML-сервис: описания, embedding-векторы и имена кластеров.
// Все вызовы могут завершиться транзиентной ошибкой; повторная попытка — забота вызывающего.
type MlServiceInfra interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	NameCluster(ctx context.Context, descriptions []string) (string, error)
}

// ImagesInfra — загрузка пары оригинал+миниатюра и компенсирующая очистка.
type ImagesInfra interface {
	UploadImagePair(ctx context.Context, req *UploadImagePairReq) (*UploadImagePairRes, error)
	CleanupObjects(keys []string)
	WaitForCleanup(ctx context.Context) error
}

// EventProducer публикует события изменения кластеров.
type EventProducer interface {
	PublishImageAssigned(ctx context.Context, event *ImageAssignedEvent) error
	PublishReclusterCompleted(ctx context.Context, event *ReclusterCompletedEvent) error
}
