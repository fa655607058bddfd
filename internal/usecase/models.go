package usecase

import "time"

// IMAGE USECASE

// ImageFile представляет файл, загруженный через multipart/form-data.
type ImageFile struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type из multipart (image/jpeg)
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов)
}

// UploadImagesReq — запрос на загрузку изображений пользователя.
type UploadImagesReq struct {
	UserID string
	Files  []ImageFile
}

// UploadImageRes — результат загрузки одного изображения.
type UploadImageRes struct {
	ID             string
	Filename       string
	OriginalURL    string
	ThumbnailURL   string
	Description    *string
	ClusterID      *string
	ClusterCreated bool
}

// ImageDetails — DTO изображения для внешнего использования.
type ImageDetails struct {
	ID           string
	Filename     string
	UploadedAt   time.Time
	OriginalURL  string
	ThumbnailURL string
	Description  *string
	ClusterID    *string
}

// SimilarImage — сосед по векторному индексу.
type SimilarImage struct {
	ImageID string
	Score   float64
}

// CLUSTER USECASE

// ReclusterReq — запрос полной перекластеризации.
// NClusters <= 0 означает автоматический подбор числа кластеров.
type ReclusterReq struct {
	UserID        string
	NClusters     int
	GenerateNames bool
}

// ReclusterRes — результат полной перекластеризации.
type ReclusterRes struct {
	Clusters    []ClusterSummary
	Unclustered []string
}

// ClusterSummary — сводка кластера без векторов.
type ClusterSummary struct {
	ID             string   `json:"id"`
	Name           *string  `json:"name,omitempty"`
	Size           int      `json:"size"`
	CohesionMean   float64  `json:"cohesion_mean"`
	CohesionStdDev float64  `json:"cohesion_stddev"`
	ImageIDs       []string `json:"image_ids"`
}

// INFRASTRUCTURE

// UploadImagePairReq — запрос на сохранение оригинала и миниатюры изображения.
type UploadImagePairReq struct {
	UserID   string
	ImageID  string
	Filename string
	MimeType string
	Data     []byte
}

// UploadImagePairRes — ключи сохраненных объектов.
type UploadImagePairRes struct {
	OriginalKey  string
	ThumbnailKey string
}

// ImageAssignedEvent — событие инкрементального назначения изображения.
type ImageAssignedEvent struct {
	EventID        string `json:"event_id"`
	UserID         string `json:"user_id"`
	ImageID        string `json:"image_id"`
	ClusterID      string `json:"cluster_id"`
	ClusterCreated bool   `json:"cluster_created"`
	Timestamp      int64  `json:"timestamp"`
}

// ReclusterCompletedEvent — событие завершения полной перекластеризации.
type ReclusterCompletedEvent struct {
	EventID      string `json:"event_id"`
	UserID       string `json:"user_id"`
	ClusterCount int    `json:"cluster_count"`
	ImageCount   int    `json:"image_count"`
	Timestamp    int64  `json:"timestamp"`
}

// MAPPERS

func NewUploadImagesReq(userID string, files []ImageFile) *UploadImagesReq {
	return &UploadImagesReq{
		UserID: userID,
		Files:  files,
	}
}

func NewImageFile(data []byte, mimeType string, size int64, name string) *ImageFile {
	return &ImageFile{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewReclusterReq(userID string, nClusters int, generateNames bool) *ReclusterReq {
	return &ReclusterReq{
		UserID:        userID,
		NClusters:     nClusters,
		GenerateNames: generateNames,
	}
}

func NewUploadImagePairReq(userID, imageID, filename, mimeType string, data []byte) *UploadImagePairReq {
	return &UploadImagePairReq{
		UserID:   userID,
		ImageID:  imageID,
		Filename: filename,
		MimeType: mimeType,
		Data:     data,
	}
}

func NewUploadImagePairRes(originalKey, thumbnailKey string) *UploadImagePairRes {
	return &UploadImagePairRes{
		OriginalKey:  originalKey,
		ThumbnailKey: thumbnailKey,
	}
}
