package converter

import (
	"github.com/RohanKP1/image-upload-service/internal/domain"
)

// ImageConverter преобразует сущности Image между domain и моделью PostgreSQL.
type ImageConverter struct{}

func NewImageConverter() ImageConverter {
	return ImageConverter{}
}

func (ImageConverter) ToModel(entity *domain.Image) *ImageModel {
	return &ImageModel{
		UserID:       entity.UserID,
		ID:           entity.ID,
		Filename:     entity.Filename,
		ContentType:  entity.ContentType,
		OriginalKey:  entity.OriginalKey,
		ThumbnailKey: entity.ThumbnailKey,
		Description:  entity.Description,
		Embedding:    entity.Embedding,
		ClusterID:    entity.ClusterID,
		UploadedAt:   entity.UploadedAt,
	}
}

func (ImageConverter) ToEntity(model *ImageModel) *domain.Image {
	return &domain.Image{
		UserID:       model.UserID,
		ID:           model.ID,
		Filename:     model.Filename,
		ContentType:  model.ContentType,
		OriginalKey:  model.OriginalKey,
		ThumbnailKey: model.ThumbnailKey,
		Description:  model.Description,
		Embedding:    model.Embedding,
		ClusterID:    model.ClusterID,
		UploadedAt:   model.UploadedAt,
	}
}

// ClusterConverter преобразует сущности Cluster между domain и моделью PostgreSQL.
// Состав участников кластера не хранится в таблице clusters: он восстанавливается
// по колонке cluster_id таблицы images.
type ClusterConverter struct{}

func NewClusterConverter() ClusterConverter {
	return ClusterConverter{}
}

func (ClusterConverter) ToModel(entity *domain.Cluster) *ClusterModel {
	return &ClusterModel{
		UserID:         entity.UserID,
		ID:             entity.ID,
		Name:           entity.Name,
		Centroid:       entity.Centroid,
		CohesionMean:   entity.Cohesion.Mean,
		CohesionStdDev: entity.Cohesion.StdDev,
		CreatedAt:      entity.CreatedAt,
	}
}

func (ClusterConverter) ToEntity(model *ClusterModel) *domain.Cluster {
	return &domain.Cluster{
		UserID:   model.UserID,
		ID:       model.ID,
		Name:     model.Name,
		Centroid: model.Centroid,
		Members:  make(map[string]struct{}),
		Cohesion: domain.Cohesion{
			Mean:   model.CohesionMean,
			StdDev: model.CohesionStdDev,
		},
		CreatedAt: model.CreatedAt,
	}
}
