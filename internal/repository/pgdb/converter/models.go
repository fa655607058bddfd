package converter

import "time"

// ImageModel представляет запись таблицы images в PostgreSQL.
type ImageModel struct {
	UserID       string    `db:"user_id"`
	ID           string    `db:"image_id"`
	Filename     string    `db:"filename"`
	ContentType  string    `db:"content_type"`
	OriginalKey  string    `db:"original_key"`
	ThumbnailKey string    `db:"thumbnail_key"`
	Description  *string   `db:"description"`
	Embedding    []float32 `db:"embedding"`
	ClusterID    *string   `db:"cluster_id"`
	UploadedAt   time.Time `db:"uploaded_at"`
}

// ClusterModel представляет запись таблицы clusters в PostgreSQL.
type ClusterModel struct {
	UserID         string    `db:"user_id"`
	ID             string    `db:"cluster_id"`
	Name           *string   `db:"name"`
	Centroid       []float32 `db:"centroid"`
	CohesionMean   float64   `db:"cohesion_mean"`
	CohesionStdDev float64   `db:"cohesion_stddev"`
	CreatedAt      time.Time `db:"created_at"`
}
