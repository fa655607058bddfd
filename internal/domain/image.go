package domain

import "time"

// Image описывает загруженное пользователем изображение.
// ClusterID == nil означает, что изображение еще не привязано к кластеру.
type Image struct {
	UserID       string
	ID           string // uuid
	Filename     string
	ContentType  string
	OriginalKey  string // ключ оригинала в S3
	ThumbnailKey string // ключ миниатюры в S3
	Description  *string
	Embedding    []float32 // пустой срез — embedding еще не получен
	ClusterID    *string
	UploadedAt   time.Time
}

func NewImage(userID, id, filename, contentType string) *Image {
	return &Image{
		UserID:      userID,
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		UploadedAt:  time.Now().UTC(),
	}
}

// HasEmbedding возвращает true, если для изображения получен вектор.
func (i *Image) HasEmbedding() bool {
	return len(i.Embedding) > 0
}
