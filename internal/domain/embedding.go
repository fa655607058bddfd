package domain

import "time"

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Embedding представляет точку векторного индекса для одного изображения
type Embedding struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewEmbedding(id string, vector []float32, payload Payload) *Embedding {
	return &Embedding{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}

func NewPayload(userID, imageID, imageKey string) Payload {
	return Payload{
		"user_id":    userID,
		"image_id":   imageID,
		"image_path": imageKey,
		"created_at": time.Now().UTC().UnixNano(),
	}
}
