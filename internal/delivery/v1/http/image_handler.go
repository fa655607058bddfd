package http

import (
	"net/http"
	"time"

	"github.com/RohanKP1/image-upload-service/internal/usecase"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ImageHandler struct {
	imageUsecase usecase.ImageUC
	logger       logger.Logger
}

func NewImageHandler(imageUsecase usecase.ImageUC, logger logger.Logger) *ImageHandler {
	return &ImageHandler{imageUsecase: imageUsecase, logger: logger}
}

type uploadImageResponse struct {
	ID             string  `json:"id"`
	Filename       string  `json:"filename"`
	OriginalURL    string  `json:"original_url"`
	ThumbnailURL   string  `json:"thumbnail_url"`
	Description    *string `json:"description,omitempty"`
	ClusterID      *string `json:"cluster_id,omitempty"`
	ClusterCreated bool    `json:"cluster_created"`
}

type imageDetailsResponse struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	UploadedAt   time.Time `json:"uploaded_at"`
	OriginalURL  string    `json:"original_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Description  *string   `json:"description,omitempty"`
	ClusterID    *string   `json:"cluster_id,omitempty"`
}

type similarImageResponse struct {
	ImageID string  `json:"image_id"`
	Score   float64 `json:"score"`
}

// uploadImages принимает multipart-форму с изображениями, загружает их
// в хранилище и инкрементально распределяет по кластерам пользователя.
func (h *ImageHandler) uploadImages(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 150 << 20
		maxMemory           = 32 << 20
	)

	userID, err := userIDFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, err.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	files, err := parseImages(r.MultipartForm.File["images"])
	if err != nil {
		h.logger.Warnf("%d invalid upload: %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	results, err := h.imageUsecase.UploadImages(r.Context(), usecase.NewUploadImagesReq(userID, files))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	response := make([]uploadImageResponse, 0, len(results))
	for _, res := range results {
		response = append(response, uploadImageResponse{
			ID:             res.ID,
			Filename:       res.Filename,
			OriginalURL:    res.OriginalURL,
			ThumbnailURL:   res.ThumbnailURL,
			Description:    res.Description,
			ClusterID:      res.ClusterID,
			ClusterCreated: res.ClusterCreated,
		})
	}

	WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"images": response,
	})
}

// listImages возвращает все изображения пользователя.
func (h *ImageHandler) listImages(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	images, err := h.imageUsecase.ListImages(r.Context(), userID)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"images": toImageDetailsResponses(images),
	})
}

// getImage возвращает одно изображение пользователя.
func (h *ImageHandler) getImage(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	image, err := h.imageUsecase.GetImage(r.Context(), userID, chi.URLParam(r, "imageID"))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toImageDetailsResponse(*image))
}

// deleteImage удаляет изображение пользователя вместе с вектором и объектами в хранилище.
func (h *ImageHandler) deleteImage(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.imageUsecase.DeleteImage(r.Context(), userID, chi.URLParam(r, "imageID")); err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// findSimilar возвращает ближайшие изображения пользователя по векторному индексу.
func (h *ImageHandler) findSimilar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	limit := queryInt(r, "limit", 0)

	similar, err := h.imageUsecase.FindSimilar(r.Context(), userID, chi.URLParam(r, "imageID"), limit)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	response := make([]similarImageResponse, 0, len(similar))
	for _, s := range similar {
		response = append(response, similarImageResponse{ImageID: s.ImageID, Score: s.Score})
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"similar": response,
	})
}

func toImageDetailsResponse(details usecase.ImageDetails) imageDetailsResponse {
	return imageDetailsResponse{
		ID:           details.ID,
		Filename:     details.Filename,
		UploadedAt:   details.UploadedAt,
		OriginalURL:  details.OriginalURL,
		ThumbnailURL: details.ThumbnailURL,
		Description:  details.Description,
		ClusterID:    details.ClusterID,
	}
}

func toImageDetailsResponses(details []usecase.ImageDetails) []imageDetailsResponse {
	result := make([]imageDetailsResponse, 0, len(details))
	for _, d := range details {
		result = append(result, toImageDetailsResponse(d))
	}
	return result
}
