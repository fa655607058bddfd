package minio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/RohanKP1/image-upload-service/internal/cfg"
	"github.com/RohanKP1/image-upload-service/internal/domain"
	"github.com/RohanKP1/image-upload-service/internal/infrastructure"
	"github.com/RohanKP1/image-upload-service/internal/usecase"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/jitter"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"golang.org/x/image/draw"
)

const (
	thumbnailMaxSide = 256
	thumbnailQuality = 85
)

// MinioInfrastructure управляет загрузкой пар оригинал+миниатюра и их
// компенсирующей очисткой в MinIO.
type MinioInfrastructure struct {
	minioRepo   usecase.ObjectRepository
	cfg         *cfg.MinIOCfg
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
}

func NewMinioInfrastructure(minioRepo usecase.ObjectRepository, cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	return &MinioInfrastructure{
		minioRepo:   minioRepo,
		cfg:         cfg,
		logger:      logger,
		shutdownCtx: shutdownCtx,
	}
}

// UploadImagePair сохраняет оригинал и миниатюру изображения.
// Если миниатюру загрузить не удалось, оригинал удаляется в фоне.
func (m *MinioInfrastructure) UploadImagePair(ctx context.Context, req *usecase.UploadImagePairReq) (*usecase.UploadImagePairRes, error) {
	const op = "MinioInfrastructure.UploadImagePair"

	ext, err := infrastructure.GetExtensionFromMIME(req.MimeType)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("invalid mime type %s for %s: %w", req.MimeType, req.Filename, err))
	}

	originalKey := fmt.Sprintf("%s/original/%s.%s", req.UserID, req.ImageID, ext)
	original := domain.NewObject(req.ImageID, m.cfg.BucketName, originalKey, req.Data, req.MimeType)

	uploadedOriginal, err := m.minioRepo.Upload(ctx, original)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	thumbData, thumbType := m.thumbnailOf(req)
	thumbnailKey := fmt.Sprintf("%s/thumbnail/%s.jpg", req.UserID, req.ImageID)
	thumbnail := domain.NewObject(req.ImageID, m.cfg.BucketName, thumbnailKey, thumbData, thumbType)

	uploadedThumbnail, err := m.minioRepo.Upload(ctx, thumbnail)
	if err != nil {
		m.CleanupObjects([]string{uploadedOriginal})
		return nil, e.Wrap(op, err)
	}

	return usecase.NewUploadImagePairRes(uploadedOriginal, uploadedThumbnail), nil
}

// thumbnailOf строит JPEG-миниатюру. Если изображение не декодируется,
// в качестве миниатюры сохраняется оригинал.
func (m *MinioInfrastructure) thumbnailOf(req *usecase.UploadImagePairReq) ([]byte, string) {
	thumb, err := makeThumbnail(req.Data)
	if err != nil {
		m.logger.Warnf("thumbnail generation failed for %s, storing original: %v", req.Filename, err)
		return req.Data, req.MimeType
	}
	return thumb, "image/jpeg"
}

// CleanupObjects запускает фоновую очистку указанных ключей MinIO.
func (m *MinioInfrastructure) CleanupObjects(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет указанные объекты из MinIO с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done() // сигнализируем завершение компенсации
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: Cleaning up uploaded keys", op)

	// Создаём контекст с таймаутом на основе shutdownCtx
	ctx, cancel := context.WithTimeout(m.shutdownCtx, 30*time.Second)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < 3; attempt++ {
			if err := m.minioRepo.Delete(ctx, key); err == nil {
				break
			}

			select {
			case <-ctx.Done():
				m.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			default:
			}

			if attempt < 2 {
				sleepTime := jitter.ExponentialBackoff(time.Second, 10*time.Second, attempt, jitter.DefaultJitter)
				select {
				case <-time.After(sleepTime):
				case <-ctx.Done():
					m.logger.Warnf("cleanup interrupted by shutdown during backoff, key=%v", key)
					return
				}
			}
		}
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

// makeThumbnail уменьшает изображение так, чтобы большая сторона не превышала
// thumbnailMaxSide, и кодирует результат в JPEG.
func makeThumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= thumbnailMaxSide && h <= thumbnailMaxSide {
		// Уже достаточно маленькое, только перекодируем.
		return encodeJPEG(src)
	}

	var dw, dh int
	if w >= h {
		dw = thumbnailMaxSide
		dh = h * thumbnailMaxSide / w
	} else {
		dh = thumbnailMaxSide
		dw = w * thumbnailMaxSide / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	return encodeJPEG(dst)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
