package usecase

import (
	"context"
	"time"

	"github.com/RohanKP1/image-upload-service/internal/cfg"
	"github.com/RohanKP1/image-upload-service/internal/cluster"
	"github.com/RohanKP1/image-upload-service/internal/domain"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/RohanKP1/image-upload-service/pkg/vectormath"
	"github.com/google/uuid"
)

// ImageUseCase реализует бизнес-логику загрузки изображений и их
// инкрементального распределения по кластерам.
type ImageUseCase struct {
	coordinator  *Coordinator
	stateRepo    StateRepository
	assignEngine *cluster.AssignmentEngine
	mlService    MlServiceInfra
	imagesInfra  ImagesInfra
	objectRepo   ObjectRepository
	vectorIndex  VectorIndexRepository
	cacheRepo    CacheRepository
	producer     EventProducer
	cfg          *cfg.ClusteringCfg
	logger       logger.Logger
}

func NewImageUC(
	coordinator *Coordinator,
	stateRepo StateRepository,
	assignEngine *cluster.AssignmentEngine,
	mlService MlServiceInfra,
	imagesInfra ImagesInfra,
	objectRepo ObjectRepository,
	vectorIndex VectorIndexRepository,
	cacheRepo CacheRepository,
	producer EventProducer,
	cfg *cfg.ClusteringCfg,
	logger logger.Logger,
) *ImageUseCase {
	return &ImageUseCase{
		coordinator:  coordinator,
		stateRepo:    stateRepo,
		assignEngine: assignEngine,
		mlService:    mlService,
		imagesInfra:  imagesInfra,
		objectRepo:   objectRepo,
		vectorIndex:  vectorIndex,
		cacheRepo:    cacheRepo,
		producer:     producer,
		cfg:          cfg,
		logger:       logger,
	}
}

// UploadImages обрабатывает пакет загруженных файлов: сохраняет байты и
// миниатюру, получает описание и embedding у ML-сервиса и инкрементально
// распределяет изображение по кластерам пользователя.
func (u *ImageUseCase) UploadImages(ctx context.Context, req *UploadImagesReq) ([]UploadImageRes, error) {
	const op = "ImageUseCase.UploadImages"

	if req.UserID == "" {
		return nil, e.Wrap(op, e.ErrMissingUserID)
	}
	if len(req.Files) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	responses := make([]UploadImageRes, 0, len(req.Files))
	for _, file := range req.Files {
		res, err := u.uploadOne(ctx, req.UserID, file)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		responses = append(responses, *res)
	}

	return responses, nil
}

// uploadOne выполняет полный конвейер для одного файла. Внешние вызовы
// (описание, embedding) идут до эксклюзивной секции; под блокировкой — только
// чтение-вычисление-запись состояния кластеров.
func (u *ImageUseCase) uploadOne(ctx context.Context, userID string, file ImageFile) (*UploadImageRes, error) {
	const op = "ImageUseCase.uploadOne"

	imageID := uuid.NewString()

	// Описание и embedding — best-effort: изображение сохраняется и без них,
	// оставаясь некластеризованным до повторной попытки
	description := u.describeImage(ctx, file)
	embedding := u.embedDescription(ctx, description)

	if len(embedding) > 0 && len(embedding) != u.cfg.VectorSize {
		return nil, e.Wrap(op, e.ErrDimensionMismatch)
	}

	keys, err := u.imagesInfra.UploadImagePair(ctx, NewUploadImagePairReq(userID, imageID, file.Name, file.MimeType, file.Data))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	img := domain.NewImage(userID, imageID, file.Name, file.MimeType)
	img.OriginalKey = keys.OriginalKey
	img.ThumbnailKey = keys.ThumbnailKey
	img.Embedding = embedding
	if description != "" {
		img.Description = &description
	}

	var assignRes *cluster.AssignResult
	err = u.coordinator.WithUserState(ctx, userID, func(st *cluster.State) error {
		if err := st.AddImage(img); err != nil {
			return err
		}
		if !img.HasEmbedding() {
			return nil
		}

		res, err := u.assignEngine.Assign(st, img.ID, img.Embedding)
		if err != nil {
			return err
		}
		assignRes = res
		return nil
	})
	if err != nil {
		// Состояние не записано — убираем осиротевшие объекты из хранилища
		u.imagesInfra.CleanupObjects([]string{keys.OriginalKey, keys.ThumbnailKey})
		return nil, e.Wrap(op, err)
	}

	u.afterAssign(ctx, img, assignRes, description)

	originalURL, thumbnailURL := u.presignPair(ctx, img)

	res := &UploadImageRes{
		ID:           img.ID,
		Filename:     img.Filename,
		OriginalURL:  originalURL,
		ThumbnailURL: thumbnailURL,
		Description:  img.Description,
	}
	if assignRes != nil {
		res.ClusterID = &assignRes.ClusterID
		res.ClusterCreated = assignRes.Created
	}
	return res, nil
}

// ListImages возвращает изображения пользователя с presigned-ссылками.
func (u *ImageUseCase) ListImages(ctx context.Context, userID string) ([]ImageDetails, error) {
	const op = "ImageUseCase.ListImages"

	st, err := u.stateRepo.LoadState(ctx, userID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	images := st.ImageList()
	result := make([]ImageDetails, 0, len(images))
	for _, img := range images {
		result = append(result, u.imageDetails(ctx, img))
	}

	return result, nil
}

// GetImage возвращает детали одного изображения.
func (u *ImageUseCase) GetImage(ctx context.Context, userID, imageID string) (*ImageDetails, error) {
	const op = "ImageUseCase.GetImage"

	st, err := u.stateRepo.LoadState(ctx, userID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	img := st.Image(imageID)
	if img == nil {
		return nil, e.Wrap(op, e.ErrImageNotFound)
	}

	details := u.imageDetails(ctx, img)
	return &details, nil
}

// DeleteImage удаляет изображение: запись состояния, вектор в индексе и
// объекты в хранилище. Удаление из внешних систем выполняется после фиксации
// состояния и не откатывает ее.
func (u *ImageUseCase) DeleteImage(ctx context.Context, userID, imageID string) error {
	const op = "ImageUseCase.DeleteImage"

	var removed *domain.Image
	err := u.coordinator.WithUserState(ctx, userID, func(st *cluster.State) error {
		img := st.Image(imageID)
		if img == nil {
			return e.ErrImageNotFound
		}
		removed = img
		return st.RemoveImage(imageID)
	})
	if err != nil {
		return e.Wrap(op, err)
	}

	if err := u.vectorIndex.DeleteByImage(ctx, userID, imageID); err != nil {
		u.logger.Warnf("failed to remove image %s from vector index: %v", imageID, e.Wrap(op, err))
	}

	if err := u.cacheRepo.InvalidateUser(ctx, userID); err != nil {
		u.logger.Warnf("failed to invalidate cluster cache: %v", e.Wrap(op, err))
	}

	u.imagesInfra.CleanupObjects([]string{removed.OriginalKey, removed.ThumbnailKey})
	return nil
}

// FindSimilar возвращает ближайшие изображения пользователя по векторному индексу.
func (u *ImageUseCase) FindSimilar(ctx context.Context, userID, imageID string, limit int) ([]SimilarImage, error) {
	const op = "ImageUseCase.FindSimilar"

	st, err := u.stateRepo.LoadState(ctx, userID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	img := st.Image(imageID)
	if img == nil {
		return nil, e.Wrap(op, e.ErrImageNotFound)
	}
	if !img.HasEmbedding() {
		return nil, e.Wrap(op, e.ErrEmptyEmbedding)
	}

	if limit <= 0 {
		limit = 10
	}

	neighbours, err := u.vectorIndex.SearchSimilar(ctx, userID, img.Embedding, uint64(limit))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Сам запрос тоже попадает в выдачу индекса
	result := make([]SimilarImage, 0, len(neighbours))
	for _, n := range neighbours {
		if n.ImageID == imageID {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

// describeImage запрашивает текстовое описание изображения; ошибка не фатальна.
func (u *ImageUseCase) describeImage(ctx context.Context, file ImageFile) string {
	description, err := u.mlService.DescribeImage(ctx, file.Data, file.MimeType)
	if err != nil {
		u.logger.Warnf("failed to describe image %s: %v", file.Name, err)
		return ""
	}
	return description
}

// embedDescription запрашивает embedding по описанию; ошибка не фатальна —
// изображение останется некластеризованным.
func (u *ImageUseCase) embedDescription(ctx context.Context, description string) []float32 {
	if description == "" {
		return nil
	}

	embedding, err := u.mlService.EmbedText(ctx, description)
	if err != nil {
		u.logger.Warnf("failed to embed description: %v", err)
		return nil
	}

	// Вектор с нулевой нормой не имеет направления: изображение сохраняется
	// без embedding и остается вне кластеров
	if vectormath.Norm(embedding) == 0 {
		u.logger.Warnf("embedding has zero norm, skipping auto-assign")
		return nil
	}
	return embedding
}

// afterAssign выполняет побочные эффекты после фиксации состояния:
// зеркалирование вектора в индекс, инвалидация кэша, событие в Kafka и
// best-effort именование нового кластера. Все шаги некритичны.
func (u *ImageUseCase) afterAssign(ctx context.Context, img *domain.Image, assignRes *cluster.AssignResult, description string) {
	const op = "ImageUseCase.afterAssign"

	if img.HasEmbedding() {
		emb := domain.NewEmbedding(img.ID, img.Embedding, domain.NewPayload(img.UserID, img.ID, img.OriginalKey))
		if err := u.vectorIndex.Upsert(ctx, []domain.Embedding{*emb}); err != nil {
			u.logger.Warnf("failed to mirror embedding to vector index: %v", e.Wrap(op, err))
		}
	}

	if err := u.cacheRepo.InvalidateUser(ctx, img.UserID); err != nil {
		u.logger.Warnf("failed to invalidate cluster cache: %v", e.Wrap(op, err))
	}

	if assignRes == nil {
		return
	}

	event := &ImageAssignedEvent{
		EventID:        uuid.NewString(),
		UserID:         img.UserID,
		ImageID:        img.ID,
		ClusterID:      assignRes.ClusterID,
		ClusterCreated: assignRes.Created,
		Timestamp:      time.Now().UTC().UnixNano(),
	}
	if err := u.producer.PublishImageAssigned(ctx, event); err != nil {
		u.logger.Warnf("failed to publish image assigned event: %v", e.Wrap(op, err))
	}

	if assignRes.Created && description != "" {
		u.nameNewCluster(ctx, img.UserID, assignRes.ClusterID, description)
	}
}

// nameNewCluster именует свежесозданный singleton-кластер по описанию
// единственного изображения. Отказ сервиса именования не блокирует назначение.
func (u *ImageUseCase) nameNewCluster(ctx context.Context, userID, clusterID, description string) {
	const op = "ImageUseCase.nameNewCluster"

	name, err := u.mlService.NameCluster(ctx, []string{description})
	if err != nil {
		u.logger.Warnf("failed to name new cluster %s: %v", clusterID, e.Wrap(op, err))
		return
	}

	if err := u.stateRepo.UpdateClusterNames(ctx, userID, map[string]string{clusterID: name}); err != nil {
		u.logger.Warnf("failed to persist cluster name: %v", e.Wrap(op, err))
	}
}

func (u *ImageUseCase) imageDetails(ctx context.Context, img *domain.Image) ImageDetails {
	originalURL, thumbnailURL := u.presignPair(ctx, img)

	return ImageDetails{
		ID:           img.ID,
		Filename:     img.Filename,
		UploadedAt:   img.UploadedAt,
		OriginalURL:  originalURL,
		ThumbnailURL: thumbnailURL,
		Description:  img.Description,
		ClusterID:    img.ClusterID,
	}
}

// presignPair выдает временные ссылки на оригинал и миниатюру; ошибка
// presign не фатальна — ссылка остается пустой.
func (u *ImageUseCase) presignPair(ctx context.Context, img *domain.Image) (string, string) {
	originalURL, err := u.objectRepo.PresignGet(ctx, img.OriginalKey)
	if err != nil {
		u.logger.Warnf("failed to presign original %s: %v", img.OriginalKey, err)
	}

	thumbnailURL, err := u.objectRepo.PresignGet(ctx, img.ThumbnailKey)
	if err != nil {
		u.logger.Warnf("failed to presign thumbnail %s: %v", img.ThumbnailKey, err)
	}

	return originalURL, thumbnailURL
}
