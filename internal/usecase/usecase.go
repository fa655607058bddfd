package usecase

import "context"

type ImageUC interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) ([]UploadImageRes, error)
	ListImages(ctx context.Context, userID string) ([]ImageDetails, error)
	GetImage(ctx context.Context, userID, imageID string) (*ImageDetails, error)
	DeleteImage(ctx context.Context, userID, imageID string) error
	FindSimilar(ctx context.Context, userID, imageID string, limit int) ([]SimilarImage, error)
}

type ClusterUC interface {
	Recluster(ctx context.Context, req *ReclusterReq) (*ReclusterRes, error)
	ListClusters(ctx context.Context, userID string) ([]ClusterSummary, error)
}
