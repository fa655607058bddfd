package http

import (
	"github.com/RohanKP1/image-upload-service/internal/usecase"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(imageUC usecase.ImageUC, clusterUC usecase.ClusterUC) {
	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerImageRoutes(v1, NewImageHandler(imageUC, r.logger))
		registerClusterRoutes(v1, NewClusterHandler(clusterUC, r.logger))
	})
}

func registerImageRoutes(router chi.Router, h *ImageHandler) {
	router.Route("/images", func(im chi.Router) {
		im.Post("/", h.uploadImages)
		im.Get("/", h.listImages)
		im.Get("/{imageID}", h.getImage)
		im.Delete("/{imageID}", h.deleteImage)
		im.Get("/{imageID}/similar", h.findSimilar)
	})
}

func registerClusterRoutes(router chi.Router, h *ClusterHandler) {
	router.Route("/clusters", func(cl chi.Router) {
		cl.Get("/", h.listClusters)
		cl.Post("/recluster", h.recluster)
	})
}
