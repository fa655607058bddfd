package http

import (
	"encoding/json"
	"net/http"

	"github.com/RohanKP1/image-upload-service/internal/usecase"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
)

type ClusterHandler struct {
	clusterUsecase usecase.ClusterUC
	logger         logger.Logger
}

func NewClusterHandler(clusterUsecase usecase.ClusterUC, logger logger.Logger) *ClusterHandler {
	return &ClusterHandler{clusterUsecase: clusterUsecase, logger: logger}
}

type reclusterRequest struct {
	NClusters     int  `json:"n_clusters"`
	GenerateNames bool `json:"generate_names"`
}

// recluster полностью перестраивает кластеры пользователя.
// n_clusters <= 0 включает автоматический подбор числа кластеров.
func (h *ClusterHandler) recluster(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req reclusterRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warnf("%d invalid recluster body: %s", http.StatusBadRequest, err.Error())
			WriteError(w, e.Wrap(err.Error(), e.ErrStatusBadRequest))
			return
		}
	}

	result, err := h.clusterUsecase.Recluster(r.Context(), usecase.NewReclusterReq(userID, req.NClusters, req.GenerateNames))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"clusters":    result.Clusters,
		"unclustered": result.Unclustered,
	})
}

// listClusters возвращает сводки кластеров пользователя.
func (h *ClusterHandler) listClusters(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	clusters, err := h.clusterUsecase.ListClusters(r.Context(), userID)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"clusters": clusters,
	})
}
