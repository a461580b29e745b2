package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"okd-deploy-api-go/internal/api/middleware"
)

// ClusterDataHandler serves namespaces and storage classes for deployment
// form population.
type ClusterDataHandler struct {
	service Service
	logger  *zap.Logger
}

// NewClusterDataHandler creates a new cluster data handler
func NewClusterDataHandler(service Service, logger *zap.Logger) *ClusterDataHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClusterDataHandler{
		service: service,
		logger:  logger,
	}
}

// Handle handles GET /api/v1/cluster-data
// ?refresh=true bypasses the cache and forces a synchronous re-fetch.
func (h *ClusterDataHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.ClaimsFromContext(ctx)
	forceRefresh := r.URL.Query().Get("refresh") == "true"

	resp, err := h.service.GetClusterData(ctx, claims, forceRefresh)
	if err != nil {
		respondWithOperationError(w, h.logger, err)
		return
	}

	if resp.Degraded {
		h.logger.Warn("serving degraded cluster data",
			zap.String("storage_classes_error", resp.StorageClassesError),
		)
	}
	respondWithJSON(w, http.StatusOK, resp)
}
