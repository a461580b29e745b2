package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"okd-deploy-api-go/internal/models"
	"okd-deploy-api-go/internal/orchestrator"
)

// HealthHandler handles health and readiness checks
type HealthHandler struct {
	cache  orchestrator.ClusterData
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(cache orchestrator.ClusterData, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		cache:  cache,
		logger: logger,
	}
}

// HandleHealth handles GET /api/v1/health (liveness probe)
// Returns 200 unconditionally — the process is alive. Liveness must not
// depend on the cluster API, otherwise a cluster outage cascades into
// restarts of this service.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, models.HealthResponse{
		Status: "ok",
	})
}

// HandleReady handles GET /api/v1/ready (readiness probe)
// Ready means cluster reference data is servable: either a cached value
// exists or a fetch succeeds now.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Get(r.Context())

	if len(snap.Namespaces) == 0 && snap.NamespacesErr != nil {
		h.logger.Error("readiness check failed: cluster unavailable", zap.Error(snap.NamespacesErr))
		respondWithError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
