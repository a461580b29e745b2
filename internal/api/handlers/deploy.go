package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"okd-deploy-api-go/internal/api/middleware"
	"okd-deploy-api-go/internal/domain"
	"okd-deploy-api-go/internal/models"
)

// DeployHandler compiles and applies deployment requests to the cluster
type DeployHandler struct {
	service Service
	logger  *zap.Logger
}

// NewDeployHandler creates a new deploy handler
func NewDeployHandler(service Service, logger *zap.Logger) *DeployHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeployHandler{
		service: service,
		logger:  logger,
	}
}

// Handle handles POST /api/v1/deploy-to-okd
// A partial apply is still a 200: the report carries per-resource outcomes
// and the phase, and applied resources are not rolled back.
func (h *DeployHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.ClaimsFromContext(ctx)

	var req domain.DeploymentRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode deploy request", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.service.Deploy(ctx, claims, &req)
	if err != nil {
		respondWithOperationError(w, h.logger, err)
		return
	}

	switch report.Phase {
	case models.PhaseSucceeded:
		respondWithJSON(w, http.StatusOK, models.DeployResponse{
			Status:  models.StatusSuccess,
			Message: "all resources applied",
			Report:  report,
		})
	case models.PhasePartiallyApplied:
		respondWithJSON(w, http.StatusOK, models.DeployResponse{
			Status:  models.StatusPartial,
			Message: "some resources failed to apply",
			Report:  report,
		})
	default:
		respondWithJSON(w, http.StatusServiceUnavailable, models.DeployResponse{
			Status:  models.StatusError,
			Message: "cluster rejected the deployment before any resource was applied",
			Report:  report,
		})
	}
}
