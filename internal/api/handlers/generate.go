package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"okd-deploy-api-go/internal/api/middleware"
	"okd-deploy-api-go/internal/domain"
	"okd-deploy-api-go/internal/models"
)

// GenerateHandler compiles deployment requests to YAML without applying
type GenerateHandler struct {
	service Service
	logger  *zap.Logger
}

// NewGenerateHandler creates a new YAML generation handler
func NewGenerateHandler(service Service, logger *zap.Logger) *GenerateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateHandler{
		service: service,
		logger:  logger,
	}
}

// Handle handles POST /api/v1/generate-yaml
func (h *GenerateHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.ClaimsFromContext(ctx)

	var req domain.DeploymentRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode generate request", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	yamlOut, err := h.service.GenerateYAML(ctx, claims, &req)
	if err != nil {
		respondWithOperationError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, models.GenerateYAMLResponse{
		Status: models.StatusSuccess,
		YAML:   yamlOut,
	})
}
