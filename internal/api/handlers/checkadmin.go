package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"okd-deploy-api-go/internal/api/middleware"
)

// CheckAdminHandler handles role inspection requests
type CheckAdminHandler struct {
	service Service
	logger  *zap.Logger
}

// NewCheckAdminHandler creates a new check-admin handler
func NewCheckAdminHandler(service Service, logger *zap.Logger) *CheckAdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckAdminHandler{
		service: service,
		logger:  logger,
	}
}

// Handle handles GET /api/v1/check-admin
func (h *CheckAdminHandler) Handle(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	resp, err := h.service.CheckAdmin(claims)
	if err != nil {
		respondWithOperationError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
