package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"go.uber.org/zap"

	"okd-deploy-api-go/internal/domain"
	"okd-deploy-api-go/internal/models"
	"okd-deploy-api-go/internal/orchestrator"
)

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// respondWithError sends an error JSON response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, models.ErrorResponse{
		Status:  models.StatusError,
		Message: message,
	})
}

// respondWithOperationError maps the orchestrator error taxonomy to HTTP:
// 401 unauthenticated, 403 unauthorized, 400 with field errors for
// validation failures, 500 for everything else.
func respondWithOperationError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var violations domain.Violations
	switch {
	case errors.Is(err, orchestrator.ErrUnauthenticated):
		respondWithError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, orchestrator.ErrUnauthorized):
		respondWithError(w, http.StatusForbidden, "admin role required")
	case errors.As(err, &violations):
		respondWithJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Status:      models.StatusError,
			Message:     "request validation failed",
			FieldErrors: violations,
		})
	default:
		logger.Error("operation failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
