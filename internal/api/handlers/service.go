package handlers

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"okd-deploy-api-go/internal/domain"
	"okd-deploy-api-go/internal/models"
)

// Service is the orchestration surface the handlers depend on.
type Service interface {
	CheckAdmin(claims jwt.MapClaims) (*models.CheckAdminResponse, error)
	GetClusterData(ctx context.Context, claims jwt.MapClaims, forceRefresh bool) (*models.ClusterDataResponse, error)
	GenerateYAML(ctx context.Context, claims jwt.MapClaims, req *domain.DeploymentRequest) (string, error)
	Deploy(ctx context.Context, claims jwt.MapClaims, req *domain.DeploymentRequest) (*models.ApplyReport, error)
}
