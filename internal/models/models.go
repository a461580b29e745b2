package models

import (
	"okd-deploy-api-go/internal/domain"
)

// Response status values shared by all endpoints.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"
)

// CheckAdminResponse is the body of GET /api/v1/check-admin.
type CheckAdminResponse struct {
	Status  string   `json:"status"`
	Roles   []string `json:"roles,omitempty"`
	IsAdmin bool     `json:"isAdmin"`
}

// NamespaceInfo is one user-visible namespace in cluster reference data.
type NamespaceInfo struct {
	Name string `json:"name"`
}

// StorageClassInfo is one storage class in cluster reference data.
type StorageClassInfo struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// ClusterDataResponse is the body of GET /api/v1/cluster-data.
type ClusterDataResponse struct {
	Status              string             `json:"status"`
	Degraded            bool               `json:"degraded,omitempty"`
	Stale               bool               `json:"stale,omitempty"`
	Namespaces          []NamespaceInfo    `json:"namespaces"`
	StorageClasses      []StorageClassInfo `json:"storageClasses"`
	NamespacesError     string             `json:"namespacesError,omitempty"`
	StorageClassesError string             `json:"storageClassesError,omitempty"`
}

// GenerateYAMLResponse is the success body of POST /api/v1/generate-yaml.
type GenerateYAMLResponse struct {
	Status string `json:"status"`
	YAML   string `json:"yaml"`
}

// ErrorResponse is the error body shared by all endpoints. FieldErrors is
// populated for validation failures so the caller can render per-field
// messages.
type ErrorResponse struct {
	Status      string             `json:"status"`
	Message     string             `json:"message"`
	FieldErrors []domain.Violation `json:"fieldErrors,omitempty"`
}

// Resource apply outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Apply phases. An apply that never reached the cluster is Rejected; one
// that applied every resource is Succeeded; anything in between is
// PartiallyApplied.
const (
	PhaseSucceeded        = "Succeeded"
	PhasePartiallyApplied = "PartiallyApplied"
	PhaseRejected         = "Rejected"
)

// ResourceResult records the outcome of applying a single manifest.
type ResourceResult struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// ApplyReport aggregates per-resource outcomes for one deploy operation.
// Applied resources are never rolled back on later failures.
type ApplyReport struct {
	Phase     string           `json:"phase"`
	Resources []ResourceResult `json:"resources"`
}

// Succeeded reports whether every resource applied.
func (r *ApplyReport) Succeeded() bool {
	return r.Phase == PhaseSucceeded
}

// DeployResponse is the body of POST /api/v1/deploy-to-okd.
type DeployResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Report  *ApplyReport `json:"report,omitempty"`
}

// HealthResponse is the body of the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}
