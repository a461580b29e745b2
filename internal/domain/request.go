package domain

import (
	"fmt"
	"strings"
)

// MountType selects how a secret or config map entry reaches the container.
// Exactly two variants exist; anything else is rejected at validation time.
type MountType string

const (
	MountTypeEnv    MountType = "env"
	MountTypeVolume MountType = "volume"
)

// MountEntry is one key/value item within a secret or config map group.
// Entries sharing a GroupName are aggregated into a single cluster object.
// EnvName applies to env mounts only; MountPath to volume mounts only.
type MountEntry struct {
	GroupName string    `json:"secretName"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	MountType MountType `json:"mountType"`
	EnvName   string    `json:"envName,omitempty"`
	MountPath string    `json:"mountPath,omitempty"`
}

// StorageVolume describes one persistent volume claim requested by the form.
type StorageVolume struct {
	Name         string `json:"name"`
	MountPath    string `json:"mountPath"`
	SizeGi       int    `json:"sizeGi"`
	StorageClass string `json:"storageClass"`
}

// DeploymentRequest is the normalized form of user input, created per call
// and discarded after compilation or apply.
type DeploymentRequest struct {
	Namespace         string          `json:"namespace"`
	CreateNamespace   bool            `json:"createNamespace"`
	ContainerImage    string          `json:"containerImage"`
	CPURequest        string          `json:"cpuRequest"`
	MemoryRequest     string          `json:"memoryRequest"`
	ContainerPort     int             `json:"containerPort"`
	ExposeRoute       bool            `json:"exposeRoute"`
	RoutePort         int             `json:"routePort,omitempty"`
	RouteHostname     string          `json:"routeHostname,omitempty"`
	RouteDomain       string          `json:"routeDomain,omitempty"`
	StorageVolumes    []StorageVolume `json:"storageVolumes,omitempty"`
	Secrets           []MountEntry    `json:"secrets,omitempty"`
	ConfigMaps        []MountEntry    `json:"configMaps,omitempty"`
	RequesterIdentity string          `json:"requesterIdentity,omitempty"`
}

// RouteHost returns the full route hostname.
func (r *DeploymentRequest) RouteHost() string {
	return r.RouteHostname + "." + r.RouteDomain
}

// Violation is a single field-level validation failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Violations aggregates every validation failure found in one request.
// A request failing any check is rejected before compilation.
type Violations []Violation

func (v Violations) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v))
	for _, viol := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", viol.Field, viol.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a violation for the given field.
func (v *Violations) Add(field, format string, args ...any) {
	*v = append(*v, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}
