package orchestrator

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/validation"

	"okd-deploy-api-go/internal/api/middleware"
	"okd-deploy-api-go/internal/auth"
	"okd-deploy-api-go/internal/cluster"
	"okd-deploy-api-go/internal/compiler"
	"okd-deploy-api-go/internal/domain"
	"okd-deploy-api-go/internal/models"
)

// Sentinel errors mapped to HTTP status codes by the handlers.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrUnauthorized    = errors.New("admin role required")
)

// ClusterData reads cluster reference data, cached.
type ClusterData interface {
	Get(ctx context.Context) cluster.Snapshot
	Refresh(ctx context.Context) cluster.Snapshot
}

// ManifestApplier pushes a compiled manifest set to the cluster.
type ManifestApplier interface {
	Apply(ctx context.Context, set *compiler.ManifestSet) *models.ApplyReport
}

// Orchestrator coordinates one deployment operation end to end:
// authorization, reference-data lookup, compilation, and apply. It holds no
// per-request state.
type Orchestrator struct {
	gate     *auth.Gate
	cache    ClusterData
	compiler *compiler.Compiler
	applier  ManifestApplier

	// fallbackStorageClasses is served, flagged degraded, when the cluster
	// has never answered a storage class fetch.
	fallbackStorageClasses []string

	logger *zap.Logger
}

// New wires an orchestrator from its collaborators.
func New(gate *auth.Gate, cache ClusterData, comp *compiler.Compiler, applier ManifestApplier, fallbackStorageClasses []string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		gate:                   gate,
		cache:                  cache,
		compiler:               comp,
		applier:                applier,
		fallbackStorageClasses: fallbackStorageClasses,
		logger:                 logger,
	}
}

// CheckAdmin reports the caller's roles and admin standing.
func (o *Orchestrator) CheckAdmin(claims jwt.MapClaims) (*models.CheckAdminResponse, error) {
	decision := o.gate.Decide(claims)
	if !decision.IsAuthenticated {
		return nil, ErrUnauthenticated
	}
	return &models.CheckAdminResponse{
		Status:  models.StatusSuccess,
		Roles:   decision.Roles,
		IsAdmin: decision.IsAdmin,
	}, nil
}

// GetClusterData returns namespaces and storage classes for form population.
// Any authenticated caller may read it; admin is not required. When the
// cluster has never answered, configured fallback storage classes are served
// with the degraded flag set rather than failing the endpoint.
func (o *Orchestrator) GetClusterData(ctx context.Context, claims jwt.MapClaims, forceRefresh bool) (*models.ClusterDataResponse, error) {
	if !o.gate.Decide(claims).IsAuthenticated {
		return nil, ErrUnauthenticated
	}

	var snap cluster.Snapshot
	if forceRefresh {
		snap = o.cache.Refresh(ctx)
	} else {
		snap = o.cache.Get(ctx)
	}

	resp := &models.ClusterDataResponse{
		Status:         models.StatusSuccess,
		Stale:          snap.Stale,
		Namespaces:     make([]models.NamespaceInfo, 0, len(snap.Namespaces)),
		StorageClasses: make([]models.StorageClassInfo, 0, len(snap.StorageClasses)),
	}
	for _, ns := range snap.Namespaces {
		resp.Namespaces = append(resp.Namespaces, models.NamespaceInfo{Name: ns.Name})
	}
	for _, sc := range snap.StorageClasses {
		resp.StorageClasses = append(resp.StorageClasses, models.StorageClassInfo{
			Name:      sc.Name,
			IsDefault: sc.IsDefault,
		})
	}

	if snap.NamespacesErr != nil {
		resp.NamespacesError = snap.NamespacesErr.Error()
	}
	if snap.StorageClassesErr != nil {
		resp.StorageClassesError = snap.StorageClassesErr.Error()
	}
	// Exactly one fetch failing is a partial result; both failing is a full
	// reference-data outage and reported as an error, last-known-good values
	// and fallbacks notwithstanding.
	if snap.NamespacesErr != nil && snap.StorageClassesErr != nil {
		resp.Status = models.StatusError
	} else if snap.Partial() {
		resp.Status = models.StatusPartial
	}

	// No storage classes ever fetched: serve the configured fallback so the
	// caller can still build a request, and say so.
	if len(resp.StorageClasses) == 0 && snap.StorageClassesErr != nil {
		resp.Degraded = true
		for _, name := range o.fallbackStorageClasses {
			resp.StorageClasses = append(resp.StorageClasses, models.StorageClassInfo{Name: name})
		}
		o.logger.Warn("serving fallback storage classes",
			zap.Strings("storage_classes", o.fallbackStorageClasses),
			zap.Error(snap.StorageClassesErr),
		)
	}

	return resp, nil
}

// GenerateYAML compiles the request and returns the manifests as a YAML
// stream without touching the cluster.
func (o *Orchestrator) GenerateYAML(ctx context.Context, claims jwt.MapClaims, req *domain.DeploymentRequest) (string, error) {
	if err := o.authorize(claims, req); err != nil {
		return "", err
	}

	set, err := o.compile(req, o.cache.Get(ctx))
	if err != nil {
		return "", err
	}
	return set.YAML()
}

// Deploy compiles the request and applies the manifests to the cluster.
// The report records per-resource outcomes; applied resources are never
// rolled back when a later one fails.
func (o *Orchestrator) Deploy(ctx context.Context, claims jwt.MapClaims, req *domain.DeploymentRequest) (*models.ApplyReport, error) {
	if err := o.authorize(claims, req); err != nil {
		return nil, err
	}

	set, err := o.compile(req, o.cache.Get(ctx))
	if err != nil {
		middleware.DeploysTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	report := o.applier.Apply(ctx, set)
	switch report.Phase {
	case models.PhaseSucceeded:
		middleware.DeploysTotal.WithLabelValues("success").Inc()
	case models.PhasePartiallyApplied:
		middleware.DeploysTotal.WithLabelValues("partial").Inc()
	default:
		middleware.DeploysTotal.WithLabelValues("rejected").Inc()
	}

	o.logger.Info("deploy finished",
		zap.String("namespace", req.Namespace),
		zap.String("phase", report.Phase),
		zap.Int("resources", len(report.Resources)),
	)
	return report, nil
}

// authorize gates compilation and deploys behind the admin role and stamps
// the requester identity from the token when the request leaves it blank.
func (o *Orchestrator) authorize(claims jwt.MapClaims, req *domain.DeploymentRequest) error {
	decision := o.gate.Decide(claims)
	if !decision.IsAuthenticated {
		return ErrUnauthenticated
	}
	if !decision.IsAdmin {
		return ErrUnauthorized
	}
	if req != nil && req.RequesterIdentity == "" {
		req.RequesterIdentity = requesterFromClaims(claims)
	}
	return nil
}

// compile runs validation and manifest assembly, counting validation
// failures.
func (o *Orchestrator) compile(req *domain.DeploymentRequest, snap cluster.Snapshot) (*compiler.ManifestSet, error) {
	set, err := o.compiler.Compile(req, snap)
	if err != nil {
		var violations domain.Violations
		if errors.As(err, &violations) {
			middleware.ValidationFailuresTotal.Inc()
			o.logger.Info("request rejected by validation",
				zap.String("namespace", req.Namespace),
				zap.Int("violations", len(violations)),
			)
		}
		return nil, err
	}
	return set, nil
}

// requesterFromClaims picks a label-safe identity from standard claim keys.
// An identity that cannot be a label value is dropped rather than failing
// the deploy.
func requesterFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"preferred_username", "sub"} {
		if s, ok := claims[key].(string); ok && s != "" {
			if len(validation.IsValidLabelValue(s)) == 0 {
				return s
			}
		}
	}
	return ""
}
