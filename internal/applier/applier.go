package applier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"

	"okd-deploy-api-go/internal/api/middleware"
	"okd-deploy-api-go/internal/compiler"
	"okd-deploy-api-go/internal/models"
)

// Options tunes apply behavior. All fields are optional.
type Options struct {
	// FieldManager identifies this service on managed fields.
	FieldManager string
	// PerResourceTimeout bounds each resource's cluster calls.
	PerResourceTimeout time.Duration
	// Retries is the number of re-attempts after a transient failure.
	Retries int
}

func (o *Options) applyDefaults() {
	if o.FieldManager == "" {
		o.FieldManager = "okd-deploy-api"
	}
	if o.PerResourceTimeout <= 0 {
		o.PerResourceTimeout = 30 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
}

// Applier applies manifest sets against the cluster in strict order.
// It never deletes or recreates; existing resources are updated in place.
type Applier struct {
	dynamic dynamic.Interface
	mapper  meta.RESTMapper
	opts    Options
	logger  *zap.Logger
}

// New creates an applier over the given dynamic client and REST mapper.
func New(dyn dynamic.Interface, mapper meta.RESTMapper, opts Options, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()
	return &Applier{
		dynamic: dyn,
		mapper:  mapper,
		opts:    opts,
		logger:  logger,
	}
}

// NewRESTMapper builds a discovery-backed REST mapper for the cluster.
func NewRESTMapper(cfg *rest.Config) (meta.RESTMapper, error) {
	dc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create discovery client: %w", err)
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(dc)), nil
}

// Apply applies the set in order. A resource failure stops the remaining
// resources (they are reported skipped); already-applied resources are not
// rolled back. A failure before any resource was attempted yields a
// Rejected report.
func (a *Applier) Apply(ctx context.Context, set *compiler.ManifestSet) *models.ApplyReport {
	report := &models.ApplyReport{}
	manifests := set.Manifests()

	// Resolve every kind up front. A mapping failure here means the
	// cluster or credential is unusable before any resource is touched.
	targets := make([]target, 0, len(manifests))
	for _, m := range manifests {
		tgt, err := a.resolve(m)
		if err != nil {
			a.logger.Error("apply rejected before any resource was attempted",
				zap.String("kind", m.Kind),
				zap.String("name", m.Name),
				zap.Error(err),
			)
			return rejectedReport(manifests, err)
		}
		targets = append(targets, tgt)
	}

	failed := false
	for i, m := range manifests {
		if failed {
			report.Resources = append(report.Resources, models.ResourceResult{
				Kind:    m.Kind,
				Name:    m.Name,
				Outcome: models.OutcomeSkipped,
			})
			middleware.ManifestsAppliedTotal.WithLabelValues(m.Kind, models.OutcomeSkipped).Inc()
			continue
		}

		if err := a.applyOne(ctx, m, targets[i]); err != nil {
			failed = true
			a.logger.Error("resource apply failed",
				zap.String("kind", m.Kind),
				zap.String("name", m.Name),
				zap.Error(err),
			)
			report.Resources = append(report.Resources, models.ResourceResult{
				Kind:    m.Kind,
				Name:    m.Name,
				Outcome: models.OutcomeFailed,
				Error:   err.Error(),
			})
			middleware.ManifestsAppliedTotal.WithLabelValues(m.Kind, models.OutcomeFailed).Inc()
			continue
		}

		a.logger.Info("resource applied",
			zap.String("kind", m.Kind),
			zap.String("name", m.Name),
		)
		report.Resources = append(report.Resources, models.ResourceResult{
			Kind:    m.Kind,
			Name:    m.Name,
			Outcome: models.OutcomeApplied,
		})
		middleware.ManifestsAppliedTotal.WithLabelValues(m.Kind, models.OutcomeApplied).Inc()
	}

	if failed {
		report.Phase = models.PhasePartiallyApplied
	} else {
		report.Phase = models.PhaseSucceeded
	}
	return report
}

// target is a manifest resolved to its dynamic resource interface.
type target struct {
	ri dynamic.ResourceInterface
	u  *unstructured.Unstructured
}

// resolve converts the manifest object to unstructured form and maps its
// kind to a dynamic resource interface.
func (a *Applier) resolve(m compiler.Manifest) (target, error) {
	data, err := json.Marshal(m.Object)
	if err != nil {
		return target{}, fmt.Errorf("marshal %s %s: %w", m.Kind, m.Name, err)
	}
	u := &unstructured.Unstructured{}
	if err := u.UnmarshalJSON(data); err != nil {
		return target{}, fmt.Errorf("to unstructured %s %s: %w", m.Kind, m.Name, err)
	}

	gvk := schema.FromAPIVersionAndKind(u.GetAPIVersion(), u.GetKind())
	mapping, err := a.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return target{}, fmt.Errorf("rest mapping %s: %w", gvk.String(), err)
	}

	var ri dynamic.ResourceInterface = a.dynamic.Resource(mapping.Resource)
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		ri = a.dynamic.Resource(mapping.Resource).Namespace(u.GetNamespace())
	}
	return target{ri: ri, u: u}, nil
}

// applyOne creates or updates a single resource with bounded retries on
// transient errors, under a per-resource timeout.
func (a *Applier) applyOne(ctx context.Context, m compiler.Manifest, tgt target) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.PerResourceTimeout)
	defer cancel()

	backoff := wait.Backoff{
		Duration: 200 * time.Millisecond,
		Factor:   2.0,
		Jitter:   0.1,
		Steps:    a.opts.Retries + 1,
	}

	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		err := a.createOrUpdate(ctx, m, tgt)
		if err == nil {
			return true, nil
		}
		if !retriable(err) {
			// Validation-type rejections from the cluster are final.
			return false, err
		}
		lastErr = err
		return false, nil
	})
	if err != nil {
		if wait.Interrupted(err) && lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

// createOrUpdate applies create-or-update semantics for one resource:
// create when absent, JSON-merge patch in place when present. Resources
// are never deleted and recreated.
func (a *Applier) createOrUpdate(ctx context.Context, m compiler.Manifest, tgt target) error {
	_, err := tgt.ri.Get(ctx, tgt.u.GetName(), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err = tgt.ri.Create(ctx, tgt.u, metav1.CreateOptions{FieldManager: a.opts.FieldManager})
		if err == nil {
			return nil
		}
		// Another caller created the namespace between our check and the
		// create. The intent is satisfied.
		if m.Kind == "Namespace" && (apierrors.IsAlreadyExists(err) || apierrors.IsConflict(err)) {
			return nil
		}
		if apierrors.IsAlreadyExists(err) {
			return a.patch(ctx, tgt)
		}
		return fmt.Errorf("create %s %s: %w", m.Kind, m.Name, err)
	}
	if err != nil {
		return fmt.Errorf("get %s %s: %w", m.Kind, m.Name, err)
	}

	if err := a.patch(ctx, tgt); err != nil {
		return fmt.Errorf("update %s %s: %w", m.Kind, m.Name, err)
	}
	return nil
}

// patch merges the desired state into the live resource.
func (a *Applier) patch(ctx context.Context, tgt target) error {
	body, err := tgt.u.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = tgt.ri.Patch(ctx, tgt.u.GetName(), types.MergePatchType, body,
		metav1.PatchOptions{FieldManager: a.opts.FieldManager})
	return err
}

// retriable reports whether an apply error is worth another attempt.
// Validation-type and authorization rejections are final; server overload
// and transport failures are transient.
func retriable(err error) bool {
	switch {
	case apierrors.IsInvalid(err),
		apierrors.IsBadRequest(err),
		apierrors.IsMethodNotSupported(err),
		apierrors.IsNotAcceptable(err),
		apierrors.IsRequestEntityTooLargeError(err),
		apierrors.IsUnauthorized(err),
		apierrors.IsForbidden(err),
		apierrors.IsAlreadyExists(err),
		apierrors.IsConflict(err):
		return false
	case apierrors.IsServerTimeout(err),
		apierrors.IsTimeout(err),
		apierrors.IsTooManyRequests(err),
		apierrors.IsServiceUnavailable(err),
		apierrors.IsInternalError(err):
		return true
	default:
		// Non-API errors are transport failures; retry those.
		return !apierrors.IsNotFound(err)
	}
}

// rejectedReport marks every resource skipped when nothing was attempted.
func rejectedReport(manifests []compiler.Manifest, err error) *models.ApplyReport {
	report := &models.ApplyReport{Phase: models.PhaseRejected}
	for _, m := range manifests {
		report.Resources = append(report.Resources, models.ResourceResult{
			Kind:    m.Kind,
			Name:    m.Name,
			Outcome: models.OutcomeSkipped,
			Error:   err.Error(),
		})
	}
	return report
}
