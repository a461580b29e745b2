package applier

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	routev1 "github.com/openshift/api/route/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	k8stesting "k8s.io/client-go/testing"

	"okd-deploy-api-go/internal/cluster"
	"okd-deploy-api-go/internal/compiler"
	"okd-deploy-api-go/internal/domain"
	"okd-deploy-api-go/internal/models"
)

func testScheme(t *testing.T) *runtime.Scheme {
	scheme := runtime.NewScheme()
	require.NoError(t, corev1.AddToScheme(scheme))
	require.NoError(t, appsv1.AddToScheme(scheme))
	require.NoError(t, routev1.AddToScheme(scheme))
	return scheme
}

func testMapper() meta.RESTMapper {
	mapper := meta.NewDefaultRESTMapper(nil)
	mapper.Add(corev1.SchemeGroupVersion.WithKind("Namespace"), meta.RESTScopeRoot)
	mapper.Add(corev1.SchemeGroupVersion.WithKind("Secret"), meta.RESTScopeNamespace)
	mapper.Add(corev1.SchemeGroupVersion.WithKind("ConfigMap"), meta.RESTScopeNamespace)
	mapper.Add(corev1.SchemeGroupVersion.WithKind("PersistentVolumeClaim"), meta.RESTScopeNamespace)
	mapper.Add(corev1.SchemeGroupVersion.WithKind("Service"), meta.RESTScopeNamespace)
	mapper.Add(appsv1.SchemeGroupVersion.WithKind("Deployment"), meta.RESTScopeNamespace)
	mapper.Add(routev1.GroupVersion.WithKind("Route"), meta.RESTScopeNamespace)
	return mapper
}

func compileSet(t *testing.T, mutate func(*domain.DeploymentRequest)) *compiler.ManifestSet {
	req := &domain.DeploymentRequest{
		Namespace:       "demo",
		ContainerImage:  "nginx:latest",
		CPURequest:      "100m",
		MemoryRequest:   "128Mi",
		ContainerPort:   80,
		CreateNamespace: true,
	}
	if mutate != nil {
		mutate(req)
	}

	c := compiler.New(compiler.Options{
		RouteDomains:        []string{"example.com"},
		CPURequestValues:    []string{"100m"},
		MemoryRequestValues: []string{"128Mi"},
	}, nil)
	snap := cluster.Snapshot{
		Namespaces:     []cluster.Namespace{{Name: "demo"}},
		StorageClasses: []cluster.StorageClass{{Name: "standard", IsDefault: true}},
	}
	set, err := c.Compile(req, snap)
	require.NoError(t, err)
	return set
}

func newTestApplier(dyn *dynamicfake.FakeDynamicClient, retries int) *Applier {
	return New(dyn, testMapper(), Options{
		PerResourceTimeout: 5 * time.Second,
		Retries:            retries,
	}, nil)
}

func outcomes(report *models.ApplyReport) map[string]string {
	out := map[string]string{}
	for _, r := range report.Resources {
		out[r.Kind] = r.Outcome
	}
	return out
}

func TestApplyAllSucceed(t *testing.T) {
	dyn := dynamicfake.NewSimpleDynamicClient(testScheme(t))
	set := compileSet(t, func(req *domain.DeploymentRequest) {
		req.ExposeRoute = true
		req.RoutePort = 80
		req.RouteHostname = "app"
		req.RouteDomain = "example.com"
		req.Secrets = []domain.MountEntry{
			{GroupName: "db-creds", Key: "password", Value: "hunter2", MountType: domain.MountTypeEnv},
		}
	})

	report := newTestApplier(dyn, 0).Apply(context.Background(), set)

	assert.Equal(t, models.PhaseSucceeded, report.Phase)
	assert.True(t, report.Succeeded())
	require.Len(t, report.Resources, set.Len())
	for _, r := range report.Resources {
		assert.Equal(t, models.OutcomeApplied, r.Outcome, "%s %s", r.Kind, r.Name)
		assert.Empty(t, r.Error)
	}

	gvr := schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}
	got, err := dyn.Resource(gvr).Namespace("demo").Get(context.Background(), "demo-deployment", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "demo-deployment", got.GetName())
}

func TestApplyWorkloadFailureSkipsDownstream(t *testing.T) {
	dyn := dynamicfake.NewSimpleDynamicClient(testScheme(t))
	dyn.PrependReactor("create", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewInternalError(assert.AnError)
	})

	set := compileSet(t, func(req *domain.DeploymentRequest) {
		req.ExposeRoute = true
		req.RoutePort = 80
		req.RouteHostname = "app"
		req.RouteDomain = "example.com"
		req.Secrets = []domain.MountEntry{
			{GroupName: "db-creds", Key: "password", Value: "hunter2", MountType: domain.MountTypeEnv},
		}
	})

	report := newTestApplier(dyn, 0).Apply(context.Background(), set)

	assert.Equal(t, models.PhasePartiallyApplied, report.Phase)
	assert.False(t, report.Succeeded())

	got := outcomes(report)
	assert.Equal(t, models.OutcomeApplied, got["Namespace"])
	assert.Equal(t, models.OutcomeApplied, got["Secret"])
	assert.Equal(t, models.OutcomeFailed, got["Deployment"])
	assert.Equal(t, models.OutcomeSkipped, got["Service"])
	assert.Equal(t, models.OutcomeSkipped, got["Route"])

	for _, r := range report.Resources {
		if r.Kind == "Deployment" {
			assert.NotEmpty(t, r.Error)
		}
	}
}

func TestApplyNamespaceCreateRaceIsSuccess(t *testing.T) {
	dyn := dynamicfake.NewSimpleDynamicClient(testScheme(t))
	gr := schema.GroupResource{Resource: "namespaces"}
	dyn.PrependReactor("create", "namespaces", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewAlreadyExists(gr, "demo")
	})

	report := newTestApplier(dyn, 0).Apply(context.Background(), compileSet(t, nil))

	assert.Equal(t, models.PhaseSucceeded, report.Phase)
	assert.Equal(t, models.OutcomeApplied, outcomes(report)["Namespace"])
}

func TestApplyUpdatesExistingInPlace(t *testing.T) {
	existing := &corev1.Secret{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{Name: "db-creds", Namespace: "demo"},
		Data:       map[string][]byte{"password": []byte("stale")},
	}
	dyn := dynamicfake.NewSimpleDynamicClient(testScheme(t), existing)

	deleted := false
	dyn.PrependReactor("delete", "*", func(action k8stesting.Action) (bool, runtime.Object, error) {
		deleted = true
		return false, nil, nil
	})

	set := compileSet(t, func(req *domain.DeploymentRequest) {
		req.Secrets = []domain.MountEntry{
			{GroupName: "db-creds", Key: "password", Value: "fresh", MountType: domain.MountTypeEnv},
		}
	})

	report := newTestApplier(dyn, 0).Apply(context.Background(), set)
	require.Equal(t, models.PhaseSucceeded, report.Phase)
	assert.False(t, deleted, "existing resources must be updated in place, never recreated")

	gvr := schema.GroupVersionResource{Version: "v1", Resource: "secrets"}
	got, err := dyn.Resource(gvr).Namespace("demo").Get(context.Background(), "db-creds", metav1.GetOptions{})
	require.NoError(t, err)
	val, found, err := unstructured.NestedString(got.Object, "data", "password")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("fresh")), val)
}

func TestApplyRejectedWhenKindUnmappable(t *testing.T) {
	dyn := dynamicfake.NewSimpleDynamicClient(testScheme(t))

	// A mapper that knows nothing models a cluster whose discovery is
	// unreachable: nothing can be attempted.
	a := New(dyn, meta.NewDefaultRESTMapper(nil), Options{
		PerResourceTimeout: time.Second,
	}, nil)

	set := compileSet(t, nil)
	report := a.Apply(context.Background(), set)

	assert.Equal(t, models.PhaseRejected, report.Phase)
	require.Len(t, report.Resources, set.Len())
	for _, r := range report.Resources {
		assert.Equal(t, models.OutcomeSkipped, r.Outcome)
		assert.NotEmpty(t, r.Error)
	}
}

func TestApplyRetriesTransientErrors(t *testing.T) {
	dyn := dynamicfake.NewSimpleDynamicClient(testScheme(t))

	attempts := 0
	dyn.PrependReactor("create", "namespaces", func(action k8stesting.Action) (bool, runtime.Object, error) {
		attempts++
		if attempts == 1 {
			return true, nil, apierrors.NewTooManyRequests("server overloaded", 1)
		}
		return false, nil, nil
	})

	report := newTestApplier(dyn, 2).Apply(context.Background(), compileSet(t, nil))

	assert.Equal(t, models.PhaseSucceeded, report.Phase)
	assert.Equal(t, 2, attempts)
}

func TestApplyDoesNotRetryValidationRejections(t *testing.T) {
	dyn := dynamicfake.NewSimpleDynamicClient(testScheme(t))

	attempts := 0
	dyn.PrependReactor("create", "namespaces", func(action k8stesting.Action) (bool, runtime.Object, error) {
		attempts++
		return true, nil, apierrors.NewBadRequest("malformed manifest")
	})

	report := newTestApplier(dyn, 3).Apply(context.Background(), compileSet(t, nil))

	assert.Equal(t, models.PhasePartiallyApplied, report.Phase)
	assert.Equal(t, 1, attempts, "cluster validation rejections must not be retried")
	assert.Equal(t, models.OutcomeFailed, outcomes(report)["Namespace"])
}
