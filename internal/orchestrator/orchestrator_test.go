package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okd-deploy-api-go/internal/auth"
	"okd-deploy-api-go/internal/cluster"
	"okd-deploy-api-go/internal/compiler"
	"okd-deploy-api-go/internal/domain"
	"okd-deploy-api-go/internal/models"
)

type stubCache struct {
	snap     cluster.Snapshot
	gets     int
	refreshs int
}

func (s *stubCache) Get(ctx context.Context) cluster.Snapshot {
	s.gets++
	return s.snap
}

func (s *stubCache) Refresh(ctx context.Context) cluster.Snapshot {
	s.refreshs++
	return s.snap
}

type stubApplier struct {
	report *models.ApplyReport
	calls  int
	last   *compiler.ManifestSet
}

func (s *stubApplier) Apply(ctx context.Context, set *compiler.ManifestSet) *models.ApplyReport {
	s.calls++
	s.last = set
	return s.report
}

func adminClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":          "alice",
		"custom_roles": []any{"OKD_Admin", "Viewer"},
	}
}

func viewerClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":          "bob",
		"custom_roles": []any{"Viewer"},
	}
}

func goodSnapshot() cluster.Snapshot {
	return cluster.Snapshot{
		Namespaces:     []cluster.Namespace{{Name: "demo"}},
		StorageClasses: []cluster.StorageClass{{Name: "standard", IsDefault: true}},
	}
}

func goodRequest() *domain.DeploymentRequest {
	return &domain.DeploymentRequest{
		Namespace:      "demo",
		ContainerImage: "nginx:latest",
		CPURequest:     "100m",
		MemoryRequest:  "128Mi",
		ContainerPort:  80,
	}
}

func newTestOrchestrator(cache ClusterData, applier ManifestApplier) *Orchestrator {
	gate := auth.NewGate("custom", "OKD_Admin")
	comp := compiler.New(compiler.Options{
		RouteDomains:        []string{"example.com"},
		CPURequestValues:    []string{"100m"},
		MemoryRequestValues: []string{"128Mi"},
	}, nil)
	return New(gate, cache, comp, applier, []string{"standard", "fast"}, nil)
}

func TestCheckAdmin(t *testing.T) {
	o := newTestOrchestrator(&stubCache{}, &stubApplier{})

	resp, err := o.CheckAdmin(adminClaims())
	require.NoError(t, err)
	assert.True(t, resp.IsAdmin)
	assert.Equal(t, []string{"OKD_Admin", "Viewer"}, resp.Roles)

	resp, err = o.CheckAdmin(viewerClaims())
	require.NoError(t, err)
	assert.False(t, resp.IsAdmin)

	_, err = o.CheckAdmin(nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGetClusterData(t *testing.T) {
	cache := &stubCache{snap: goodSnapshot()}
	o := newTestOrchestrator(cache, &stubApplier{})

	resp, err := o.GetClusterData(context.Background(), viewerClaims(), false)
	require.NoError(t, err, "cluster data must not require admin")
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Namespaces, 1)
	assert.Equal(t, "demo", resp.Namespaces[0].Name)
	require.Len(t, resp.StorageClasses, 1)
	assert.True(t, resp.StorageClasses[0].IsDefault)
	assert.Equal(t, 1, cache.gets)
	assert.Equal(t, 0, cache.refreshs)

	_, err = o.GetClusterData(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGetClusterDataForceRefresh(t *testing.T) {
	cache := &stubCache{snap: goodSnapshot()}
	o := newTestOrchestrator(cache, &stubApplier{})

	_, err := o.GetClusterData(context.Background(), adminClaims(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.gets)
	assert.Equal(t, 1, cache.refreshs)
}

func TestGetClusterDataFallbackStorageClasses(t *testing.T) {
	cache := &stubCache{snap: cluster.Snapshot{
		Namespaces:        []cluster.Namespace{{Name: "demo"}},
		StorageClassesErr: errors.New("connection refused"),
	}}
	o := newTestOrchestrator(cache, &stubApplier{})

	resp, err := o.GetClusterData(context.Background(), adminClaims(), false)
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, models.StatusPartial, resp.Status)
	assert.Equal(t, "connection refused", resp.StorageClassesError)

	names := make([]string, 0, len(resp.StorageClasses))
	for _, sc := range resp.StorageClasses {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"standard", "fast"}, names)
}

func TestGetClusterDataErrorWhenBothFetchesFail(t *testing.T) {
	cache := &stubCache{snap: cluster.Snapshot{
		NamespacesErr:     errors.New("connection refused"),
		StorageClassesErr: errors.New("connection refused"),
	}}
	o := newTestOrchestrator(cache, &stubApplier{})

	resp, err := o.GetClusterData(context.Background(), adminClaims(), false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, resp.Status, "a full outage is an error, not a partial result")
	assert.True(t, resp.Degraded)
	assert.Equal(t, "connection refused", resp.NamespacesError)
	assert.Equal(t, "connection refused", resp.StorageClassesError)
	assert.Empty(t, resp.Namespaces)
	assert.NotEmpty(t, resp.StorageClasses, "fallback storage classes are still served")
}

func TestGenerateYAML(t *testing.T) {
	o := newTestOrchestrator(&stubCache{snap: goodSnapshot()}, &stubApplier{})

	out, err := o.GenerateYAML(context.Background(), adminClaims(), goodRequest())
	require.NoError(t, err)
	assert.Contains(t, out, "kind: Deployment")
	assert.Contains(t, out, "kind: Service")
}

func TestGenerateYAMLAuthz(t *testing.T) {
	o := newTestOrchestrator(&stubCache{snap: goodSnapshot()}, &stubApplier{})

	_, err := o.GenerateYAML(context.Background(), nil, goodRequest())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = o.GenerateYAML(context.Background(), viewerClaims(), goodRequest())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGenerateYAMLValidation(t *testing.T) {
	o := newTestOrchestrator(&stubCache{snap: goodSnapshot()}, &stubApplier{})

	req := goodRequest()
	req.Namespace = "Bad_NS"

	_, err := o.GenerateYAML(context.Background(), adminClaims(), req)
	var violations domain.Violations
	assert.ErrorAs(t, err, &violations)
}

func TestDeploy(t *testing.T) {
	applier := &stubApplier{report: &models.ApplyReport{Phase: models.PhaseSucceeded}}
	o := newTestOrchestrator(&stubCache{snap: goodSnapshot()}, applier)

	report, err := o.Deploy(context.Background(), adminClaims(), goodRequest())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSucceeded, report.Phase)
	assert.Equal(t, 1, applier.calls)
	require.NotNil(t, applier.last)
	assert.Greater(t, applier.last.Len(), 0)
}

func TestDeployAuthzShortCircuitsCompilation(t *testing.T) {
	applier := &stubApplier{report: &models.ApplyReport{Phase: models.PhaseSucceeded}}
	cache := &stubCache{snap: goodSnapshot()}
	o := newTestOrchestrator(cache, applier)

	_, err := o.Deploy(context.Background(), viewerClaims(), goodRequest())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, applier.calls)
	assert.Equal(t, 0, cache.gets, "authorization must be decided before any cluster work")
}

func TestDeployRejectsInvalidRequestBeforeApply(t *testing.T) {
	applier := &stubApplier{report: &models.ApplyReport{Phase: models.PhaseSucceeded}}
	o := newTestOrchestrator(&stubCache{snap: goodSnapshot()}, applier)

	req := goodRequest()
	req.ContainerImage = ""

	_, err := o.Deploy(context.Background(), adminClaims(), req)
	var violations domain.Violations
	require.ErrorAs(t, err, &violations)
	assert.Equal(t, 0, applier.calls)
}

func TestDeployStampsRequesterFromClaims(t *testing.T) {
	applier := &stubApplier{report: &models.ApplyReport{Phase: models.PhaseSucceeded}}
	o := newTestOrchestrator(&stubCache{snap: goodSnapshot()}, applier)

	req := goodRequest()
	_, err := o.Deploy(context.Background(), adminClaims(), req)
	require.NoError(t, err)
	assert.Equal(t, "alice", req.RequesterIdentity)
}
