package compiler

import (
	"fmt"

	routev1 "github.com/openshift/api/route/v1"
	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"okd-deploy-api-go/internal/cluster"
	"okd-deploy-api-go/internal/domain"
)

// managedByValue labels every compiled resource for later lookup.
const managedByValue = "okd-deploy-api"

// requesterLabel carries the audited requester identity on every resource.
const requesterLabel = "okd-deploy.io/requested-by"

// Options carries the configured form constraints the validation pass
// enforces.
type Options struct {
	RouteDomains        []string
	CPURequestValues    []string
	MemoryRequestValues []string
}

// Compiler deterministically maps a validated DeploymentRequest plus a
// cluster-data snapshot to an ordered ManifestSet. It performs no I/O.
type Compiler struct {
	opts   Options
	logger *zap.Logger
}

// New creates a compiler with the given form constraints.
func New(opts Options, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{opts: opts, logger: logger}
}

// Compile validates the request against the snapshot and, when every check
// passes, emits the manifest set in apply order. On validation failure the
// returned error is a domain.Violations carrying all field violations.
func (c *Compiler) Compile(req *domain.DeploymentRequest, snap cluster.Snapshot) (*ManifestSet, error) {
	if violations := c.validate(req, snap); len(violations) > 0 {
		return nil, violations
	}

	labels := c.commonLabels(req)
	set := &ManifestSet{}

	if req.CreateNamespace {
		set.add("Namespace", req.Namespace, RankNamespace, c.namespaceManifest(req, labels))
	}

	for _, vol := range req.StorageVolumes {
		pvc, err := c.pvcManifest(req, vol, labels)
		if err != nil {
			return nil, err
		}
		set.add("PersistentVolumeClaim", vol.Name, RankPVC, pvc)
	}

	for _, g := range groupEntries(req.Secrets) {
		set.add("Secret", g.name, RankSecret, c.secretManifest(req, g, labels))
	}

	for _, g := range groupEntries(req.ConfigMaps) {
		set.add("ConfigMap", g.name, RankConfigMap, c.configMapManifest(req, g, labels))
	}

	deployment, err := c.deploymentManifest(req, labels)
	if err != nil {
		return nil, err
	}
	set.add("Deployment", deployment.Name, RankDeployment, deployment)

	service := c.serviceManifest(req, labels)
	set.add("Service", service.Name, RankService, service)

	if req.ExposeRoute {
		route := c.routeManifest(req, service.Name, labels)
		set.add("Route", route.Name, RankRoute, route)
	}

	return set, nil
}

// commonLabels derives the label set shared by every compiled resource.
func (c *Compiler) commonLabels(req *domain.DeploymentRequest) map[string]string {
	labels := map[string]string{
		"app":                          req.Namespace,
		"app.kubernetes.io/name":       req.Namespace,
		"app.kubernetes.io/managed-by": managedByValue,
	}
	if req.RequesterIdentity != "" {
		labels[requesterLabel] = req.RequesterIdentity
	}
	return labels
}

func (c *Compiler) namespaceManifest(req *domain.DeploymentRequest, labels map[string]string) *corev1.Namespace {
	return &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   req.Namespace,
			Labels: labels,
		},
	}
}

func (c *Compiler) pvcManifest(req *domain.DeploymentRequest, vol domain.StorageVolume, labels map[string]string) (*corev1.PersistentVolumeClaim, error) {
	size, err := resource.ParseQuantity(fmt.Sprintf("%dGi", vol.SizeGi))
	if err != nil {
		return nil, fmt.Errorf("%w: storage size %dGi: %v", ErrCompilation, vol.SizeGi, err)
	}

	return &corev1.PersistentVolumeClaim{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      vol.Name,
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: size},
			},
			StorageClassName: ptr.To(vol.StorageClass),
		},
	}, nil
}

func (c *Compiler) secretManifest(req *domain.DeploymentRequest, g entryGroup, labels map[string]string) *corev1.Secret {
	data := make(map[string][]byte, len(g.entries))
	for _, e := range g.entries {
		data[e.Key] = []byte(e.Value)
	}
	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      g.name,
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Type: corev1.SecretTypeOpaque,
		Data: data,
	}
}

func (c *Compiler) configMapManifest(req *domain.DeploymentRequest, g entryGroup, labels map[string]string) *corev1.ConfigMap {
	data := make(map[string]string, len(g.entries))
	for _, e := range g.entries {
		data[e.Key] = e.Value
	}
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      g.name,
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Data: data,
	}
}

func (c *Compiler) deploymentManifest(req *domain.DeploymentRequest, labels map[string]string) (*appsv1.Deployment, error) {
	cpu, err := resource.ParseQuantity(req.CPURequest)
	if err != nil {
		return nil, fmt.Errorf("%w: cpu request %q: %v", ErrCompilation, req.CPURequest, err)
	}
	memory, err := resource.ParseQuantity(req.MemoryRequest)
	if err != nil {
		return nil, fmt.Errorf("%w: memory request %q: %v", ErrCompilation, req.MemoryRequest, err)
	}

	container := corev1.Container{
		Name:  req.Namespace,
		Image: req.ContainerImage,
		Resources: corev1.ResourceRequirements{
			Requests: corev1.ResourceList{
				corev1.ResourceCPU:    cpu,
				corev1.ResourceMemory: memory,
			},
		},
		Ports: []corev1.ContainerPort{
			{ContainerPort: int32(req.ContainerPort)},
		},
	}

	var volumes []corev1.Volume

	for _, vol := range req.StorageVolumes {
		container.VolumeMounts = append(container.VolumeMounts, corev1.VolumeMount{
			Name:      vol.Name,
			MountPath: vol.MountPath,
		})
		volumes = append(volumes, corev1.Volume{
			Name: vol.Name,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: vol.Name,
				},
			},
		})
	}

	for _, e := range req.Secrets {
		switch e.MountType {
		case domain.MountTypeEnv:
			container.Env = append(container.Env, corev1.EnvVar{
				Name: envName(e),
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: e.GroupName},
						Key:                  e.Key,
					},
				},
			})
		case domain.MountTypeVolume:
			if !hasVolume(volumes, e.GroupName) {
				volumes = append(volumes, corev1.Volume{
					Name: e.GroupName,
					VolumeSource: corev1.VolumeSource{
						Secret: &corev1.SecretVolumeSource{SecretName: e.GroupName},
					},
				})
			}
			container.VolumeMounts = appendMount(container.VolumeMounts, e.GroupName, e.MountPath)
		}
	}

	for _, e := range req.ConfigMaps {
		switch e.MountType {
		case domain.MountTypeEnv:
			container.Env = append(container.Env, corev1.EnvVar{
				Name: envName(e),
				ValueFrom: &corev1.EnvVarSource{
					ConfigMapKeyRef: &corev1.ConfigMapKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: e.GroupName},
						Key:                  e.Key,
					},
				},
			})
		case domain.MountTypeVolume:
			if !hasVolume(volumes, e.GroupName) {
				volumes = append(volumes, corev1.Volume{
					Name: e.GroupName,
					VolumeSource: corev1.VolumeSource{
						ConfigMap: &corev1.ConfigMapVolumeSource{
							LocalObjectReference: corev1.LocalObjectReference{Name: e.GroupName},
						},
					},
				})
			}
			container.VolumeMounts = appendMount(container.VolumeMounts, e.GroupName, e.MountPath)
		}
	}

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Namespace + "-deployment",
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(1)),
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{"app": req.Namespace},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{container},
					Volumes:    volumes,
				},
			},
		},
	}, nil
}

func (c *Compiler) serviceManifest(req *domain.DeploymentRequest, labels map[string]string) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Namespace + "-service",
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": req.Namespace},
			Ports: []corev1.ServicePort{
				{
					Protocol:   corev1.ProtocolTCP,
					Port:       int32(req.ContainerPort),
					TargetPort: intstr.FromInt32(int32(req.ContainerPort)),
				},
			},
		},
	}
}

func (c *Compiler) routeManifest(req *domain.DeploymentRequest, serviceName string, labels map[string]string) *routev1.Route {
	route := &routev1.Route{
		TypeMeta: metav1.TypeMeta{APIVersion: "route.openshift.io/v1", Kind: "Route"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Namespace + "-route",
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Spec: routev1.RouteSpec{
			Host: req.RouteHost(),
			To: routev1.RouteTargetReference{
				Kind: "Service",
				Name: serviceName,
			},
			Port: &routev1.RoutePort{
				TargetPort: intstr.FromInt32(int32(req.ContainerPort)),
			},
		},
	}
	// Port 443 implies TLS at the router edge.
	if req.RoutePort == 443 {
		route.Spec.TLS = &routev1.TLSConfig{Termination: routev1.TLSTerminationEdge}
	}
	return route
}

// entryGroup aggregates all key/value pairs sharing one object name.
type entryGroup struct {
	name    string
	entries []domain.MountEntry
}

// groupEntries groups entries by name preserving first-appearance order so
// compilation stays deterministic.
func groupEntries(entries []domain.MountEntry) []entryGroup {
	var groups []entryGroup
	index := map[string]int{}
	for _, e := range entries {
		i, ok := index[e.GroupName]
		if !ok {
			i = len(groups)
			index[e.GroupName] = i
			groups = append(groups, entryGroup{name: e.GroupName})
		}
		groups[i].entries = append(groups[i].entries, e)
	}
	return groups
}

// envName resolves the environment variable name, defaulting to the key.
func envName(e domain.MountEntry) string {
	if e.EnvName != "" {
		return e.EnvName
	}
	return e.Key
}

// hasVolume reports whether a pod volume with the given name exists.
func hasVolume(volumes []corev1.Volume, name string) bool {
	for _, v := range volumes {
		if v.Name == name {
			return true
		}
	}
	return false
}

// appendMount adds a volume mount, skipping exact duplicates produced by
// multiple entries of the same group mounted at the same path.
func appendMount(mounts []corev1.VolumeMount, name, path string) []corev1.VolumeMount {
	for _, m := range mounts {
		if m.Name == name && m.MountPath == path {
			return mounts
		}
	}
	return append(mounts, corev1.VolumeMount{Name: name, MountPath: path})
}
