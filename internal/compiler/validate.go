package compiler

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"

	"okd-deploy-api-go/internal/cluster"
	"okd-deploy-api-go/internal/domain"
)

// validate collects every field-level violation in the request before
// returning. A request failing any check is rejected before compilation;
// partial compilation never happens.
func (c *Compiler) validate(req *domain.DeploymentRequest, snap cluster.Snapshot) domain.Violations {
	var v domain.Violations

	c.validateNamespace(req, snap, &v)
	c.validateContainer(req, &v)
	c.validateRoute(req, &v)
	c.validateStorage(req, snap, &v)
	c.validateMountGroup("secrets", req.Secrets, &v)
	c.validateMountGroup("configMaps", req.ConfigMaps, &v)

	if req.RequesterIdentity != "" {
		if errs := validation.IsValidLabelValue(req.RequesterIdentity); len(errs) > 0 {
			v.Add("requesterIdentity", "must be usable as a label value: %s", strings.Join(errs, ", "))
		}
	}

	return v
}

func (c *Compiler) validateNamespace(req *domain.DeploymentRequest, snap cluster.Snapshot, v *domain.Violations) {
	if errs := domain.SubdomainErrors(req.Namespace); len(errs) > 0 {
		v.Add("namespace", "must be a valid RFC 1123 subdomain: %s", strings.Join(errs, ", "))
		return
	}
	if domain.SystemNamespace(req.Namespace) {
		v.Add("namespace", "system namespaces cannot be deployment targets")
		return
	}

	if req.CreateNamespace {
		return
	}

	// Existence check needs trustworthy reference data. Skip it with a
	// warning when the snapshot is stale or the namespace fetch failed;
	// the cluster itself rejects a bad namespace at apply time.
	if snap.Stale || snap.NamespacesErr != nil {
		c.logger.Warn("skipping namespace existence check on stale cluster data",
			zap.String("namespace", req.Namespace),
			zap.Error(snap.NamespacesErr),
		)
		return
	}
	if !snap.HasNamespace(req.Namespace) {
		v.Add("namespace", "namespace %q does not exist in the cluster; enable createNamespace or pick an existing one", req.Namespace)
	}
}

func (c *Compiler) validateContainer(req *domain.DeploymentRequest, v *domain.Violations) {
	if req.ContainerImage == "" {
		v.Add("containerImage", "must not be empty")
	}
	if !domain.ValidPort(req.ContainerPort) {
		v.Add("containerPort", "must be between 1 and 65535, got %d", req.ContainerPort)
	}

	c.validateQuantity("cpuRequest", req.CPURequest, c.opts.CPURequestValues, v)
	c.validateQuantity("memoryRequest", req.MemoryRequest, c.opts.MemoryRequestValues, v)
}

// validateQuantity checks allow-list membership and parseability of a
// resource request value.
func (c *Compiler) validateQuantity(field, value string, allowed []string, v *domain.Violations) {
	if value == "" {
		v.Add(field, "must not be empty")
		return
	}
	if len(allowed) > 0 && !contains(allowed, value) {
		v.Add(field, "%q is not one of the allowed values %v", value, allowed)
		return
	}
	if _, err := resource.ParseQuantity(value); err != nil {
		v.Add(field, "%q is not a valid quantity: %v", value, err)
	}
}

func (c *Compiler) validateRoute(req *domain.DeploymentRequest, v *domain.Violations) {
	if !req.ExposeRoute {
		return
	}

	if !domain.ValidPort(req.RoutePort) {
		v.Add("routePort", "must be between 1 and 65535, got %d", req.RoutePort)
	}

	if req.RouteHostname == "" {
		v.Add("routeHostname", "required when exposeRoute is set")
	} else if errs := domain.SubdomainErrors(req.RouteHostname); len(errs) > 0 {
		v.Add("routeHostname", "must be a valid RFC 1123 subdomain: %s", strings.Join(errs, ", "))
	}

	if req.RouteDomain == "" {
		v.Add("routeDomain", "required when exposeRoute is set")
	} else if !contains(c.opts.RouteDomains, req.RouteDomain) {
		v.Add("routeDomain", "%q is not an allowed route domain %v", req.RouteDomain, c.opts.RouteDomains)
	}

	if req.RouteHostname != "" && req.RouteDomain != "" {
		if !domain.ValidSubdomain(req.RouteHost()) {
			v.Add("routeHostname", "computed host %q is not a valid RFC 1123 subdomain", req.RouteHost())
		}
	}
}

func (c *Compiler) validateStorage(req *domain.DeploymentRequest, snap cluster.Snapshot, v *domain.Violations) {
	seen := map[string]bool{}
	for i, vol := range req.StorageVolumes {
		field := fmt.Sprintf("storageVolumes[%d]", i)

		if errs := domain.SubdomainErrors(vol.Name); len(errs) > 0 {
			v.Add(field+".name", "must be a valid RFC 1123 subdomain: %s", strings.Join(errs, ", "))
		} else if seen[vol.Name] {
			v.Add(field+".name", "volume name %q is used more than once", vol.Name)
		}
		seen[vol.Name] = true

		if vol.SizeGi <= 0 {
			v.Add(field+".sizeGi", "must be greater than zero, got %d", vol.SizeGi)
		}
		if vol.MountPath == "" || !strings.HasPrefix(vol.MountPath, "/") {
			v.Add(field+".mountPath", "must be an absolute path")
		}
		if vol.StorageClass == "" {
			v.Add(field+".storageClass", "must not be empty")
			continue
		}

		// Same staleness rule as the namespace check.
		if snap.Stale || snap.StorageClassesErr != nil {
			c.logger.Warn("skipping storage class existence check on stale cluster data",
				zap.String("storage_class", vol.StorageClass),
				zap.Error(snap.StorageClassesErr),
			)
			continue
		}
		if !snap.HasStorageClass(vol.StorageClass) {
			v.Add(field+".storageClass", "storage class %q does not exist in the cluster", vol.StorageClass)
		}
	}
}

// validateMountGroup checks secret or config map entries: group name
// grammar, variant-required fields, and (group, key) uniqueness. Duplicate
// keys within one group are an error — last-write-wins is disallowed.
func (c *Compiler) validateMountGroup(fieldPrefix string, entries []domain.MountEntry, v *domain.Violations) {
	seenKeys := map[string]bool{}
	for i, e := range entries {
		field := fmt.Sprintf("%s[%d]", fieldPrefix, i)

		if errs := domain.SubdomainErrors(e.GroupName); len(errs) > 0 {
			v.Add(field+".secretName", "must be a valid RFC 1123 subdomain: %s", strings.Join(errs, ", "))
		}

		if e.Key == "" {
			v.Add(field+".key", "must not be empty")
		} else if errs := validation.IsConfigMapKey(e.Key); len(errs) > 0 {
			v.Add(field+".key", "invalid key: %s", strings.Join(errs, ", "))
		}

		pair := e.GroupName + "/" + e.Key
		if e.GroupName != "" && e.Key != "" {
			if seenKeys[pair] {
				v.Add(field+".key", "duplicate key %q in %q", e.Key, e.GroupName)
			}
			seenKeys[pair] = true
		}

		switch e.MountType {
		case domain.MountTypeEnv:
			if e.EnvName != "" {
				if errs := validation.IsEnvVarName(e.EnvName); len(errs) > 0 {
					v.Add(field+".envName", "invalid environment variable name: %s", strings.Join(errs, ", "))
				}
			}
		case domain.MountTypeVolume:
			if e.MountPath == "" || !strings.HasPrefix(e.MountPath, "/") {
				v.Add(field+".mountPath", "must be an absolute path for volume mounts")
			}
		default:
			v.Add(field+".mountType", "must be %q or %q, got %q", domain.MountTypeEnv, domain.MountTypeVolume, e.MountType)
		}
	}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
