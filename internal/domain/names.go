package domain

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// ValidSubdomain reports whether name satisfies the RFC 1123 subdomain
// grammar required for most cluster resource names.
func ValidSubdomain(name string) bool {
	return len(validation.IsDNS1123Subdomain(name)) == 0
}

// SubdomainErrors returns the grammar violations for name, one message per
// broken rule, empty when the name is valid.
func SubdomainErrors(name string) []string {
	return validation.IsDNS1123Subdomain(name)
}

// ValidLabel reports whether name satisfies the RFC 1123 label grammar
// (single dot-free segment), used for route host labels.
func ValidLabel(name string) bool {
	return len(validation.IsDNS1123Label(name)) == 0
}

// ValidPort reports whether p is a usable TCP port.
func ValidPort(p int) bool {
	return p >= 1 && p <= 65535
}

// SystemNamespace reports whether name belongs to the cluster itself.
// System namespaces are hidden from reference data and refused as targets.
func SystemNamespace(name string) bool {
	return strings.HasPrefix(name, "openshift-") || strings.HasPrefix(name, "kube-")
}
