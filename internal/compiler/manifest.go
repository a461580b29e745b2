package compiler

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"
)

// Apply order ranks. Lower ranks must reach the cluster first: a namespace
// before anything inside it, mounted objects before the workload that
// mounts them, the workload before its Service, the Service before the
// Route that targets it.
const (
	RankNamespace = iota
	RankPVC
	RankSecret
	RankConfigMap
	RankDeployment
	RankService
	RankRoute
)

// Manifest is a single declarative resource destined for the cluster API,
// tagged with its kind and apply order rank.
type Manifest struct {
	Kind   string
	Name   string
	Rank   int
	Object runtime.Object
}

// ManifestSet is the ordered collection of manifests compiled from one
// deployment request. It is immutable once produced and either serialized
// to YAML or consumed exactly once by the applier.
type ManifestSet struct {
	manifests []Manifest
}

// Manifests returns the manifests in apply order.
func (s *ManifestSet) Manifests() []Manifest {
	return s.manifests
}

// Len returns the number of manifests in the set.
func (s *ManifestSet) Len() int {
	return len(s.manifests)
}

// YAML renders the set as a multi-document YAML stream in apply order.
func (s *ManifestSet) YAML() (string, error) {
	docs := make([]string, 0, len(s.manifests))
	for _, m := range s.manifests {
		data, err := yaml.Marshal(m.Object)
		if err != nil {
			return "", fmt.Errorf("marshal %s %s: %w", m.Kind, m.Name, err)
		}
		docs = append(docs, string(data))
	}
	return strings.Join(docs, "---\n"), nil
}

// add appends a manifest. The compiler emits manifests in rank order, so
// append order is apply order.
func (s *ManifestSet) add(kind, name string, rank int, obj runtime.Object) {
	s.manifests = append(s.manifests, Manifest{
		Kind:   kind,
		Name:   name,
		Rank:   rank,
		Object: obj,
	})
}
