package cluster

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"okd-deploy-api-go/internal/domain"
)

// defaultClassAnnotation marks the cluster's default storage class.
const defaultClassAnnotation = "storageclass.kubernetes.io/is-default-class"

// Namespace is one user-visible namespace in cluster reference data.
type Namespace struct {
	Name string
}

// StorageClass is one storage class in cluster reference data.
type StorageClass struct {
	Name      string
	IsDefault bool
}

// Fetcher retrieves cluster-dynamic reference data. Namespaces and storage
// classes are fetched independently so a failure in one does not block the
// other.
type Fetcher interface {
	Namespaces(ctx context.Context) ([]Namespace, error)
	StorageClasses(ctx context.Context) ([]StorageClass, error)
}

// clusterFetcher lists reference data through the typed clientset.
type clusterFetcher struct {
	clientset kubernetes.Interface
}

// NewFetcher creates a Fetcher backed by the given clientset.
func NewFetcher(clientset kubernetes.Interface) Fetcher {
	return &clusterFetcher{clientset: clientset}
}

// Namespaces lists cluster namespaces, hiding system namespaces
// (openshift-* and kube-*) from operators.
func (f *clusterFetcher) Namespaces(ctx context.Context) ([]Namespace, error) {
	list, err := f.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}

	out := make([]Namespace, 0, len(list.Items))
	for _, ns := range list.Items {
		if domain.SystemNamespace(ns.Name) {
			continue
		}
		out = append(out, Namespace{Name: ns.Name})
	}
	return out, nil
}

// StorageClasses lists cluster storage classes with their default flag.
func (f *clusterFetcher) StorageClasses(ctx context.Context) ([]StorageClass, error) {
	list, err := f.clientset.StorageV1().StorageClasses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list storage classes: %w", err)
	}

	out := make([]StorageClass, 0, len(list.Items))
	for _, sc := range list.Items {
		out = append(out, StorageClass{
			Name:      sc.Name,
			IsDefault: sc.Annotations[defaultClassAnnotation] == "true",
		})
	}
	return out, nil
}
