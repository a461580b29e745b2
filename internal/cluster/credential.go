package cluster

import (
	"fmt"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// Credential holds the clients built from the long-lived service-account
// bearer token and API endpoint. It is process-wide, shared, and read-only
// after initialization.
type Credential struct {
	restConfig *rest.Config
	clientset  kubernetes.Interface
	dynamic    dynamic.Interface
}

// Options controls client construction tuning. All fields are optional.
type Options struct {
	// UserAgent adds a custom user agent to the REST config.
	UserAgent string
	// QPS sets the allowed queries per second on the REST client.
	QPS float32
	// Burst sets the client-side rate limiter burst.
	Burst int
}

// applyDefaults applies reasonable defaults if not set.
func (o *Options) applyDefaults() {
	if o.QPS <= 0 {
		o.QPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 50
	}
}

// NewCredential builds typed and dynamic clients for the cluster API from a
// bearer token. insecureTLS skips server certificate verification, matching
// clusters fronted by self-signed certs.
func NewCredential(apiURL, bearerToken string, insecureTLS bool, opts *Options) (*Credential, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("cluster API URL is empty")
	}
	if bearerToken == "" {
		return nil, fmt.Errorf("service account token is empty")
	}
	if opts == nil {
		opts = &Options{}
	}
	opts.applyDefaults()

	cfg := &rest.Config{
		Host:        apiURL,
		BearerToken: bearerToken,
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: insecureTLS,
		},
		QPS:   opts.QPS,
		Burst: opts.Burst,
	}
	if opts.UserAgent != "" {
		cfg.UserAgent = opts.UserAgent
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build clientset: %w", err)
	}

	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build dynamic client: %w", err)
	}

	return &Credential{
		restConfig: cfg,
		clientset:  clientset,
		dynamic:    dyn,
	}, nil
}

// RESTConfig returns the configuration used to talk to the API server.
func (c *Credential) RESTConfig() *rest.Config {
	return c.restConfig
}

// Clientset returns the typed client for core/built-in resources.
func (c *Credential) Clientset() kubernetes.Interface {
	return c.clientset
}

// Dynamic returns the dynamic client used for arbitrary resource kinds.
func (c *Credential) Dynamic() dynamic.Interface {
	return c.dynamic
}
