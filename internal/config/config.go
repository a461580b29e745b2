package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerPort string
	ServerHost string

	// Cluster credential (service account)
	ClusterAPIURL      string
	ClusterToken       string
	ClusterInsecureTLS bool

	// Cluster reference-data cache
	CacheTTL time.Duration

	// Authorization
	AdminRole          string
	ClaimsNamespaceKey string

	// Deployment form constraints
	RouteDomains           []string
	FallbackStorageClasses []string
	CPURequestValues       []string
	MemoryRequestValues    []string

	// Apply tuning
	ApplyTimeout time.Duration
	ApplyRetries int

	// Logging configuration
	LogLevel  string
	LogFormat string

	// Application metadata
	AppName    string
	AppVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:             getEnv("SERVER_PORT", "8080"),
		ServerHost:             getEnv("SERVER_HOST", "0.0.0.0"),
		ClusterAPIURL:          getEnv("OKD_CLUSTER_API", ""),
		ClusterToken:           getEnv("OKD_SERVICE_ACCOUNT_TOKEN", ""),
		ClusterInsecureTLS:     getEnvBool("OKD_INSECURE_SKIP_TLS_VERIFY", false),
		CacheTTL:               getEnvDuration("CLUSTER_CACHE_TTL", 5*time.Minute),
		AdminRole:              getEnv("ADMIN_ROLE", "OKD_Admin"),
		ClaimsNamespaceKey:     getEnv("CLAIMS_NAMESPACE_KEY", "custom"),
		RouteDomains:           getEnvList("ROUTE_DOMAINS", []string{"example.com"}),
		FallbackStorageClasses: getEnvList("FALLBACK_STORAGE_CLASSES", []string{"standard"}),
		CPURequestValues:       getEnvList("CPU_REQUEST_VALUES", []string{"100m", "250m", "500m", "1"}),
		MemoryRequestValues:    getEnvList("MEMORY_REQUEST_VALUES", []string{"128Mi", "256Mi", "512Mi", "1Gi"}),
		ApplyTimeout:           getEnvDuration("APPLY_TIMEOUT", 30*time.Second),
		ApplyRetries:           getEnvInt("APPLY_RETRIES", 3),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		AppName:                "okd-deploy-api",
		AppVersion:             getEnv("APP_VERSION", "dev"),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.ClusterAPIURL == "" {
		return fmt.Errorf("OKD_CLUSTER_API is required")
	}
	if c.ClusterToken == "" {
		return fmt.Errorf("OKD_SERVICE_ACCOUNT_TOKEN is required")
	}
	if c.AdminRole == "" {
		return fmt.Errorf("ADMIN_ROLE must not be empty")
	}
	if len(c.RouteDomains) == 0 {
		return fmt.Errorf("ROUTE_DOMAINS must list at least one domain")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CLUSTER_CACHE_TTL must be positive")
	}
	if c.ApplyRetries < 0 {
		return fmt.Errorf("APPLY_RETRIES must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", c.LogLevel)
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return c.ServerHost + ":" + c.ServerPort
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return defaultVal
		}
		return b
	}
	return defaultVal
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return defaultVal
		}
		return i
	}
	return defaultVal
}

// getEnvDuration retrieves a duration environment variable or returns a default value
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return defaultVal
		}
		return d
	}
	return defaultVal
}

// getEnvList retrieves a comma-separated environment variable or returns a default value
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
