package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSubdomain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple lowercase", "demo", true},
		{"hyphenated", "my-app", true},
		{"dotted", "my.app.demo", true},
		{"alphanumeric", "app123", true},
		{"max length", strings.Repeat("a", 253), true},
		{"uppercase", "Demo", false},
		{"underscore", "demo_ns", false},
		{"uppercase and underscore", "Demo_NS", false},
		{"leading hyphen", "-demo", false},
		{"trailing hyphen", "demo-", false},
		{"too long", strings.Repeat("a", 254), false},
		{"empty", "", false},
		{"spaces", "my app", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidSubdomain(tt.input))
			if tt.valid {
				assert.Empty(t, SubdomainErrors(tt.input))
			} else {
				assert.NotEmpty(t, SubdomainErrors(tt.input))
			}
		})
	}
}

func TestValidLabel(t *testing.T) {
	assert.True(t, ValidLabel("app"))
	assert.True(t, ValidLabel("my-app"))
	assert.False(t, ValidLabel("my.app"), "labels must be dot-free")
	assert.False(t, ValidLabel("App"))
	assert.False(t, ValidLabel(""))
}

func TestValidPort(t *testing.T) {
	assert.True(t, ValidPort(1))
	assert.True(t, ValidPort(80))
	assert.True(t, ValidPort(65535))
	assert.False(t, ValidPort(0))
	assert.False(t, ValidPort(-80))
	assert.False(t, ValidPort(65536))
}

func TestSystemNamespace(t *testing.T) {
	assert.True(t, SystemNamespace("openshift-monitoring"))
	assert.True(t, SystemNamespace("kube-system"))
	assert.False(t, SystemNamespace("demo"))
	assert.False(t, SystemNamespace("my-kube-app"))
}

func TestViolations(t *testing.T) {
	var v Violations
	v.Add("namespace", "must be a valid RFC 1123 subdomain")
	v.Add("containerPort", "must be between 1 and 65535, got %d", 0)

	assert.Len(t, v, 2)
	assert.Contains(t, v.Error(), "namespace")
	assert.Contains(t, v.Error(), "got 0")
}
