package webhook

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
)

func TestValidateURLAllowsPublicTargets(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "https endpoint", url: "https://example.com/hooks/vibe"},
		{name: "http with port", url: "http://example.com:8080/notify"},
		{name: "public literal IP", url: "http://8.8.8.8/hook"},
		{name: "unresolvable hostname", url: "https://endpoint.invalid/hook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, ValidateURL(tt.url))
		})
	}
}

func TestValidateURLBlocksUnsafeTargets(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantCode string
		wantMsg  string
	}{
		{
			name:     "ftp scheme",
			url:      "ftp://example.com/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "http or https",
		},
		{
			name:     "file scheme",
			url:      "file:///etc/passwd",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "http or https",
		},
		{
			name:     "unparseable",
			url:      "://missing-scheme",
			wantCode: verrors.ErrCodeInvalidArgument,
			wantMsg:  "invalid URL",
		},
		{
			name:     "missing host",
			url:      "http:///hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "valid hostname",
		},
		{
			name:     "localhost",
			url:      "http://localhost:9000/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked hostname",
		},
		{
			name:     "localhost mixed case",
			url:      "http://LocalHost/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked hostname",
		},
		{
			name:     "cloud metadata hostname",
			url:      "http://metadata.google.internal/computeMetadata/v1/",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked hostname",
		},
		{
			name:     "ipv6 loopback literal",
			url:      "http://[::1]:8080/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked hostname",
		},
		{
			name:     "loopback range",
			url:      "http://127.0.0.2/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked IP range",
		},
		{
			name:     "private class A",
			url:      "http://10.1.2.3/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked IP range",
		},
		{
			name:     "private class B",
			url:      "https://172.20.0.1/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked IP range",
		},
		{
			name:     "private class C",
			url:      "http://192.168.1.1/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked IP range",
		},
		{
			name:     "link local",
			url:      "http://169.254.0.99/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked IP range",
		},
		{
			name:     "ipv6 unique local",
			url:      "http://[fd00::1]/hook",
			wantCode: verrors.ErrCodeUnsafeURL,
			wantMsg:  "blocked IP range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)

			require.Error(t, err)
			assert.True(t, verrors.HasCode(err, tt.wantCode),
				"expected code %s, got %s", tt.wantCode, verrors.GetCode(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateURLChecksResolvedAddresses(t *testing.T) {
	orig := lookupIP
	t.Cleanup(func() { lookupIP = orig })

	// Given a public-looking hostname that resolves into private space
	lookupIP = func(string) ([]net.IP, error) {
		return []net.IP{net.ParseIP("93.184.216.34"), net.ParseIP("10.0.0.5")}, nil
	}

	err := ValidateURL("https://hooks.example.com/vibe")

	// Then registration-time validation rejects it
	require.Error(t, err)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeUnsafeURL))
	assert.Contains(t, err.Error(), "blocked IP range")

	// And a hostname resolving only to public addresses passes
	lookupIP = func(string) ([]net.IP, error) {
		return []net.IP{net.ParseIP("93.184.216.34")}, nil
	}
	assert.NoError(t, ValidateURL("https://hooks.example.com/vibe"))
}
