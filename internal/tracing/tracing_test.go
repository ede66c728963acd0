package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{
			name: "disabled is a no-op provider",
			cfg:  Config{Enabled: false},
		},
		{
			name:        "enabled without endpoint is a config error",
			cfg:         Config{Enabled: true},
			expectError: true,
		},
		{
			name: "plaintext endpoint",
			cfg:  Config{Enabled: true, Endpoint: "localhost:4317"},
		},
		{
			name: "insecure TLS",
			cfg:  Config{Enabled: true, Endpoint: "localhost:4317", TLSInsecure: true},
		},
		{
			name:        "missing CA file",
			cfg:         Config{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: "/does/not/exist.crt"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Enabled, provider.IsEnabled())
			assert.NotNil(t, provider.Tracer("pipeline"))
			assert.NoError(t, provider.Stop(context.Background()))
		})
	}
}
