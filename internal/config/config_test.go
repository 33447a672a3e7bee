package config_test

import (
	"testing"
	"time"

	"github.com/dom/cardclash/internal/config"
	"github.com/dom/cardclash/internal/resolution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.Equal(t, 10*time.Second, cfg.RevealCountdown)
	assert.Equal(t, 10*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, resolution.PolicyAttributeSum, cfg.ResolutionPolicy)
	assert.Equal(t, 5, cfg.PackSize)
	assert.False(t, cfg.RealtimePGNotify)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REVEAL_COUNTDOWN", "3s")
	t.Setenv("RESOLUTION_POLICY", "type_triangle")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.RevealCountdown)
	assert.Equal(t, "type_triangle", cfg.ResolutionPolicy)
	assert.Equal(t, "memory", cfg.StorageDriver)
}

func TestLoad_AcceptsEveryResolutionPolicy(t *testing.T) {
	for _, name := range []string{resolution.PolicyAttributeSum, resolution.PolicyTypeTriangle} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv("RESOLUTION_POLICY", name)

			cfg, err := config.Load()
			require.NoError(t, err)
			policy, err := resolution.ByName(cfg.ResolutionPolicy)
			require.NoError(t, err)
			assert.Equal(t, name, policy.Name())
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "unknown policy", env: map[string]string{"JWT_SECRET": "s", "RESOLUTION_POLICY": "dice"}},
		{name: "unknown driver", env: map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "sqlite"}},
		{name: "bad duration", env: map[string]string{"JWT_SECRET": "s", "REVEAL_COUNTDOWN": "soon"}},
		{name: "zero countdown", env: map[string]string{"JWT_SECRET": "s", "REVEAL_COUNTDOWN": "0s"}},
		{name: "notify without postgres", env: map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "memory", "REALTIME_PG_NOTIFY": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
