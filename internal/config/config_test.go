package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "badger", cfg.StoreBackend)
	assert.Equal(t, "memory", cfg.QueueBackend)
	assert.Equal(t, 720*time.Hour, cfg.TrustTTL)
	assert.Equal(t, "1234", cfg.StaffPIN)
	assert.False(t, cfg.CloudinaryEnabled())
}

func TestLoadEnvOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HTTP_PORT=9000\nSTORE_BACKEND=memory\n"), 0o600))

	t.Setenv("ENV_FILE", envFile)
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("TRUST_TTL", "1h")
	t.Cleanup(func() { os.Unsetenv("HTTP_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, time.Hour, cfg.TrustTTL)
	assert.Equal(t, "9000", cfg.HTTPPort)
}

func TestValidate(t *testing.T) {
	base := App{StoreBackend: "memory", QueueBackend: "memory", JWTSigningKey: "k", TrustTTL: time.Hour}
	require.NoError(t, base.Validate())

	tests := []struct {
		name string
		mut  func(*App)
	}{
		{"store backend", func(a *App) { a.StoreBackend = "mysql" }},
		{"queue backend", func(a *App) { a.QueueBackend = "kafka" }},
		{"signing key", func(a *App) { a.JWTSigningKey = "" }},
		{"trust ttl", func(a *App) { a.TrustTTL = 0 }},
		{"quota", func(a *App) { a.StoreQuotaBytes = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mut(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
