package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DB_PASSWORD":         "secret",
		"SESSION_SIGNING_KEY": "signing-key",
	}
}

func TestLoadFromMap_Defaults(t *testing.T) {
	cfg, err := LoadFromMap(baseEnv())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "custom:role", cfg.Session.RoleClaim)
	assert.Equal(t, "60-M", cfg.RateLimit.Rate)
	assert.Equal(t, 12, cfg.Outbox.MaxAttempts)
	assert.Equal(t, 168*time.Hour, cfg.Outbox.CleanerRetention)
	assert.Zero(t, cfg.QuoteApproval.TokenTTL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromMap_Overrides(t *testing.T) {
	env := baseEnv()
	env["CORS_ALLOWED_ORIGINS"] = "https://a.test,https://b.test"
	env["STORAGE_TYPE"] = "s3"
	env["QUOTE_APPROVAL_TOKEN_TTL"] = "72h"
	env["RATE_LIMIT_STORAGE"] = "redis"
	env["RATE_LIMIT_REDIS_URL"] = "redis://localhost:6379/0"

	cfg, err := LoadFromMap(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, 72*time.Hour, cfg.QuoteApproval.TokenTTL)
	assert.Equal(t, "redis", cfg.RateLimit.Storage)
}

func TestLoadFromMap_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantErr string
	}{
		{"missing password", func(e map[string]string) { delete(e, "DB_PASSWORD") }, "DB_PASSWORD is required"},
		{"bad storage", func(e map[string]string) { e["STORAGE_TYPE"] = "ftp" }, "STORAGE_TYPE"},
		{"session without key", func(e map[string]string) { delete(e, "SESSION_SIGNING_KEY") }, "SESSION_SIGNING_KEY"},
		{"redis without url", func(e map[string]string) { e["RATE_LIMIT_STORAGE"] = "redis" }, "RATE_LIMIT_REDIS_URL"},
		{"unknown limiter store", func(e map[string]string) { e["RATE_LIMIT_STORAGE"] = "disk" }, "RATE_LIMIT_STORAGE"},
		{"zero batch", func(e map[string]string) { e["OUTBOX_BATCH_SIZE"] = "0" }, "OUTBOX_BATCH_SIZE"},
		{"negative ttl", func(e map[string]string) { e["QUOTE_APPROVAL_TOKEN_TTL"] = "-1h" }, "QUOTE_APPROVAL_TOKEN_TTL"},
		{"unparseable port", func(e map[string]string) { e["DB_PORT"] = "five" }, "failed to parse configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			tt.mutate(env)
			_, err := LoadFromMap(env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	env := baseEnv()
	delete(env, "SESSION_SIGNING_KEY")
	env["SESSION_ENABLED"] = "false"
	_, err := LoadFromMap(env)
	assert.NoError(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, Username: "app", Password: "p@ss word", Name: "backoffice", SSLMode: "require"}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5433/backoffice?sslmode=require", cfg.DSN())
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("BACKOFFICE_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("BACKOFFICE_TEST_VALUE") })

	n, err := LoadEnvFiles(file, filepath.Join(dir, ".env.local"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "from-dotenv", os.Getenv("BACKOFFICE_TEST_VALUE"))

	n, err = LoadEnvFiles(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
