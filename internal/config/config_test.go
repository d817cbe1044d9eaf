package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Env)
	assert.False(t, cfg.App.IsProduction())
	assert.Equal(t, "orders", cfg.Export.Label)
	assert.Equal(t, 1000, cfg.Export.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Export.StatusTTL)
	assert.Equal(t, 3, cfg.Export.MaxAttempts)
	assert.Equal(t, "exports.orders", cfg.Kafka.ExportTopic)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "65", cfg.WhatsApp.DefaultCountry)
	assert.Equal(t, 5, cfg.WhatsApp.Breaker.FailThreshold)
	assert.Equal(t, time.Second, cfg.RateLimit.Window)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: production
  tenant_domain: shop.example.test
storage:
  driver: s3
  s3:
    bucket: exports
`), 0o600))
	t.Setenv("ORDERDESK_EXPORT_BATCH_SIZE", "250")
	t.Setenv("ORDERDESK_WHATSAPP_ACCESS_TOKEN", "tok")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, "shop.example.test", cfg.App.TenantDomain)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "exports", cfg.Storage.S3.Bucket)
	assert.Equal(t, "ap-southeast-1", cfg.Storage.S3.Region, "untouched defaults survive the merge")
	assert.Equal(t, 250, cfg.Export.BatchSize)
	assert.Equal(t, "tok", cfg.WhatsApp.AccessToken)
}

func TestAppConfig_Location(t *testing.T) {
	assert.Equal(t, "Asia/Singapore", AppConfig{Timezone: "Asia/Singapore"}.Location().String())
	assert.Equal(t, time.UTC, AppConfig{}.Location())
	assert.Equal(t, time.UTC, AppConfig{Timezone: "Mars/Olympus"}.Location())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  env: [unclosed\n"), 0o600))

	_, err := Load(path)

	require.Error(t, err)
}
