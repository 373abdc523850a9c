package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	content := `
observer:
  api_key: "file-key"
  ingestion_url: "https://ingest.example.com"
  enable_debug: true
  batch_size: 25
  batch_interval_ms: 1000
  hostname: "staging.example.com"

telemetry:
  otlp_endpoint: "localhost:4317"
  insecure: true

logging:
  level: "debug"
  format: "json"

policy:
  file: "admission.rego"
  scrub_pii: false

metrics:
  address: ":9100"
`
	path := filepath.Join(t.TempDir(), "hawkeye.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Observer.APIKey)
	assert.Equal(t, "https://ingest.example.com", cfg.Observer.IngestionURL)
	assert.True(t, cfg.Observer.EnableDebug)
	assert.Equal(t, 25, cfg.Observer.BatchSize)
	assert.Equal(t, 1000, cfg.Observer.BatchIntervalMS)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.Insecure)
	assert.Equal(t, "hawkeye", cfg.Telemetry.ServiceName, "defaults survive partial sections")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "admission.rego", cfg.Policy.File)
	assert.False(t, cfg.Policy.ScrubPIIEnabled())
	assert.Equal(t, ":9100", cfg.Metrics.Address)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	resolved, err := Resolve(cfg.Observer)
	require.NoError(t, err)
	assert.Equal(t, EnvironmentStaging, resolved.Environment())
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv("HAWKEYE_API_KEY", "env-key")
	t.Setenv("HAWKEYE_INGESTION_URL", "http://localhost:9999")
	t.Setenv("HAWKEYE_DEBUG", "true")
	t.Setenv("HAWKEYE_BATCH_SIZE", "7")
	t.Setenv("HAWKEYE_LOG_LEVEL", "warn")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Observer.APIKey)
	assert.Equal(t, "http://localhost:9999", cfg.Observer.IngestionURL)
	assert.True(t, cfg.Observer.EnableDebug)
	assert.Equal(t, 7, cfg.Observer.BatchSize)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Policy.ScrubPIIEnabled())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observer: [unterminated"), 0o644))
	_, err = LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}
