package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

func TestResolveAppliesDefaults(t *testing.T) {
	cfg, err := Resolve(UserConfig{
		APIKey:       "key-123",
		IngestionURL: "https://ingest.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "key-123", cfg.APIKey())
	assert.Equal(t, "https://ingest.example.com", cfg.IngestionURL())
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize())
	assert.Equal(t, 5*time.Second, cfg.BatchInterval())
	assert.False(t, cfg.DebugEnabled())
	assert.Equal(t, EnvironmentProduction, cfg.Environment())
	assert.Empty(t, cfg.ProjectID())
	assert.Empty(t, cfg.AppID())
}

func TestResolveKeepsExplicitValues(t *testing.T) {
	cfg, err := Resolve(UserConfig{
		APIKey:          "key",
		IngestionURL:    "http://localhost:8080",
		EnableDebug:     true,
		Environment:     "qa",
		BatchSize:       3,
		BatchIntervalMS: 250,
		ProjectID:       "proj",
		AppID:           "app",
		Hostname:        "localhost",
	})
	require.NoError(t, err)

	assert.True(t, cfg.DebugEnabled())
	assert.Equal(t, "qa", cfg.Environment(), "explicit environment wins over hostname detection")
	assert.Equal(t, 3, cfg.BatchSize())
	assert.Equal(t, 250*time.Millisecond, cfg.BatchInterval())
	assert.Equal(t, "proj", cfg.ProjectID())
	assert.Equal(t, "app", cfg.AppID())
}

func TestResolveValidationOrder(t *testing.T) {
	tests := []struct {
		name      string
		input     UserConfig
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing api key reported first",
			input:     UserConfig{IngestionURL: "not-a-url"},
			wantField: "apiKey",
			wantMsg:   "hawkeye: apiKey is required",
		},
		{
			name:      "blank api key",
			input:     UserConfig{APIKey: "   ", IngestionURL: "https://x.example"},
			wantField: "apiKey",
			wantMsg:   "hawkeye: apiKey is required",
		},
		{
			name:      "missing ingestion url",
			input:     UserConfig{APIKey: "key"},
			wantField: "ingestionUrl",
			wantMsg:   "hawkeye: ingestionUrl is required",
		},
		{
			name:      "malformed ingestion url",
			input:     UserConfig{APIKey: "key", IngestionURL: "not-a-url"},
			wantField: "ingestionUrl",
		},
		{
			name:      "url without host",
			input:     UserConfig{APIKey: "key", IngestionURL: "http://"},
			wantField: "ingestionUrl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Resolve(tt.input)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, errors.Is(err, domain.ErrConfigInvalid))

			var cfgErr *domain.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantField, cfgErr.Field)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Error())
			}
		})
	}
}

func TestResolveNonPositiveBatchSettingsFallBack(t *testing.T) {
	cfg, err := Resolve(UserConfig{
		APIKey:          "key",
		IngestionURL:    "https://ingest.example.com",
		BatchSize:       -4,
		BatchIntervalMS: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize())
	assert.Equal(t, time.Duration(DefaultBatchIntervalMS)*time.Millisecond, cfg.BatchInterval())
}

func TestDetectEnvironment(t *testing.T) {
	tests := []struct {
		hostname string
		expected string
	}{
		{"", EnvironmentProduction},
		{"localhost", EnvironmentDevelopment},
		{"127.0.0.1", EnvironmentDevelopment},
		{"staging.shop.example", EnvironmentStaging},
		{"app-stage.example", EnvironmentStaging},
		{"test.example.com", EnvironmentStaging},
		{"www.example.com", EnvironmentProduction},
		{"LOCALHOST", EnvironmentDevelopment},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectEnvironment(tt.hostname))
		})
	}
}

func TestResolveAcceptsAbsoluteURLsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		scheme := rapid.SampledFrom([]string{"http", "https"}).Draw(t, "scheme")
		host := rapid.StringMatching(`[a-z][a-z0-9]{0,12}(\.[a-z]{2,5}){0,2}`).Draw(t, "host")
		path := rapid.StringMatching(`(/[a-z0-9]{1,8}){0,3}`).Draw(t, "path")
		apiKey := rapid.StringMatching(`[A-Za-z0-9]{1,32}`).Draw(t, "api_key")

		cfg, err := Resolve(UserConfig{APIKey: apiKey, IngestionURL: scheme + "://" + host + path})
		if err != nil {
			t.Fatalf("expected valid config, got %v", err)
		}
		if cfg.APIKey() != apiKey {
			t.Fatalf("api key mismatch: %q != %q", cfg.APIKey(), apiKey)
		}
	})
}
