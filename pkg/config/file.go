package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk layout read by the hawkeye CLI.
type FileConfig struct {
	Observer  UserConfig      `yaml:"observer"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Policy    PolicyConfig    `yaml:"policy"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// TelemetryConfig holds configuration for OpenTelemetry trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PolicyConfig points at an optional Rego admission policy.
type PolicyConfig struct {
	File       string `yaml:"file"`
	Entrypoint string `yaml:"entrypoint"`
	ScrubPII   *bool  `yaml:"scrub_pii,omitempty"`
}

// ScrubPIIEnabled reports whether the built-in PII scrubber should run.
// It defaults to true.
func (p PolicyConfig) ScrubPIIEnabled() bool {
	return p.ScrubPII == nil || *p.ScrubPII
}

// MetricsConfig configures the Prometheus endpoint exposed by the CLI.
type MetricsConfig struct {
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// DefaultFileConfig returns a configuration with sensible defaults.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Observer: UserConfig{
			BatchSize:       DefaultBatchSize,
			BatchIntervalMS: DefaultBatchIntervalMS,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "hawkeye",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// LoadFile reads a YAML configuration file and applies HAWKEYE_* environment
// overrides. An empty path yields the defaults plus overrides. The observer
// section is not validated here; Resolve does that at initialization.
func LoadFile(path string) (*FileConfig, error) {
	cfg := DefaultFileConfig()

	if path != "" {
		//nolint:gosec // Config file path is supplied by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *FileConfig) {
	if val := os.Getenv("HAWKEYE_API_KEY"); val != "" {
		cfg.Observer.APIKey = val
	}
	if val := os.Getenv("HAWKEYE_INGESTION_URL"); val != "" {
		cfg.Observer.IngestionURL = val
	}
	if val := os.Getenv("HAWKEYE_ENVIRONMENT"); val != "" {
		cfg.Observer.Environment = val
	}
	if val := os.Getenv("HAWKEYE_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Observer.EnableDebug = enabled
		}
	}
	if val := os.Getenv("HAWKEYE_BATCH_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Observer.BatchSize = n
		}
	}

	if val := os.Getenv("HAWKEYE_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("HAWKEYE_OTLP_INSECURE"); strings.EqualFold(val, "true") {
		cfg.Telemetry.Insecure = true
	}

	if val := os.Getenv("HAWKEYE_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}
