// Package config resolves user-supplied collector settings into the validated,
// immutable Config consumed by every other component.
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

const (
	// DefaultBatchSize is the number of buffered signals that triggers a flush.
	DefaultBatchSize = 10
	// DefaultBatchIntervalMS is the periodic flush interval in milliseconds.
	DefaultBatchIntervalMS = 5000

	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

// UserConfig holds the raw settings supplied by the host application.
// Zero values select the defaults.
type UserConfig struct {
	APIKey          string `yaml:"api_key" json:"apiKey"`
	IngestionURL    string `yaml:"ingestion_url" json:"ingestionUrl"`
	EnableDebug     bool   `yaml:"enable_debug" json:"enableDebug"`
	Environment     string `yaml:"environment" json:"environment,omitempty"`
	BatchSize       int    `yaml:"batch_size" json:"batchSize,omitempty"`
	BatchIntervalMS int    `yaml:"batch_interval_ms" json:"batchInterval,omitempty"`
	ProjectID       string `yaml:"project_id" json:"projectId,omitempty"`
	AppID           string `yaml:"app_id" json:"appId,omitempty"`

	// Hostname feeds environment auto-detection when Environment is empty.
	Hostname string `yaml:"hostname" json:"hostname,omitempty"`
}

// Config is a validated collector configuration. It is immutable once
// returned by Resolve.
type Config struct {
	apiKey        string
	ingestionURL  string
	enableDebug   bool
	environment   string
	hostname      string
	batchSize     int
	batchInterval time.Duration
	projectID     string
	appID         string
}

// Resolve merges user settings over the defaults and validates the result.
// Checks run in order (api key, ingestion URL present, ingestion URL
// well-formed) and the first failure is returned as a
// *domain.ConfigurationError. No partial Config is returned on failure.
func Resolve(user UserConfig) (*Config, error) {
	if strings.TrimSpace(user.APIKey) == "" {
		return nil, &domain.ConfigurationError{Field: "apiKey", Reason: "is required"}
	}

	if strings.TrimSpace(user.IngestionURL) == "" {
		return nil, &domain.ConfigurationError{Field: "ingestionUrl", Reason: "is required"}
	}

	if err := validateURL(user.IngestionURL); err != nil {
		return nil, &domain.ConfigurationError{Field: "ingestionUrl", Reason: "must be a valid URL", Err: err}
	}

	batchSize := user.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	intervalMS := user.BatchIntervalMS
	if intervalMS <= 0 {
		intervalMS = DefaultBatchIntervalMS
	}

	return &Config{
		apiKey:        user.APIKey,
		ingestionURL:  strings.TrimSpace(user.IngestionURL),
		enableDebug:   user.EnableDebug,
		environment:   user.Environment,
		hostname:      user.Hostname,
		batchSize:     batchSize,
		batchInterval: time.Duration(intervalMS) * time.Millisecond,
		projectID:     user.ProjectID,
		appID:         user.AppID,
	}, nil
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return &url.Error{Op: "parse", URL: raw, Err: errMissingSchemeOrHost}
	}
	return nil
}

var errMissingSchemeOrHost = errors.New("missing scheme or host")

// APIKey returns the credential sent with every delivery.
func (c *Config) APIKey() string { return c.apiKey }

// IngestionURL returns the configured base endpoint.
func (c *Config) IngestionURL() string { return c.ingestionURL }

// DebugEnabled reports whether diagnostic logging is on.
func (c *Config) DebugEnabled() bool { return c.enableDebug }

// BatchSize returns the flush-triggering buffer length.
func (c *Config) BatchSize() int { return c.batchSize }

// BatchInterval returns the periodic flush interval.
func (c *Config) BatchInterval() time.Duration { return c.batchInterval }

// ProjectID returns the opaque project identifier, if any.
func (c *Config) ProjectID() string { return c.projectID }

// AppID returns the opaque application identifier, if any.
func (c *Config) AppID() string { return c.appID }

// Environment returns the explicit environment or, when none was configured,
// the value detected from the hostname hint.
func (c *Config) Environment() string {
	if c.environment != "" {
		return c.environment
	}
	return DetectEnvironment(c.hostname)
}

// DetectEnvironment maps a hostname onto a deployment environment.
func DetectEnvironment(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if host == "" {
		return EnvironmentProduction
	}
	if host == "localhost" || host == "127.0.0.1" {
		return EnvironmentDevelopment
	}
	if strings.Contains(host, "staging") || strings.Contains(host, "stage") || strings.Contains(host, "test") {
		return EnvironmentStaging
	}
	return EnvironmentProduction
}
