// Package config provides configuration loading and management for the maneger client.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Dashboard failure policies.
const (
	// FailurePolicyAll fails the whole dashboard when any of its four fetches fails.
	FailurePolicyAll = "all"
	// FailurePolicyDegrade keeps the sections that loaded and reports the ones that did not.
	FailurePolicyDegrade = "degrade"
)

// Config represents the complete client configuration
type Config struct {
	API       APIConfig       `yaml:"api"`
	Session   SessionConfig   `yaml:"session"`
	Events    EventsConfig    `yaml:"events"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// APIConfig configures the REST API gateway
type APIConfig struct {
	// BaseURL is the API root (default: http://localhost:8001)
	BaseURL string `yaml:"base_url"`
	// Timeout bounds ordinary calls
	Timeout time.Duration `yaml:"timeout"`
	// UploadTimeout bounds multipart file uploads
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	// RAGTimeout bounds a research run
	RAGTimeout time.Duration `yaml:"rag_timeout"`
	// RAGSessionTimeout bounds research session creation
	RAGSessionTimeout time.Duration `yaml:"rag_session_timeout"`
}

// SessionConfig configures where the session is persisted
type SessionConfig struct {
	// Path is the session file (default: ~/.config/maneger/session.json)
	Path string `yaml:"path"`
}

// EventsConfig configures publication of membership events
type EventsConfig struct {
	// NATSURL is the NATS server URL (empty = events disabled)
	NATSURL string `yaml:"nats_url"`
	// SubjectPrefix prefixes every published subject
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DashboardConfig configures the overview aggregation
type DashboardConfig struct {
	// FailurePolicy is "all" or "degrade"
	FailurePolicy string `yaml:"failure_policy"`
	// UpcomingLimit caps the upcoming milestone list
	UpcomingLimit int `yaml:"upcoming_limit"`
	// OverdueLimit caps the overdue tasks shown
	OverdueLimit int `yaml:"overdue_limit"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "http://localhost:8001",
			Timeout:           30 * time.Second,
			UploadTimeout:     120 * time.Second,
			RAGTimeout:        120 * time.Second,
			RAGSessionTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			Path: defaultSessionPath(),
		},
		Events: EventsConfig{
			NATSURL:       "",
			SubjectPrefix: "maneger",
		},
		Dashboard: DashboardConfig{
			FailurePolicy: FailurePolicyAll,
			UpcomingLimit: 5,
			OverdueLimit:  8,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL: %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 || c.API.UploadTimeout <= 0 || c.API.RAGTimeout <= 0 || c.API.RAGSessionTimeout <= 0 {
		return fmt.Errorf("api timeouts must be positive")
	}
	if c.Session.Path == "" {
		return fmt.Errorf("session.path is required")
	}
	switch c.Dashboard.FailurePolicy {
	case FailurePolicyAll, FailurePolicyDegrade:
	default:
		return fmt.Errorf("dashboard.failure_policy must be %q or %q", FailurePolicyAll, FailurePolicyDegrade)
	}
	if c.Dashboard.UpcomingLimit < 1 {
		return fmt.Errorf("dashboard.upcoming_limit must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// API
	if other.API.BaseURL != "" {
		c.API.BaseURL = other.API.BaseURL
	}
	if other.API.Timeout != 0 {
		c.API.Timeout = other.API.Timeout
	}
	if other.API.UploadTimeout != 0 {
		c.API.UploadTimeout = other.API.UploadTimeout
	}
	if other.API.RAGTimeout != 0 {
		c.API.RAGTimeout = other.API.RAGTimeout
	}
	if other.API.RAGSessionTimeout != 0 {
		c.API.RAGSessionTimeout = other.API.RAGSessionTimeout
	}

	// Session
	if other.Session.Path != "" {
		c.Session.Path = other.Session.Path
	}

	// Events
	if other.Events.NATSURL != "" {
		c.Events.NATSURL = other.Events.NATSURL
	}
	if other.Events.SubjectPrefix != "" {
		c.Events.SubjectPrefix = other.Events.SubjectPrefix
	}

	// Dashboard
	if other.Dashboard.FailurePolicy != "" {
		c.Dashboard.FailurePolicy = other.Dashboard.FailurePolicy
	}
	if other.Dashboard.UpcomingLimit != 0 {
		c.Dashboard.UpcomingLimit = other.Dashboard.UpcomingLimit
	}
	if other.Dashboard.OverdueLimit != 0 {
		c.Dashboard.OverdueLimit = other.Dashboard.OverdueLimit
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return SessionFile
	}
	return filepath.Join(home, UserConfigDir, SessionFile)
}
