// Package config loads and validates the engine configuration from
// conclave.yaml plus environment variables.
package config

import (
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Config is the umbrella configuration object returned by Initialize() and
// used throughout the application.
type Config struct {
	configDir string

	// System-wide defaults and tunables
	Defaults *Defaults

	// Debate complexity profiles keyed by complexity tag
	DebateProfiles map[models.Complexity]DebateProfile

	// Meta-debate phrase vocabulary (>= 21 canonical phrases)
	MetaDebateVocabulary []string

	// Verifier freshness horizons keyed by intent tag (months)
	FreshnessHorizons map[models.Intent]int

	// Prefetch source configurations keyed by connector id
	Sources map[string]SourceConfig

	// Server holds transport-layer settings (outside the core pipeline)
	Server *ServerConfig
}

// SourceConfig describes one external data source connector.
type SourceConfig struct {
	// Kind selects the connector implementation: "indicator_store" (pgx) or "http".
	Kind string `yaml:"kind"`
	// DSN for indicator_store connectors ({{.VAR}} expanded).
	DSN string `yaml:"dsn,omitempty"`
	// URL for http connectors.
	URL string `yaml:"url,omitempty"`
	// Timeout per fetch; falls back to Defaults.PerSourceTimeout when zero.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ServerConfig holds transport-layer settings. The wall-clock ceiling lives
// here deliberately: the core pipeline is unbounded by design.
type ServerConfig struct {
	HTTPPort         string        `yaml:"http_port"`
	RequestCeiling   time.Duration `yaml:"request_ceiling"`
	AllowedWSOrigins []string      `yaml:"allowed_ws_origins,omitempty"`
}

// Stats contains statistics about loaded configuration for startup logging.
type Stats struct {
	Sources           int
	DebateProfiles    int
	MetaPhrases       int
	FreshnessHorizons int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() Stats {
	return Stats{
		Sources:           len(c.Sources),
		DebateProfiles:    len(c.DebateProfiles),
		MetaPhrases:       len(c.MetaDebateVocabulary),
		FreshnessHorizons: len(c.FreshnessHorizons),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Profile returns the debate profile for a complexity tag, falling back to
// the standard profile for unknown tags.
func (c *Config) Profile(complexity models.Complexity) DebateProfile {
	if p, ok := c.DebateProfiles[complexity]; ok {
		return p
	}
	return c.DebateProfiles[models.ComplexityStandard]
}

// FreshnessHorizon returns the freshness horizon in months for an intent,
// or the default horizon when the intent has no explicit entry.
func (c *Config) FreshnessHorizon(intent models.Intent) int {
	if m, ok := c.FreshnessHorizons[intent]; ok {
		return m
	}
	return c.Defaults.DefaultFreshnessMonths
}
