package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/conclave-ai/conclave/pkg/models"
)

// fileConfig represents the complete conclave.yaml file structure.
// Durations are strings ("10s", "60m") parsed with time.ParseDuration.
type fileConfig struct {
	Defaults          *defaultsYAML            `yaml:"defaults"`
	DebateProfiles    map[string]DebateProfile `yaml:"debate_complexity_profiles"`
	MetaVocabulary    []string                 `yaml:"meta_debate_vocabulary"`
	FreshnessHorizons map[string]int           `yaml:"verifier_freshness_horizons"`
	Sources           map[string]sourceYAML    `yaml:"sources"`
	Server            *serverYAML              `yaml:"server"`
}

type defaultsYAML struct {
	MaxPrefetchConcurrency   int     `yaml:"max_prefetch_concurrency,omitempty"`
	PerSourceTimeout         string  `yaml:"per_source_timeout,omitempty"`
	PerAgentTimeoutMS        int     `yaml:"per_agent_timeout_ms,omitempty"`
	MinClassifierConfidence  float64 `yaml:"min_classifier_confidence,omitempty"`
	RetrievalK               int     `yaml:"retrieval_k,omitempty"`
	RetrievalFloor           float64 `yaml:"retrieval_floor,omitempty"`
	ClusteringThreshold      float64 `yaml:"clustering_threshold,omitempty"`
	LexicalFallbackThreshold float64 `yaml:"lexical_fallback_threshold,omitempty"`
	ContradictionTolerance   float64 `yaml:"contradiction_tolerance,omitempty"`
	LowConfidenceThreshold   float64 `yaml:"low_confidence_threshold,omitempty"`
	HeartbeatIntervalMS      int     `yaml:"heartbeat_interval_ms,omitempty"`
	EmbedderWarmOnStart      *bool   `yaml:"embedder_warm_on_start,omitempty"`
	DefaultFreshnessMonths   int     `yaml:"default_freshness_months,omitempty"`
	ScenarioAnalysisEnabled  bool    `yaml:"scenario_analysis_enabled,omitempty"`
}

type sourceYAML struct {
	Kind    string `yaml:"kind"`
	DSN     string `yaml:"dsn,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

type serverYAML struct {
	HTTPPort         string   `yaml:"http_port,omitempty"`
	RequestCeiling   string   `yaml:"request_ceiling,omitempty"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins,omitempty"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// Missing conclave.yaml is not an error: built-in defaults apply, and the
// source registry is empty (prefetch completes with no sources per intent).
func Initialize(configDir string) (*Config, error) {
	cfg := &Config{
		configDir:            configDir,
		Defaults:             builtinDefaults(),
		DebateProfiles:       builtinDebateProfiles(),
		MetaDebateVocabulary: builtinMetaDebateVocabulary(),
		FreshnessHorizons:    builtinFreshnessHorizons(),
		Sources:              map[string]SourceConfig{},
		Server: &ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			RequestCeiling: DefaultRequestCeiling,
		},
	}

	path := filepath.Join(configDir, "conclave.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("No conclave.yaml found, using built-in defaults", "path", path)
		return cfg, cfg.validate()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(ExpandEnv(data), &fc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.apply(&fc); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

// apply merges file values over built-in defaults.
func (c *Config) apply(fc *fileConfig) error {
	if fc.Defaults != nil {
		parsed, err := fc.Defaults.toDefaults()
		if err != nil {
			return err
		}
		// Fill unset (zero) fields from builtins; file values win.
		if err := mergo.Merge(parsed, builtinDefaults()); err != nil {
			return fmt.Errorf("failed to merge defaults: %w", err)
		}
		c.Defaults = parsed
	}

	for tag, profile := range fc.DebateProfiles {
		complexity := models.Complexity(tag)
		if !complexity.IsValid() {
			return fmt.Errorf("debate profile for unknown complexity %q", tag)
		}
		c.DebateProfiles[complexity] = profile
	}

	if len(fc.MetaVocabulary) > 0 {
		c.MetaDebateVocabulary = fc.MetaVocabulary
	}

	for tag, months := range fc.FreshnessHorizons {
		intent := models.Intent(tag)
		if !intent.IsValid() {
			return fmt.Errorf("freshness horizon for unknown intent %q", tag)
		}
		if months <= 0 {
			return fmt.Errorf("freshness horizon for %q must be positive, got %d", tag, months)
		}
		c.FreshnessHorizons[intent] = months
	}

	for id, src := range fc.Sources {
		parsed, err := src.toSourceConfig()
		if err != nil {
			return fmt.Errorf("source %q: %w", id, err)
		}
		c.Sources[id] = parsed
	}

	if fc.Server != nil {
		if fc.Server.HTTPPort != "" {
			c.Server.HTTPPort = fc.Server.HTTPPort
		}
		if fc.Server.RequestCeiling != "" {
			d, err := time.ParseDuration(fc.Server.RequestCeiling)
			if err != nil {
				return fmt.Errorf("invalid request_ceiling: %w", err)
			}
			c.Server.RequestCeiling = d
		}
		c.Server.AllowedWSOrigins = fc.Server.AllowedWSOrigins
	}

	return nil
}

func (d *defaultsYAML) toDefaults() (*Defaults, error) {
	out := &Defaults{
		MaxPrefetchConcurrency:   d.MaxPrefetchConcurrency,
		MinClassifierConfidence:  d.MinClassifierConfidence,
		RetrievalK:               d.RetrievalK,
		RetrievalFloor:           d.RetrievalFloor,
		ClusteringThreshold:      d.ClusteringThreshold,
		LexicalFallbackThreshold: d.LexicalFallbackThreshold,
		ContradictionTolerance:   d.ContradictionTolerance,
		LowConfidenceThreshold:   d.LowConfidenceThreshold,
		EmbedderWarmOnStart:      d.EmbedderWarmOnStart,
		DefaultFreshnessMonths:   d.DefaultFreshnessMonths,
		ScenarioAnalysisEnabled:  d.ScenarioAnalysisEnabled,
	}
	if d.PerSourceTimeout != "" {
		t, err := time.ParseDuration(d.PerSourceTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid per_source_timeout: %w", err)
		}
		out.PerSourceTimeout = t
	}
	if d.PerAgentTimeoutMS > 0 {
		out.PerAgentTimeout = time.Duration(d.PerAgentTimeoutMS) * time.Millisecond
	}
	if d.HeartbeatIntervalMS > 0 {
		out.HeartbeatInterval = time.Duration(d.HeartbeatIntervalMS) * time.Millisecond
	}
	return out, nil
}

func (s *sourceYAML) toSourceConfig() (SourceConfig, error) {
	out := SourceConfig{Kind: s.Kind, DSN: s.DSN, URL: s.URL}
	switch s.Kind {
	case "indicator_store":
		if s.DSN == "" {
			return out, fmt.Errorf("indicator_store source requires dsn")
		}
	case "http":
		if s.URL == "" {
			return out, fmt.Errorf("http source requires url")
		}
	default:
		return out, fmt.Errorf("unknown source kind %q", s.Kind)
	}
	if s.Timeout != "" {
		t, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return out, fmt.Errorf("invalid timeout: %w", err)
		}
		out.Timeout = t
	}
	return out, nil
}

// validate enforces cross-field invariants after merging.
func (c *Config) validate() error {
	if c.Defaults.MaxPrefetchConcurrency < 1 {
		return fmt.Errorf("max_prefetch_concurrency must be >= 1, got %d", c.Defaults.MaxPrefetchConcurrency)
	}
	if c.Defaults.ClusteringThreshold <= 0 || c.Defaults.ClusteringThreshold > 1 {
		return fmt.Errorf("clustering_threshold must be in (0,1], got %g", c.Defaults.ClusteringThreshold)
	}
	for tag, profile := range c.DebateProfiles {
		if err := profile.Validate(); err != nil {
			return fmt.Errorf("debate profile %q: %w", tag, err)
		}
	}
	if len(c.MetaDebateVocabulary) < 21 {
		return fmt.Errorf("meta_debate_vocabulary requires at least 21 phrases, got %d", len(c.MetaDebateVocabulary))
	}
	return nil
}
