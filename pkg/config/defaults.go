package config

import "time"

// Defaults contains system-wide default configurations. These values apply
// when specific components don't specify their own.
type Defaults struct {
	// Cap on parallel external data fetches in the prefetch stage.
	MaxPrefetchConcurrency int `yaml:"max_prefetch_concurrency,omitempty" validate:"omitempty,min=1"`

	// Per-source fetch timeout in the prefetch stage.
	PerSourceTimeout time.Duration `yaml:"per_source_timeout,omitempty"`

	// Per-agent invocation deadline.
	PerAgentTimeout time.Duration `yaml:"per_agent_timeout,omitempty"`

	// Minimum classifier confidence before downgrading to intent=generic.
	MinClassifierConfidence float64 `yaml:"min_classifier_confidence,omitempty"`

	// Retrieval: max snippets and similarity floor.
	RetrievalK     int     `yaml:"retrieval_k,omitempty"`
	RetrievalFloor float64 `yaml:"retrieval_floor,omitempty"`

	// Semantic clustering threshold on [0,1]-normalized cosine.
	ClusteringThreshold float64 `yaml:"clustering_threshold,omitempty"`

	// Jaccard threshold for the lexical clustering fallback.
	LexicalFallbackThreshold float64 `yaml:"lexical_fallback_threshold,omitempty"`

	// Contradiction detector relative tolerance.
	ContradictionTolerance float64 `yaml:"contradiction_tolerance,omitempty"`

	// Low-confidence surfacing threshold for the synthesizer.
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold,omitempty"`

	// Heartbeat interval while no stage event has been emitted.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval,omitempty"`

	// Warm the embedder at process startup.
	EmbedderWarmOnStart *bool `yaml:"embedder_warm_on_start,omitempty"`

	// Fallback freshness horizon in months for intents with no explicit entry.
	DefaultFreshnessMonths int `yaml:"default_freshness_months,omitempty"`

	// Reserved: scenario analysis fan-out after the debate stage.
	ScenarioAnalysisEnabled bool `yaml:"scenario_analysis_enabled,omitempty"`
}

// Built-in default values, applied when the YAML omits a field.
const (
	DefaultMaxPrefetchConcurrency   = 8
	DefaultPerSourceTimeout         = 10 * time.Second
	DefaultPerAgentTimeout          = 120 * time.Second
	DefaultMinClassifierConfidence  = 0.55
	DefaultRetrievalK               = 20
	DefaultRetrievalFloor           = 0.35
	DefaultClusteringThreshold      = 0.65
	DefaultLexicalFallbackThreshold = 0.40
	DefaultContradictionTolerance   = 0.10
	DefaultLowConfidenceThreshold   = 0.60
	DefaultHeartbeatInterval        = 15 * time.Second
	DefaultFreshnessMonths          = 24
	DefaultRequestCeiling           = 60 * time.Minute
	DefaultHTTPPort                 = "8080"
)

// builtinDefaults returns a fully populated Defaults used as the merge base.
func builtinDefaults() *Defaults {
	warm := true
	return &Defaults{
		MaxPrefetchConcurrency:   DefaultMaxPrefetchConcurrency,
		PerSourceTimeout:         DefaultPerSourceTimeout,
		PerAgentTimeout:          DefaultPerAgentTimeout,
		MinClassifierConfidence:  DefaultMinClassifierConfidence,
		RetrievalK:               DefaultRetrievalK,
		RetrievalFloor:           DefaultRetrievalFloor,
		ClusteringThreshold:      DefaultClusteringThreshold,
		LexicalFallbackThreshold: DefaultLexicalFallbackThreshold,
		ContradictionTolerance:   DefaultContradictionTolerance,
		LowConfidenceThreshold:   DefaultLowConfidenceThreshold,
		HeartbeatInterval:        DefaultHeartbeatInterval,
		EmbedderWarmOnStart:      &warm,
		DefaultFreshnessMonths:   DefaultFreshnessMonths,
	}
}

// WarmEmbedder reports whether the embedder should be warmed at startup.
func (d *Defaults) WarmEmbedder() bool {
	return d.EmbedderWarmOnStart == nil || *d.EmbedderWarmOnStart
}
