package models

// Intent is the classified question intent.
type Intent string

const (
	IntentPolicy     Intent = "policy"
	IntentComparison Intent = "comparison"
	IntentTrend      Intent = "trend"
	IntentForecast   Intent = "forecast"
	IntentDiagnostic Intent = "diagnostic"
	// IntentGeneric is the downgrade target when classifier confidence falls
	// below the minimum threshold.
	IntentGeneric Intent = "generic"
)

// IsValid checks if the intent is a recognized tag.
func (i Intent) IsValid() bool {
	switch i {
	case IntentPolicy, IntentComparison, IntentTrend, IntentForecast, IntentDiagnostic, IntentGeneric:
		return true
	default:
		return false
	}
}

// Complexity is the classified question complexity.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityStandard Complexity = "standard"
	ComplexityComplex  Complexity = "complex"
)

// IsValid checks if the complexity is one of the three tags.
func (c Complexity) IsValid() bool {
	return c == ComplexitySimple || c == ComplexityStandard || c == ComplexityComplex
}

// rank orders complexities for max() comparisons in the classifier.
func (c Complexity) rank() int {
	switch c {
	case ComplexityStandard:
		return 1
	case ComplexityComplex:
		return 2
	default:
		return 0
	}
}

// Max returns the higher of two complexity tags.
func (c Complexity) Max(other Complexity) Complexity {
	if other.rank() > c.rank() {
		return other
	}
	return c
}

// Routing selects between the short deterministic path and the full
// analytical path after classification.
type Routing string

const (
	RoutingDeterministic Routing = "deterministic-only"
	RoutingLLMAgents     Routing = "llm-agents"
)

// Entity kinds recognized by the classifier.
const (
	EntityKindSector     = "sector"
	EntityKindCountry    = "country"
	EntityKindMetric     = "metric"
	EntityKindTimeWindow = "time-window"
)

// Classification is the classifier's structured interpretation of the question.
type Classification struct {
	Intent     Intent              `json:"intent"`
	Complexity Complexity          `json:"complexity"`
	Confidence float64             `json:"confidence"`
	Entities   map[string][]string `json:"entities,omitempty"`
	Routing    Routing             `json:"routing"`
}

// EntityValues returns the normalized values for an entity kind (nil-safe).
func (c *Classification) EntityValues(kind string) []string {
	if c == nil || c.Entities == nil {
		return nil
	}
	return c.Entities[kind]
}
