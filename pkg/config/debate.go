package config

import (
	"fmt"

	"github.com/conclave-ai/conclave/pkg/models"
)

// DebateProfile is the adaptive budget triple keyed by complexity tag.
// Termination inside the debate is purely by turn counting and detectors;
// there is no wall-clock timeout in the orchestrator.
type DebateProfile struct {
	MaxTurns             int     `yaml:"max_turns"`
	PhaseTurnCap         int     `yaml:"phase_turn_cap"`
	ConvergenceThreshold float64 `yaml:"convergence_threshold"`
}

// builtinDebateProfiles is the three-row table of the reference deployment.
func builtinDebateProfiles() map[models.Complexity]DebateProfile {
	return map[models.Complexity]DebateProfile{
		models.ComplexitySimple:   {MaxTurns: 15, PhaseTurnCap: 4, ConvergenceThreshold: 0.80},
		models.ComplexityStandard: {MaxTurns: 40, PhaseTurnCap: 10, ConvergenceThreshold: 0.75},
		models.ComplexityComplex:  {MaxTurns: 125, PhaseTurnCap: 30, ConvergenceThreshold: 0.70},
	}
}

// Validate checks a profile for sane bounds.
func (p DebateProfile) Validate() error {
	if p.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", p.MaxTurns)
	}
	if p.PhaseTurnCap <= 0 || p.PhaseTurnCap > p.MaxTurns {
		return fmt.Errorf("phase_turn_cap must be in (0, max_turns], got %d", p.PhaseTurnCap)
	}
	if p.ConvergenceThreshold <= 0 || p.ConvergenceThreshold > 1 {
		return fmt.Errorf("convergence_threshold must be in (0,1], got %g", p.ConvergenceThreshold)
	}
	return nil
}

// builtinMetaDebateVocabulary is the canonical meta-phrase list. A turn that
// contains two or more of these counts as meta-flagged for the meta-debate
// detector's sliding window.
func builtinMetaDebateVocabulary() []string {
	return []string{
		"framework",
		"analytical approach",
		"epistemically",
		"epistemic",
		"performative contradiction",
		"methodological",
		"methodologically",
		"ontological",
		"paradigm",
		"meta-level",
		"first principles",
		"category error",
		"semantic distinction",
		"definitional",
		"framing of the question",
		"the nature of the debate",
		"mode of analysis",
		"hermeneutic",
		"dialectical",
		"axiomatically",
		"conceptual scaffolding",
		"terms of reference",
		"levels of abstraction",
	}
}

// builtinFreshnessHorizons maps intent tags to freshness horizons in months.
func builtinFreshnessHorizons() map[models.Intent]int {
	return map[models.Intent]int{
		models.IntentPolicy:     24, // macroeconomic
		models.IntentTrend:      12, // labor
		models.IntentComparison: 24,
		models.IntentForecast:   12,
		models.IntentDiagnostic: 3, // news
	}
}
