package models

import "time"

// DebatePhase tags a turn with the phase that produced it.
type DebatePhase string

const (
	PhaseOpening          DebatePhase = "opening"
	PhaseCrossExamination DebatePhase = "cross_examination"
	PhaseEdgeCases        DebatePhase = "edge_cases"
	PhaseRiskAnalysis     DebatePhase = "risk_analysis"
	PhaseConsensus        DebatePhase = "consensus"
	PhaseSynthesis        DebatePhase = "synthesis"
)

// DebatePhases lists the phases in strict execution order.
var DebatePhases = []DebatePhase{
	PhaseOpening,
	PhaseCrossExamination,
	PhaseEdgeCases,
	PhaseRiskAnalysis,
	PhaseConsensus,
	PhaseSynthesis,
}

// ModeratorSpeaker is the speaker id used for moderator-injected turns
// (refocus prompts, edge-case probes, the final synthesis utterance).
const ModeratorSpeaker = "moderator"

// DebateTurn is one utterance in the debate. Turns are append-only and carry
// a monotonically increasing index.
type DebateTurn struct {
	Index      int         `json:"index"`
	Phase      DebatePhase `json:"phase"`
	Speaker    string      `json:"speaker"`
	Utterance  string      `json:"utterance"`
	References []int       `json:"references,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ContradictionSeverity buckets the relative difference between two values.
type ContradictionSeverity string

const (
	SeverityLow    ContradictionSeverity = "low"
	SeverityMedium ContradictionSeverity = "medium"
	SeverityHigh   ContradictionSeverity = "high"
)

// ContradictionSide is one agent's position on a contested metric.
type ContradictionSide struct {
	AgentID    string   `json:"agent_id"`
	Value      float64  `json:"value"`
	Citation   *Citation `json:"citation,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Contradiction records two agents disagreeing on the same named metric
// beyond a numeric tolerance.
type Contradiction struct {
	Metric   string                `json:"metric"`
	First    ContradictionSide     `json:"first"`
	Second   ContradictionSide     `json:"second"`
	Severity ContradictionSeverity `json:"severity"`
}

// ResolutionKind classifies a moderator's resolution of a contradiction.
type ResolutionKind string

const (
	ResolutionFirstCorrect  ResolutionKind = "agent1-correct"
	ResolutionSecondCorrect ResolutionKind = "agent2-correct"
	ResolutionBothValid     ResolutionKind = "both-valid"
	ResolutionNeitherValid  ResolutionKind = "neither-valid"
)

// ResolutionAction is the downstream handling decision for a resolution.
type ResolutionAction string

const (
	ActionUseFirst      ResolutionAction = "use-agent1"
	ActionUseSecond     ResolutionAction = "use-agent2"
	ActionUseBoth       ResolutionAction = "use-both"
	ActionFlagForReview ResolutionAction = "flag-for-review"
)

// Resolution is the moderator's proposed settlement of one contradiction.
type Resolution struct {
	Kind             ResolutionKind   `json:"kind"`
	Explanation      string           `json:"explanation"`
	RecommendedValue *float64         `json:"recommended_value,omitempty"`
	RecommendedCite  *Citation        `json:"recommended_citation,omitempty"`
	Confidence       float64          `json:"confidence"`
	Action           ResolutionAction `json:"action"`
}

// CompletionReason explains why the debate terminated.
type CompletionReason string

const (
	CompletionBudgetExhausted      CompletionReason = "budget-exhausted"
	CompletionConverged            CompletionReason = "converged"
	CompletionSubstantive          CompletionReason = "substantively-complete"
	CompletionRefocusedConverged   CompletionReason = "refocused-and-converged"
	CompletionError                CompletionReason = "error"
)

// DebateResults is the debate orchestrator output.
type DebateResults struct {
	Contradictions  []Contradiction          `json:"contradictions,omitempty"`
	Resolutions     []Resolution             `json:"resolutions,omitempty"`
	Consensus       string                   `json:"consensus"`
	Turns           []DebateTurn             `json:"turns"`
	PhasesCompleted map[DebatePhase]bool     `json:"phases_completed"`
	Reason          CompletionReason         `json:"completion_reason"`
	DataQuality     []DataQualityWarning     `json:"data_quality,omitempty"`
	RefocusInjected bool                     `json:"refocus_injected,omitempty"`
}

// DataQualityWarning flags an out-of-range metric value in an agent report.
type DataQualityWarning struct {
	AgentID string  `json:"agent_id"`
	Metric  string  `json:"metric"`
	Value   float64 `json:"value"`
	Reason  string  `json:"reason"`
}
