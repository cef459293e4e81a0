package models

// AnalysisState is the single record threaded through the pipeline. It is
// monotonically augmented: each stage reads prior fields and writes its own;
// no stage deletes or rewrites another's output. The workflow driver is the
// sole writer — stages receive a read-only snapshot and return their output
// for the driver to attach.
type AnalysisState struct {
	Query          Query             `json:"query"`
	Classification *Classification   `json:"classification,omitempty"`
	Prefetch       *PrefetchResult   `json:"prefetch,omitempty"`
	Retrieval      *RetrievalContext `json:"retrieval,omitempty"`
	SelectedAgents []string          `json:"selected_agents,omitempty"`
	Reports        []AgentReport     `json:"reports,omitempty"`
	Debate         *DebateResults    `json:"debate,omitempty"`
	Critique       *CritiqueResults  `json:"critique,omitempty"`
	Verification   *Verification     `json:"verification,omitempty"`
	Synthesis      *Synthesis        `json:"synthesis,omitempty"`

	// DegradedStages accumulates stage names whose output is absent or
	// partial. The synthesizer enumerates them in the final briefing.
	DegradedStages []string `json:"degraded_stages,omitempty"`
}

// Keys returns the names of the populated state fields, in pipeline order.
// The driver logs this keyset at stage boundaries for observability.
func (s *AnalysisState) Keys() []string {
	keys := []string{"query"}
	if s.Classification != nil {
		keys = append(keys, "classification")
	}
	if s.Prefetch != nil {
		keys = append(keys, "prefetch")
	}
	if s.Retrieval != nil {
		keys = append(keys, "retrieval")
	}
	if len(s.SelectedAgents) > 0 {
		keys = append(keys, "selected_agents")
	}
	if len(s.Reports) > 0 {
		keys = append(keys, "reports")
	}
	if s.Debate != nil {
		keys = append(keys, "debate")
	}
	if s.Critique != nil {
		keys = append(keys, "critique")
	}
	if s.Verification != nil {
		keys = append(keys, "verification")
	}
	if s.Synthesis != nil {
		keys = append(keys, "synthesis")
	}
	return keys
}

// ReportByAgent returns the report for a canonical agent id, or nil.
func (s *AnalysisState) ReportByAgent(canonicalID string) *AgentReport {
	for i := range s.Reports {
		if s.Reports[i].AgentID == canonicalID {
			return &s.Reports[i]
		}
	}
	return nil
}

// MarkDegraded records a stage as degraded (idempotent per stage).
func (s *AnalysisState) MarkDegraded(stage string) {
	for _, d := range s.DegradedStages {
		if d == stage {
			return
		}
	}
	s.DegradedStages = append(s.DegradedStages, stage)
}
