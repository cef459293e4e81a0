package models

// Citation ties quoted text to its source.
type Citation struct {
	Quote    string `json:"quote"`
	SourceID string `json:"source_id"`
	QueryID  string `json:"query_id,omitempty"`
}

// Finding is a single analytical finding within an AgentReport.
type Finding struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Warnings   []string `json:"warnings,omitempty"`
}

// AgentReport is one agent's analysis output. AgentID is always the
// canonical lowercase form. Every quantitative claim in the narrative must be
// backed by a citation or a PrefetchFact; the verifier flags the rest.
type AgentReport struct {
	AgentID        string            `json:"agent_id"`
	Narrative      string            `json:"narrative"`
	Confidence     float64           `json:"confidence"`
	Findings       []Finding         `json:"findings,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	Citations      []Citation        `json:"citations,omitempty"`
	Recommendation string            `json:"recommendation,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// EmptyReport builds the placeholder report used when an agent times out or
// fails: "no result" narrative, zero confidence, one warning.
func EmptyReport(agentID, warning string) AgentReport {
	return AgentReport{
		AgentID:    CanonicalAgentID(agentID),
		Narrative:  "no result",
		Confidence: 0,
		Warnings:   []string{warning},
	}
}

// IsEmpty reports whether the report is a timeout/failure placeholder.
func (r *AgentReport) IsEmpty() bool {
	return r.Narrative == "no result" && r.Confidence == 0
}

// CritiqueItem is one weakness surfaced by the devil's-advocate pass.
type CritiqueItem struct {
	AgentID         string  `json:"agent_id"`
	Weakness        string  `json:"weakness"`
	CounterArgument string  `json:"counter_argument"`
	Severity        string  `json:"severity"`
	Robustness      float64 `json:"robustness"`
}

// CritiqueResults is the critique stage output.
type CritiqueResults struct {
	Items      []CritiqueItem `json:"items,omitempty"`
	Assessment string         `json:"assessment,omitempty"`
}
