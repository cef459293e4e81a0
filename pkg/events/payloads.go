package events

import (
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Envelope is the wire form of a single event:
//
//	{ stage, status, payload, latency_ms?, timestamp }
//
// Payload is one of the typed payload variants below; the closed set replaces
// the untyped per-stage dictionaries of earlier designs. Envelopes are
// read-only once enqueued.
type Envelope struct {
	Stage     string `json:"stage"`
	Status    Status `json:"status"`
	Payload   any    `json:"payload"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Timestamp string `json:"timestamp"` // ISO-8601 UTC (RFC3339Nano)
}

// newEnvelope stamps an envelope with the current UTC time.
func newEnvelope(stage string, status Status, payload any, latency time.Duration) Envelope {
	return Envelope{
		Stage:     stage,
		Status:    status,
		Payload:   payload,
		LatencyMS: latency.Milliseconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// HeartbeatPayload is emitted at request entry and on an interval while no
// stage event has been produced, so the subscriber can detect stalls.
type HeartbeatPayload struct {
	RequestID string `json:"request_id"`
	Seq       int    `json:"seq"`
}

// ClassifyPayload carries the classification result.
type ClassifyPayload struct {
	Intent     models.Intent     `json:"intent"`
	Complexity models.Complexity `json:"complexity"`
	Confidence float64           `json:"confidence"`
	Entities   map[string][]string `json:"entities,omitempty"`
	Routing    models.Routing    `json:"routing"`
}

// PrefetchPayload carries prefetch progress and results. FailedSources is
// populated on the running event after partial failures (non-fatal).
type PrefetchPayload struct {
	FactCount     int      `json:"fact_count"`
	Sources       []string `json:"sources,omitempty"`
	FailedSources []string `json:"failed_sources,omitempty"`
}

// RetrievalPayload carries retrieval provenance.
type RetrievalPayload struct {
	SnippetCount int      `json:"snippet_count"`
	SourceIDs    []string `json:"source_ids,omitempty"`
	Degraded     string   `json:"degraded,omitempty"`
}

// AgentSelectionPayload lists the canonical ids of the selected agents.
type AgentSelectionPayload struct {
	Agents []string `json:"agents"`
}

// AgentPayload carries one agent's completion status.
type AgentPayload struct {
	AgentID    string  `json:"agent_id"`
	Confidence float64 `json:"confidence"`
	Empty      bool    `json:"empty,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// AgentsPayload summarizes the invocation stage.
type AgentsPayload struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Empty     int `json:"empty"`
}

// DebatePhasePayload marks a phase boundary in the debate.
type DebatePhasePayload struct {
	Phase      models.DebatePhase `json:"phase"`
	TurnsSoFar int                `json:"turns_so_far"`
}

// DebateTurnPayload carries a single debate turn.
type DebateTurnPayload struct {
	Turn    int                `json:"turn"`
	Phase   models.DebatePhase `json:"phase"`
	Speaker string             `json:"speaker"`
	Excerpt string             `json:"excerpt,omitempty"`
	Failed  bool               `json:"failed,omitempty"`
}

// DebateSynthesisPayload carries the debate-level synthesis.
type DebateSynthesisPayload struct {
	Consensus      string                  `json:"consensus"`
	Turns          int                     `json:"turns"`
	Contradictions int                     `json:"contradictions"`
	Reason         models.CompletionReason `json:"completion_reason"`
}

// CritiquePayload summarizes the devil's-advocate pass.
type CritiquePayload struct {
	Items      int    `json:"items"`
	Assessment string `json:"assessment,omitempty"`
}

// VerifyPayload carries the verifier's per-category counts.
type VerifyPayload struct {
	UncitedClaims     int `json:"uncited_claims"`
	FabricatedNumbers int `json:"fabricated_numbers"`
	StaleClaims       int `json:"stale_claims"`
}

// SynthesizePayload carries the final briefing summary.
type SynthesizePayload struct {
	Confidence      float64  `json:"confidence"`
	Clusters        int      `json:"clusters"`
	Warnings        []string `json:"warnings,omitempty"`
	LexicalFallback bool     `json:"lexical_fallback,omitempty"`
}

// DonePayload is the terminal payload. On degraded completion ErrorKind and
// Message annotate what went wrong while still reporting status=complete; on
// cancellation the envelope carries status=error with Reason="cancelled".
type DonePayload struct {
	RequestID string `json:"request_id"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Degraded  []string `json:"degraded,omitempty"`
}

// StageErrorPayload annotates a stage-level error event; the pipeline
// continues to the next stage with the offending output marked absent.
type StageErrorPayload struct {
	Error string `json:"error"`
	Keys  []string `json:"state_keys,omitempty"`
}
