// Package events provides the per-request event bus that carries progress
// events from every pipeline stage to exactly one subscriber, plus the
// WebSocket delivery layer.
//
// Event lifecycle per request:
//
//	(heartbeat, running)          at request entry, repeated on an interval
//	                              until the first stage event appears
//	(classify, running|complete)  ... one pair per stage, in pipeline order
//	(debate:turnN, streaming)     one per debate turn
//	(debate:final_synthesis, complete)
//	(done, complete)              the unique terminal event; ends subscription
//
// The terminal event is part of the contract: the producer side emits it even
// under internal failure. Only a cancelled request terminates with
// (done, error) instead.
package events

import (
	"fmt"
	"strconv"
	"strings"
)

// Stage tags form a closed set (see the wire contract).
const (
	StageHeartbeat      = "heartbeat"
	StageClassify       = "classify"
	StagePrefetch       = "prefetch"
	StageRAG            = "rag"
	StageAgentSelection = "agent_selection"
	StageAgents         = "agents"
	StageDebate         = "debate"
	StageDebateFinal    = "debate:final_synthesis"
	StageCritique       = "critique"
	StageVerify         = "verify"
	StageSynthesize     = "synthesize"
	StageDone           = "done"
)

// AgentStage returns the per-agent stage tag ("agent:<agent-id>").
func AgentStage(agentID string) string {
	return "agent:" + agentID
}

// DebateTurnStage returns the per-turn stage tag ("debate:turn<N>").
func DebateTurnStage(n int) string {
	return "debate:turn" + strconv.Itoa(n)
}

// IsDebateTurnStage reports whether a stage tag is a per-turn debate tag.
func IsDebateTurnStage(stage string) bool {
	rest, ok := strings.CutPrefix(stage, "debate:turn")
	if !ok {
		return false
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

// Status values for the wire envelope.
type Status string

const (
	StatusRunning   Status = "running"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// IsTerminalStatus reports whether a status ends its stage (complete or error).
func IsTerminalStatus(s Status) bool {
	return s == StatusComplete || s == StatusError
}

// RequestChannel returns the delivery channel name for a request's events.
// Format: "request:{request_id}"
func RequestChannel(requestID string) string {
	return fmt.Sprintf("request:%s", requestID)
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"` // e.g. "request:abc-123"
}
