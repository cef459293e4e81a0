package debate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/pkg/config"
	"github.com/conclave-ai/conclave/pkg/events"
	"github.com/conclave-ai/conclave/pkg/models"
)

// scriptedSpeaker produces utterances from a per-phase script.
type scriptedSpeaker struct {
	id     string
	script func(req *TurnRequest) (string, error)
}

func (s *scriptedSpeaker) ID() string { return s.id }

func (s *scriptedSpeaker) Speak(_ context.Context, req *TurnRequest) (string, error) {
	return s.script(req)
}

// recordingPublisher captures emitted envelopes for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	stages []string
	status []events.Status
}

func (p *recordingPublisher) Publish(stage string, status events.Status, _ any, _ time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, stage)
	p.status = append(p.status, status)
}

func (p *recordingPublisher) count(stage string, status events.Status) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := range p.stages {
		if p.stages[i] == stage && p.status[i] == status {
			n++
		}
	}
	return n
}

func profiles() map[models.Complexity]config.DebateProfile {
	return map[models.Complexity]config.DebateProfile{
		models.ComplexitySimple:   {MaxTurns: 15, PhaseTurnCap: 4, ConvergenceThreshold: 0.80},
		models.ComplexityStandard: {MaxTurns: 40, PhaseTurnCap: 10, ConvergenceThreshold: 0.75},
		models.ComplexityComplex:  {MaxTurns: 125, PhaseTurnCap: 30, ConvergenceThreshold: 0.70},
	}
}

func substantiveScript(id string) *scriptedSpeaker {
	n := 0
	return &scriptedSpeaker{id: id, script: func(req *TurnRequest) (string, error) {
		n++
		// Unique, non-agreement, non-meta text every turn.
		return fmt.Sprintf("%s position %d: indicator trajectories diverge across sectors", id, n), nil
	}}
}

func plainReports(ids ...string) []models.AgentReport {
	var out []models.AgentReport
	for _, id := range ids {
		out = append(out, models.AgentReport{AgentID: id, Narrative: "analysis from " + id, Confidence: 0.8})
	}
	return out
}

func classification(c models.Complexity) *models.Classification {
	return &models.Classification{Intent: models.IntentPolicy, Complexity: c, Confidence: 0.8, Routing: models.RoutingLLMAgents}
}

func newOrchestrator(profile config.DebateProfile, pub Publisher) *Orchestrator {
	vocab := []string{"framework", "epistemically", "analytical approach", "paradigm",
		"methodological", "ontological", "meta-level", "first principles"}
	return NewOrchestrator(profile, 0.10, vocab, NewRuleModerator(), pub)
}

func TestOrchestrator_TurnBudgetHolds(t *testing.T) {
	pub := &recordingPublisher{}
	o := newOrchestrator(profiles()[models.ComplexitySimple], pub)
	speakers := []Speaker{
		substantiveScript("alpha"), substantiveScript("beta"),
		substantiveScript("gamma"), substantiveScript("delta"),
	}

	results := o.Run(context.Background(), models.Query{ID: "q1", Text: "question"},
		classification(models.ComplexitySimple), plainReports("alpha", "beta", "gamma", "delta"), speakers)

	assert.LessOrEqual(t, len(results.Turns), 15)
	assert.Equal(t, models.CompletionBudgetExhausted, results.Reason)
	assert.NotEmpty(t, results.Consensus, "synthesis must run even at the turn cap")
	assert.True(t, results.PhasesCompleted[models.PhaseSynthesis])
	assert.Equal(t, 1, pub.count(events.StageDebateFinal, events.StatusComplete))
}

func TestOrchestrator_TurnIndicesMonotonic(t *testing.T) {
	o := newOrchestrator(profiles()[models.ComplexityStandard], nil)
	speakers := []Speaker{substantiveScript("alpha"), substantiveScript("beta")}

	results := o.Run(context.Background(), models.Query{ID: "q1", Text: "question"},
		classification(models.ComplexityStandard), plainReports("alpha", "beta"), speakers)

	last := 0
	for _, turn := range results.Turns {
		assert.Greater(t, turn.Index, last)
		last = turn.Index
	}
}

func TestOrchestrator_MetaDebateRefocus(t *testing.T) {
	pub := &recordingPublisher{}
	o := newOrchestrator(profiles()[models.ComplexityComplex], pub)

	// Eight speakers whose every utterance carries two meta phrases: the
	// window saturates and the detector fires once the debate passes turn 30.
	var speakers []Speaker
	var ids []string
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("agent%d", i)
		ids = append(ids, id)
		n := 0
		speakers = append(speakers, &scriptedSpeaker{id: id, script: func(*TurnRequest) (string, error) {
			n++
			return fmt.Sprintf("turn %d: the framework is epistemically prior to any answer", n), nil
		}})
	}

	results := o.Run(context.Background(), models.Query{ID: "q1", Text: "Discuss epistemic frameworks for analysis"},
		classification(models.ComplexityComplex), plainReports(ids...), speakers)

	assert.True(t, results.RefocusInjected)

	var refocusTurns []models.DebateTurn
	for _, turn := range results.Turns {
		if turn.Speaker == models.ModeratorSpeaker && strings.Contains(turn.Utterance, "original question") {
			refocusTurns = append(refocusTurns, turn)
		}
	}
	require.Len(t, refocusTurns, 1, "exactly one refocus utterance")
	assert.Greater(t, refocusTurns[0].Index, 30)
	assert.Contains(t, refocusTurns[0].Utterance, "original question")
	assert.LessOrEqual(t, len(results.Turns), 125)
}

func TestOrchestrator_SubstantiveCompletionEndsEarly(t *testing.T) {
	o := newOrchestrator(profiles()[models.ComplexityStandard], nil)

	// Agreement-heavy speakers trip the substantive detector during
	// cross-examination; later phases never run.
	agree := func(id string) *scriptedSpeaker {
		return &scriptedSpeaker{id: id, script: func(req *TurnRequest) (string, error) {
			if req.Phase == models.PhaseOpening {
				return id + " opening: the indicators support gradual action", nil
			}
			return "I agree with the prior analysis, consensus is clear", nil
		}}
	}
	speakers := []Speaker{agree("alpha"), agree("beta"), agree("gamma"), agree("delta")}

	results := o.Run(context.Background(), models.Query{ID: "q1", Text: "question"},
		classification(models.ComplexityStandard), plainReports("alpha", "beta", "gamma", "delta"), speakers)

	assert.Equal(t, models.CompletionSubstantive, results.Reason)
	assert.False(t, results.PhasesCompleted[models.PhaseEdgeCases])
	assert.False(t, results.PhasesCompleted[models.PhaseRiskAnalysis])
	assert.True(t, results.PhasesCompleted[models.PhaseSynthesis])
	assert.NotEmpty(t, results.Consensus)
}

func TestOrchestrator_ConvergenceJumpsToSynthesis(t *testing.T) {
	o := newOrchestrator(profiles()[models.ComplexityComplex], nil)

	consensusLine := "the recommendation stands: proceed with phased sector investment"
	conv := func(id string) *scriptedSpeaker {
		n := 0
		return &scriptedSpeaker{id: id, script: func(req *TurnRequest) (string, error) {
			if req.Phase == models.PhaseConsensus {
				return consensusLine, nil
			}
			n++
			return fmt.Sprintf("%s turn %d: sector indicators remain mixed", id, n), nil
		}}
	}
	speakers := []Speaker{conv("alpha"), conv("beta"), conv("gamma"), conv("delta")}

	results := o.Run(context.Background(), models.Query{ID: "q1", Text: "question"},
		classification(models.ComplexityComplex), plainReports("alpha", "beta", "gamma", "delta"), speakers)

	assert.Equal(t, models.CompletionConverged, results.Reason)
	assert.True(t, results.PhasesCompleted[models.PhaseSynthesis])
}

func TestOrchestrator_TurnFailureMovesOn(t *testing.T) {
	pub := &recordingPublisher{}
	o := newOrchestrator(profiles()[models.ComplexitySimple], pub)

	failing := &scriptedSpeaker{id: "broken", script: func(*TurnRequest) (string, error) {
		return "", errors.New("llm timeout")
	}}
	speakers := []Speaker{failing, substantiveScript("steady")}

	results := o.Run(context.Background(), models.Query{ID: "q1", Text: "question"},
		classification(models.ComplexitySimple), plainReports("broken", "steady"), speakers)

	// The phase never aborts: the healthy speaker's turns are recorded.
	recorded := 0
	for _, turn := range results.Turns {
		if turn.Speaker == "steady" {
			recorded++
		}
		assert.NotEqual(t, "broken", turn.Speaker)
	}
	assert.Greater(t, recorded, 0)
	assert.NotEmpty(t, results.Consensus)

	// Failed turns surface as error events on their turn stage.
	errorEvents := 0
	pub.mu.Lock()
	for i := range pub.stages {
		if events.IsDebateTurnStage(pub.stages[i]) && pub.status[i] == events.StatusError {
			errorEvents++
		}
	}
	pub.mu.Unlock()
	assert.Greater(t, errorEvents, 0)
}

func TestOrchestrator_AllReportsEmpty(t *testing.T) {
	o := newOrchestrator(profiles()[models.ComplexitySimple], nil)
	reports := []models.AgentReport{
		models.EmptyReport("alpha", "agent timed out after 2m0s"),
		models.EmptyReport("beta", "agent timed out after 2m0s"),
	}
	speakers := []Speaker{substantiveScript("alpha"), substantiveScript("beta")}

	results := o.Run(context.Background(), models.Query{ID: "q1", Text: "question"},
		classification(models.ComplexitySimple), reports, speakers)

	assert.Contains(t, results.Consensus, "no agent produced a result")
	assert.Empty(t, results.Turns)
	assert.True(t, results.PhasesCompleted[models.PhaseSynthesis])
	assert.False(t, results.PhasesCompleted[models.PhaseOpening])
}

func TestOrchestrator_CancellationStopsTurns(t *testing.T) {
	o := newOrchestrator(profiles()[models.ComplexityComplex], nil)

	ctx, cancel := context.WithCancel(context.Background())
	turnsBeforeCancel := 12
	total := 0
	sp := func(id string) *scriptedSpeaker {
		return &scriptedSpeaker{id: id, script: func(*TurnRequest) (string, error) {
			total++
			if total == turnsBeforeCancel {
				cancel()
			}
			return fmt.Sprintf("%s utterance %d on sector data", id, total), nil
		}}
	}
	speakers := []Speaker{sp("alpha"), sp("beta"), sp("gamma"), sp("delta"),
		sp("epsilon"), sp("zeta"), sp("eta"), sp("theta")}
	ids := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}

	results := o.Run(ctx, models.Query{ID: "q1", Text: "question"},
		classification(models.ComplexityComplex), plainReports(ids...), speakers)

	assert.Equal(t, models.CompletionError, results.Reason)
	assert.LessOrEqual(t, len(results.Turns), turnsBeforeCancel)
}

func TestOrchestrator_DataQualityWarningsFlow(t *testing.T) {
	o := newOrchestrator(profiles()[models.ComplexitySimple], nil)
	reports := []models.AgentReport{
		reportWithMetric("broken", "unemployment_rate", "150", 0.8),
		reportWithMetric("fine", "gdp_growth", "2.4", 0.8),
	}
	speakers := []Speaker{substantiveScript("broken"), substantiveScript("fine")}

	results := o.Run(context.Background(), models.Query{ID: "q1", Text: "question"},
		classification(models.ComplexitySimple), reports, speakers)

	require.Len(t, results.DataQuality, 1)
	assert.Equal(t, "broken", results.DataQuality[0].AgentID)
}

func TestOrchestrator_ContradictionSurfaced(t *testing.T) {
	o := newOrchestrator(profiles()[models.ComplexityStandard], nil)
	reports := []models.AgentReport{
		reportWithMetric("macro", "gdp_growth", "8.0", 0.8),
		reportWithMetric("micro", "gdp_growth", "2.0", 0.75),
	}
	speakers := []Speaker{substantiveScript("macro"), substantiveScript("micro")}

	results := o.Run(context.Background(), models.Query{ID: "q1", Text: "question"},
		classification(models.ComplexityStandard), reports, speakers)

	require.Len(t, results.Contradictions, 1)
	require.Len(t, results.Resolutions, 1)
	assert.Contains(t, results.Consensus, "gdp_growth")
}
