// Package debate drives the multi-round structured debate over the agent
// reports: six strictly ordered phases, contradiction detection and
// resolution, degeneration and completion detectors, and a guaranteed
// debate-level synthesis under every termination path.
package debate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/pkg/config"
	"github.com/conclave-ai/conclave/pkg/events"
	"github.com/conclave-ai/conclave/pkg/models"
)

// excerptLen bounds the utterance excerpt carried on turn events.
const excerptLen = 160

// convergenceStreak is how many consecutive consensus turns must clear the
// similarity threshold before the debate jumps to synthesis.
const convergenceStreak = 2

// TurnRequest is the context a speaker receives for one utterance.
type TurnRequest struct {
	Query models.Query
	Phase models.DebatePhase
	// Prompt carries the moderator's probe for edge-case and risk turns, or
	// the refocus text; empty otherwise.
	Prompt string
	// OwnReport is the speaker's report from the invocation stage.
	OwnReport *models.AgentReport
	// Transcript is a read-only view of the turns so far.
	Transcript []models.DebateTurn
}

// Speaker generates debate utterances for one agent. Implementations wrap
// the agent layer's LLM client and may suspend.
type Speaker interface {
	ID() string
	Speak(ctx context.Context, req *TurnRequest) (string, error)
}

// Moderator supplies the orchestrator's injected content: probes, the refocus
// prompt, and the debate-level synthesis.
type Moderator interface {
	EdgeCasePrompts(classification *models.Classification) []string
	RiskPrompts() []string
	Refocus(query models.Query) string
	Synthesize(ctx context.Context, query models.Query, turns []models.DebateTurn,
		contradictions []models.Contradiction, resolutions []models.Resolution) (string, error)
}

// Publisher is the write-only event handle the orchestrator streams through.
// *events.Bus satisfies it.
type Publisher interface {
	Publish(stage string, status events.Status, payload any, latency time.Duration)
}

// Orchestrator runs one debate per request. Termination is purely by turn
// counting and detectors; there is no wall-clock timeout here.
type Orchestrator struct {
	profile    config.DebateProfile
	tolerance  float64
	vocabulary []string
	moderator  Moderator
	publisher  Publisher
}

// NewOrchestrator creates a debate orchestrator.
func NewOrchestrator(profile config.DebateProfile, tolerance float64, vocabulary []string,
	moderator Moderator, publisher Publisher) *Orchestrator {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Orchestrator{
		profile:    profile,
		tolerance:  tolerance,
		vocabulary: vocabulary,
		moderator:  moderator,
		publisher:  publisher,
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, events.Status, any, time.Duration) {}

// run-scoped debate state.
type debateRun struct {
	query          models.Query
	classification *models.Classification
	reports        []models.AgentReport
	speakers       []Speaker

	turns     []models.DebateTurn
	nextIndex int // consumed by failed turns too, so indices stay monotonic

	meta        *metaDetector
	substantive *substantiveDetector

	refocusInjected bool
	endAtBoundary   bool
	converged       bool
	streak          int
	lastConsensus   string

	results *models.DebateResults
	stopped bool // budget exhausted or cancelled; no further speaking turns
}

// Run executes the debate and always returns DebateResults with a non-empty
// consensus narrative, whatever happened on the way.
func (o *Orchestrator) Run(ctx context.Context, query models.Query,
	classification *models.Classification, reports []models.AgentReport,
	speakers []Speaker) *models.DebateResults {

	r := &debateRun{
		query:          query,
		classification: classification,
		reports:        reports,
		speakers:       speakers,
		nextIndex:      1,
		meta:           newMetaDetector(o.vocabulary),
		substantive:    newSubstantiveDetector(),
		results: &models.DebateResults{
			PhasesCompleted: make(map[models.DebatePhase]bool),
		},
	}

	r.results.Contradictions = detectContradictions(reports, o.tolerance)
	for _, c := range r.results.Contradictions {
		r.results.Resolutions = append(r.results.Resolutions, resolveContradiction(c))
	}

	if allEmpty(reports) || len(speakers) == 0 {
		// Nothing to debate: single-phase synthesis only.
		o.synthesize(ctx, r, "no agent produced a result")
		r.results.Reason = models.CompletionSubstantive
		return r.results
	}

	o.runPhases(ctx, r)
	o.synthesize(ctx, r, "")

	if r.results.Reason == "" {
		// Every phase completed under budget without an early-exit detector:
		// the consensus attempt ran to completion.
		r.results.Reason = models.CompletionConverged
	}
	if r.results.Reason == models.CompletionConverged && r.refocusInjected {
		r.results.Reason = models.CompletionRefocusedConverged
	}
	r.results.RefocusInjected = r.refocusInjected
	return r.results
}

// runPhases drives phases 1-5; synthesis runs separately so it survives every
// exit path.
func (o *Orchestrator) runPhases(ctx context.Context, r *debateRun) {
	phases := []struct {
		phase models.DebatePhase
		run   func(ctx context.Context, r *debateRun)
	}{
		{models.PhaseOpening, o.phaseOpening},
		{models.PhaseCrossExamination, o.phaseCrossExamination},
		{models.PhaseEdgeCases, o.phaseEdgeCases},
		{models.PhaseRiskAnalysis, o.phaseRiskAnalysis},
		{models.PhaseConsensus, o.phaseConsensus},
	}

	for _, p := range phases {
		if r.stopped || r.converged {
			return
		}
		if r.endAtBoundary {
			r.results.Reason = models.CompletionSubstantive
			return
		}
		o.publisher.Publish(events.StageDebate, events.StatusRunning, events.DebatePhasePayload{
			Phase:      p.phase,
			TurnsSoFar: len(r.turns),
		}, 0)
		p.run(ctx, r)
		r.results.PhasesCompleted[p.phase] = true
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Phases
// ─────────────────────────────────────────────────────────────────────────────

// phaseOpening gives each agent one position statement, then runs the
// data-quality validator over the reports.
func (o *Orchestrator) phaseOpening(ctx context.Context, r *debateRun) {
	phaseTurns := 0
	for _, sp := range r.speakers {
		if r.stopped || phaseTurns >= o.profile.PhaseTurnCap {
			break
		}
		if o.takeTurn(ctx, r, models.PhaseOpening, sp, "", nil) {
			phaseTurns++
		}
	}
	r.results.DataQuality = validateDataQuality(r.reports)
}

// phaseCrossExamination round-robins challenges until every agent has spoken
// in this phase at least once or the cap is reached.
func (o *Orchestrator) phaseCrossExamination(ctx context.Context, r *debateRun) {
	spoken := make(map[string]bool)
	phaseTurns := 0
	for phaseTurns < o.profile.PhaseTurnCap {
		if r.stopped || r.endAtBoundary {
			return
		}
		sp := r.speakers[phaseTurns%len(r.speakers)]
		if o.takeTurn(ctx, r, models.PhaseCrossExamination, sp, "", lastTurnRef(r)) {
			spoken[sp.ID()] = true
		}
		phaseTurns++
		if len(spoken) == len(r.speakers) {
			return
		}
	}
}

// phaseEdgeCases has the moderator inject entity-derived probes, each
// answered by agents in round-robin.
func (o *Orchestrator) phaseEdgeCases(ctx context.Context, r *debateRun) {
	o.probePhase(ctx, r, models.PhaseEdgeCases, o.moderator.EdgeCasePrompts(r.classification))
}

// phaseRiskAnalysis runs the same structure over risk dimensions.
func (o *Orchestrator) phaseRiskAnalysis(ctx context.Context, r *debateRun) {
	o.probePhase(ctx, r, models.PhaseRiskAnalysis, o.moderator.RiskPrompts())
}

func (o *Orchestrator) probePhase(ctx context.Context, r *debateRun, phase models.DebatePhase, prompts []string) {
	phaseTurns := 0
	next := 0
	for _, prompt := range prompts {
		if r.stopped || r.endAtBoundary || phaseTurns >= o.profile.PhaseTurnCap {
			return
		}
		if len(r.turns) >= o.profile.MaxTurns {
			r.stopped = true
			r.results.Reason = models.CompletionBudgetExhausted
			return
		}
		o.recordModeratorTurn(r, phase, prompt)
		phaseTurns++

		for range r.speakers {
			if r.stopped || r.endAtBoundary || phaseTurns >= o.profile.PhaseTurnCap {
				return
			}
			sp := r.speakers[next%len(r.speakers)]
			next++
			if o.takeTurn(ctx, r, phase, sp, prompt, lastTurnRef(r)) {
				phaseTurns++
			}
		}
	}
}

// phaseConsensus collects agreement/disagreement statements and watches for
// convergence between successive statements.
func (o *Orchestrator) phaseConsensus(ctx context.Context, r *debateRun) {
	phaseTurns := 0
	for _, sp := range r.speakers {
		if r.stopped || r.endAtBoundary || phaseTurns >= o.profile.PhaseTurnCap {
			return
		}
		if !o.takeTurn(ctx, r, models.PhaseConsensus, sp, "", nil) {
			continue
		}
		phaseTurns++

		// A failed turn records nothing; only an actual statement from this
		// speaker feeds the convergence check.
		if len(r.turns) == 0 || r.turns[len(r.turns)-1].Speaker != sp.ID() {
			continue
		}
		current := r.turns[len(r.turns)-1].Utterance
		if r.lastConsensus != "" && similarity(r.lastConsensus, current) >= o.profile.ConvergenceThreshold {
			r.streak++
		} else {
			r.streak = 0
		}
		r.lastConsensus = current

		if r.streak >= convergenceStreak {
			r.converged = true
			r.results.Reason = models.CompletionConverged
			return
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Turn mechanics
// ─────────────────────────────────────────────────────────────────────────────

// takeTurn runs one speaker turn: budget and cancellation checks, utterance
// generation, event emission, detector evaluation, and a possible refocus
// injection. Returns true when a turn (successful or failed) consumed budget.
func (o *Orchestrator) takeTurn(ctx context.Context, r *debateRun, phase models.DebatePhase,
	sp Speaker, prompt string, refs []int) bool {

	if err := ctx.Err(); err != nil {
		r.stopped = true
		r.results.Reason = models.CompletionError
		return false
	}
	if len(r.turns) >= o.profile.MaxTurns {
		r.stopped = true
		r.results.Reason = models.CompletionBudgetExhausted
		return false
	}

	index := r.nextIndex
	r.nextIndex++

	start := time.Now()
	utterance, err := sp.Speak(ctx, &TurnRequest{
		Query:      r.query,
		Phase:      phase,
		Prompt:     prompt,
		OwnReport:  reportFor(r.reports, sp.ID()),
		Transcript: r.turns,
	})
	if err != nil {
		// Turn-failed: the index is consumed, the phase moves to the next
		// speaker, and the failure is visible on the stream.
		slog.Warn("Debate turn failed",
			"query_id", r.query.ID, "turn", index, "speaker", sp.ID(), "error", err)
		o.publisher.Publish(events.DebateTurnStage(index), events.StatusError, events.DebateTurnPayload{
			Turn:    index,
			Phase:   phase,
			Speaker: sp.ID(),
			Failed:  true,
		}, time.Since(start))
		return true
	}

	o.recordTurn(r, models.DebateTurn{
		Index:      index,
		Phase:      phase,
		Speaker:    sp.ID(),
		Utterance:  utterance,
		References: refs,
		Timestamp:  time.Now().UTC(),
	}, time.Since(start))

	o.evaluateDetectors(r, utterance)
	return true
}

// recordModeratorTurn injects a moderator utterance (probe or refocus) as a
// budget-consuming turn.
func (o *Orchestrator) recordModeratorTurn(r *debateRun, phase models.DebatePhase, utterance string) {
	index := r.nextIndex
	r.nextIndex++
	o.recordTurn(r, models.DebateTurn{
		Index:     index,
		Phase:     phase,
		Speaker:   models.ModeratorSpeaker,
		Utterance: utterance,
		Timestamp: time.Now().UTC(),
	}, 0)
}

// recordTurn appends to the log and emits the per-turn stream events.
func (o *Orchestrator) recordTurn(r *debateRun, turn models.DebateTurn, elapsed time.Duration) {
	r.turns = append(r.turns, turn)
	payload := events.DebateTurnPayload{
		Turn:    turn.Index,
		Phase:   turn.Phase,
		Speaker: turn.Speaker,
		Excerpt: excerpt(turn.Utterance),
	}
	stage := events.DebateTurnStage(turn.Index)
	o.publisher.Publish(stage, events.StatusStreaming, payload, elapsed)
	o.publisher.Publish(stage, events.StatusComplete, payload, elapsed)
}

// evaluateDetectors runs the sliding-window detectors against the new turn
// and injects the one-shot refocus when the meta-debate condition fires.
func (o *Orchestrator) evaluateDetectors(r *debateRun, utterance string) {
	if r.substantive.observe(utterance) {
		r.endAtBoundary = true
	}
	if r.meta.observe(utterance, len(r.turns)) && !r.refocusInjected {
		if len(r.turns) >= o.profile.MaxTurns {
			return
		}
		r.refocusInjected = true
		refocus := o.moderator.Refocus(r.query)
		slog.Info("Meta-debate detected, injecting refocus",
			"query_id", r.query.ID, "turn", r.nextIndex)
		o.recordModeratorTurn(r, r.turns[len(r.turns)-1].Phase, refocus)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Synthesis
// ─────────────────────────────────────────────────────────────────────────────

// synthesize always produces the debate-level synthesis, even when the
// moderator fails or no turn was ever recorded. override replaces the
// moderator narrative when non-empty.
func (o *Orchestrator) synthesize(ctx context.Context, r *debateRun, override string) {
	start := time.Now()
	narrative := override
	if narrative == "" {
		var err error
		narrative, err = o.moderator.Synthesize(ctx, r.query, r.turns,
			r.results.Contradictions, r.results.Resolutions)
		if err != nil || strings.TrimSpace(narrative) == "" {
			if err != nil {
				slog.Warn("Moderator synthesis failed, using fallback",
					"query_id", r.query.ID, "error", err)
			}
			narrative = fallbackSynthesis(r)
		}
	}

	// The synthesis narrative lives in Consensus, not the turn log, so the
	// turn budget holds exactly even when the cap was hit.
	r.results.Consensus = narrative
	r.results.PhasesCompleted[models.PhaseSynthesis] = true
	r.results.Turns = r.turns

	o.publisher.Publish(events.StageDebateFinal, events.StatusComplete, events.DebateSynthesisPayload{
		Consensus:      excerpt(narrative),
		Turns:          len(r.turns),
		Contradictions: len(r.results.Contradictions),
		Reason:         r.results.Reason,
	}, time.Since(start))
}

// fallbackSynthesis summarizes the recorded turns without any collaborator.
func fallbackSynthesis(r *debateRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Debate synthesis over %d recorded turns.", len(r.turns))
	if n := len(r.results.Contradictions); n > 0 {
		fmt.Fprintf(&b, " %d contradiction(s) detected across agent positions.", n)
	}
	if r.lastConsensus != "" {
		fmt.Fprintf(&b, " Last consensus statement: %s", excerpt(r.lastConsensus))
	}
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func allEmpty(reports []models.AgentReport) bool {
	for i := range reports {
		if !reports[i].IsEmpty() {
			return false
		}
	}
	return true
}

func reportFor(reports []models.AgentReport, agentID string) *models.AgentReport {
	canonical := models.CanonicalAgentID(agentID)
	for i := range reports {
		if reports[i].AgentID == canonical {
			return &reports[i]
		}
	}
	return nil
}

func lastTurnRef(r *debateRun) []int {
	if len(r.turns) == 0 {
		return nil
	}
	return []int{r.turns[len(r.turns)-1].Index}
}

func excerpt(s string) string {
	if len(s) <= excerptLen {
		return s
	}
	return s[:excerptLen] + "…"
}
