// Package workflow sequences the deliberation pipeline for one request:
// classify, prefetch, retrieval, agent selection, parallel invocation, debate,
// critique, verification, synthesis. The driver is the sole writer of the
// AnalysisState and the sole owner of the stage-boundary event discipline.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/pkg/agents"
	"github.com/conclave-ai/conclave/pkg/classify"
	"github.com/conclave-ai/conclave/pkg/config"
	"github.com/conclave-ai/conclave/pkg/critique"
	"github.com/conclave-ai/conclave/pkg/debate"
	"github.com/conclave-ai/conclave/pkg/events"
	"github.com/conclave-ai/conclave/pkg/models"
	"github.com/conclave-ai/conclave/pkg/prefetch"
	"github.com/conclave-ai/conclave/pkg/retrieval"
	"github.com/conclave-ai/conclave/pkg/synthesize"
	"github.com/conclave-ai/conclave/pkg/verify"
)

// Options wires the pipeline's external collaborators. Sources, Embedders,
// and Registry come from startup; the rest default to the local rule-based
// implementations when nil.
type Options struct {
	Sources   []prefetch.Source
	Plan      prefetch.Plan
	Embedders *retrieval.EmbedderService
	Index     retrieval.VectorIndex
	Registry  *agents.Registry
	Moderator debate.Moderator
	Critic    critique.Critic
	Speakers  SpeakerFactory
}

// Pipeline is the per-deployment driver; Run is safe for concurrent requests.
type Pipeline struct {
	cfg         *config.Config
	classifier  *classify.Classifier
	prefetcher  *prefetch.Fanout
	retriever   *retrieval.Retriever
	registry    *agents.Registry
	selector    *agents.Selector
	moderator   debate.Moderator
	critiques   *critique.Stage
	verifier    *verify.Verifier
	synthesizer *synthesize.Synthesizer
	speakers    SpeakerFactory
}

// New assembles the pipeline from configuration and collaborators.
func New(cfg *config.Config, opts Options) *Pipeline {
	moderator := opts.Moderator
	if moderator == nil {
		moderator = debate.NewRuleModerator()
	}
	critic := opts.Critic
	if critic == nil {
		critic = critique.NewRuleCritic(cfg.Defaults.LowConfidenceThreshold)
	}
	speakers := opts.Speakers
	if speakers == nil {
		speakers = ReportSpeakers
	}
	index := opts.Index
	if index == nil {
		index = emptyIndex{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = agents.NewRegistry()
	}

	var fanoutOpts []prefetch.Option
	if opts.Plan != nil {
		fanoutOpts = append(fanoutOpts, prefetch.WithPlan(opts.Plan))
	}

	return &Pipeline{
		cfg:        cfg,
		classifier: classify.New(cfg.Defaults.MinClassifierConfidence),
		prefetcher: prefetch.NewFanout(opts.Sources, cfg.Defaults.MaxPrefetchConcurrency,
			cfg.Defaults.PerSourceTimeout, fanoutOpts...),
		retriever: retrieval.NewRetriever(opts.Embedders, index,
			cfg.Defaults.RetrievalK, cfg.Defaults.RetrievalFloor),
		registry:  registry,
		selector:  agents.NewSelector(registry),
		moderator: moderator,
		critiques: critique.NewStage(critic),
		verifier:  verify.New(cfg.FreshnessHorizon),
		synthesizer: synthesize.New(opts.Embedders, cfg.Defaults.ClusteringThreshold,
			cfg.Defaults.LexicalFallbackThreshold, cfg.Defaults.LowConfidenceThreshold),
		speakers: speakers,
	}
}

// ValidateQuery checks request input before any stream is opened.
func ValidateQuery(text string) error {
	if strings.TrimSpace(text) == "" {
		return validationError("question text must not be empty")
	}
	return nil
}

// Run executes the pipeline for one request, streaming progress through the
// bus. It always publishes exactly one terminal done event: complete on every
// path except cancellation, which terminates with (done, error).
//
// The returned error is non-nil only for invalid input (ErrValidation) or a
// cancelled scope (ErrCancelled); every internal failure degrades instead.
func (p *Pipeline) Run(ctx context.Context, query models.Query, bus *events.Bus) (*models.AnalysisState, error) {
	state := &models.AnalysisState{Query: query}

	if err := ValidateQuery(query.Text); err != nil {
		bus.Publish(events.StageDone, events.StatusError, events.DonePayload{
			RequestID: query.ID,
			ErrorKind: "validation",
			Message:   err.Error(),
		}, 0)
		return state, err
	}

	p.runClassify(query, state, bus)
	if done, err := p.finishIfCancelled(ctx, query, bus); done {
		return state, err
	}

	if state.Classification.Routing == models.RoutingDeterministic {
		// Definitional lookup: render the classification directly, skipping
		// the analytical stages entirely.
		p.runDeterministic(query, state, bus)
		p.finish(state, bus)
		return state, nil
	}

	p.runPrefetch(ctx, query, state, bus)
	if done, err := p.finishIfCancelled(ctx, query, bus); done {
		return state, err
	}

	snippets := p.runRetrieval(ctx, query, state, bus)
	p.runSelection(state, bus)
	if done, err := p.finishIfCancelled(ctx, query, bus); done {
		return state, err
	}

	p.runAgents(ctx, query, state, snippets, bus)
	if done, err := p.finishIfCancelled(ctx, query, bus); done {
		return state, err
	}

	p.runDebate(ctx, query, state, bus)
	if done, err := p.finishIfCancelled(ctx, query, bus); done {
		return state, err
	}

	p.runCritique(ctx, query, state, bus)
	p.runVerify(query, state, bus)
	if done, err := p.finishIfCancelled(ctx, query, bus); done {
		return state, err
	}

	p.runSynthesize(ctx, query, state, bus)
	p.finish(state, bus)
	return state, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Stages
// ─────────────────────────────────────────────────────────────────────────────

func (p *Pipeline) runClassify(query models.Query, state *models.AnalysisState, bus *events.Bus) {
	runStage(bus, state, events.StageClassify, func() {
		start := time.Now()
		bus.Publish(events.StageClassify, events.StatusRunning, nil, 0)
		cls := p.classifier.Classify(query.Text)
		state.Classification = cls
		bus.Publish(events.StageClassify, events.StatusComplete, events.ClassifyPayload{
			Intent:     cls.Intent,
			Complexity: cls.Complexity,
			Confidence: cls.Confidence,
			Entities:   cls.Entities,
			Routing:    cls.Routing,
		}, time.Since(start))
	})
	if state.Classification == nil {
		// The classifier never fails by contract; if it somehow did, the
		// generic downgrade keeps the pipeline moving.
		state.Classification = &models.Classification{
			Intent:     models.IntentGeneric,
			Complexity: models.ComplexityStandard,
			Routing:    models.RoutingLLMAgents,
		}
	}
	p.logBoundary(query.ID, events.StageClassify, state)
}

func (p *Pipeline) runDeterministic(query models.Query, state *models.AnalysisState, bus *events.Bus) {
	start := time.Now()
	bus.Publish(events.StageSynthesize, events.StatusRunning, nil, 0)
	state.Synthesis = deterministicBriefing(query, state.Classification)
	bus.Publish(events.StageSynthesize, events.StatusComplete, events.SynthesizePayload{
		Confidence: state.Synthesis.Confidence,
	}, time.Since(start))
	p.logBoundary(query.ID, events.StageSynthesize, state)
}

func (p *Pipeline) runPrefetch(ctx context.Context, query models.Query, state *models.AnalysisState, bus *events.Bus) {
	runStage(bus, state, events.StagePrefetch, func() {
		start := time.Now()
		bus.Publish(events.StagePrefetch, events.StatusRunning, nil, 0)

		result, err := p.prefetcher.Run(ctx, query, state.Classification)
		state.Prefetch = result
		if err != nil {
			state.MarkDegraded("prefetch")
			bus.Publish(events.StagePrefetch, events.StatusError, events.StageErrorPayload{
				Error: err.Error(),
				Keys:  state.Keys(),
			}, time.Since(start))
			return
		}

		payload := prefetchPayload(result)
		if len(result.FailedSources) > 0 {
			// Partial failure is surfaced mid-stage so subscribers see the
			// failed-source list before the completion event.
			bus.Publish(events.StagePrefetch, events.StatusRunning, payload, time.Since(start))
		}
		bus.Publish(events.StagePrefetch, events.StatusComplete, payload, time.Since(start))
	})
	p.logBoundary(query.ID, events.StagePrefetch, state)
}

func (p *Pipeline) runRetrieval(ctx context.Context, query models.Query, state *models.AnalysisState, bus *events.Bus) []retrieval.Snippet {
	var snippets []retrieval.Snippet
	runStage(bus, state, events.StageRAG, func() {
		start := time.Now()
		bus.Publish(events.StageRAG, events.StatusRunning, nil, 0)

		rctx, found := p.retriever.Run(ctx, query)
		state.Retrieval = rctx
		snippets = found
		if rctx.Degraded != "" {
			state.MarkDegraded("rag")
		}
		bus.Publish(events.StageRAG, events.StatusComplete, events.RetrievalPayload{
			SnippetCount: rctx.SnippetCount,
			SourceIDs:    rctx.SourceIDs,
			Degraded:     rctx.Degraded,
		}, time.Since(start))
	})
	p.logBoundary(query.ID, events.StageRAG, state)
	return snippets
}

func (p *Pipeline) runSelection(state *models.AnalysisState, bus *events.Bus) {
	runStage(bus, state, events.StageAgentSelection, func() {
		start := time.Now()
		bus.Publish(events.StageAgentSelection, events.StatusRunning, nil, 0)
		state.SelectedAgents = p.selector.Select(state.Classification)
		bus.Publish(events.StageAgentSelection, events.StatusComplete, events.AgentSelectionPayload{
			Agents: state.SelectedAgents,
		}, time.Since(start))
	})
	p.logBoundary(state.Query.ID, events.StageAgentSelection, state)
}

func (p *Pipeline) runAgents(ctx context.Context, query models.Query, state *models.AnalysisState,
	snippets []retrieval.Snippet, bus *events.Bus) {

	runStage(bus, state, events.StageAgents, func() {
		start := time.Now()
		bus.Publish(events.StageAgents, events.StatusRunning, nil, 0)

		inv := agents.NewInvoker(p.registry, p.cfg.Defaults.PerAgentTimeout)
		inv.OnReport = func(r models.AgentReport, failed bool, elapsed time.Duration) {
			payload := events.AgentPayload{AgentID: r.AgentID, Confidence: r.Confidence, Empty: failed}
			status := events.StatusComplete
			if failed {
				status = events.StatusError
				if len(r.Warnings) > 0 {
					payload.Error = r.Warnings[0]
				}
			}
			bus.Publish(events.AgentStage(r.AgentID), status, payload, elapsed)
		}

		state.Reports = inv.Run(ctx, state.SelectedAgents, &agents.AnalysisInput{
			Query:          query,
			Classification: state.Classification,
			Prefetch:       state.Prefetch,
			Retrieval:      state.Retrieval,
			Snippets:       snippets,
		})

		empty := 0
		for i := range state.Reports {
			if state.Reports[i].IsEmpty() {
				empty++
			}
		}
		if len(state.Reports) == 0 || empty == len(state.Reports) {
			state.MarkDegraded("agents")
		}
		bus.Publish(events.StageAgents, events.StatusComplete, events.AgentsPayload{
			Total:     len(state.SelectedAgents),
			Completed: len(state.Reports) - empty,
			Empty:     empty,
		}, time.Since(start))
	})
	p.logBoundary(query.ID, events.StageAgents, state)
}

func (p *Pipeline) runDebate(ctx context.Context, query models.Query, state *models.AnalysisState, bus *events.Bus) {
	runStage(bus, state, events.StageDebate, func() {
		start := time.Now()
		orch := debate.NewOrchestrator(
			p.cfg.Profile(state.Classification.Complexity),
			p.cfg.Defaults.ContradictionTolerance,
			p.cfg.MetaDebateVocabulary,
			p.moderator,
			bus,
		)
		results := orch.Run(ctx, query, state.Classification, state.Reports, p.speakers(state.Reports))
		state.Debate = results

		if results.Reason == models.CompletionError {
			// Cancelled mid-debate; the caller's cancellation check terminates
			// the stream with (done, error).
			return
		}
		bus.Publish(events.StageDebate, events.StatusComplete, events.DebateSynthesisPayload{
			Consensus:      results.Consensus,
			Turns:          len(results.Turns),
			Contradictions: len(results.Contradictions),
			Reason:         results.Reason,
		}, time.Since(start))
	})
	p.logBoundary(query.ID, events.StageDebate, state)
}

func (p *Pipeline) runCritique(ctx context.Context, query models.Query, state *models.AnalysisState, bus *events.Bus) {
	runStage(bus, state, events.StageCritique, func() {
		start := time.Now()
		bus.Publish(events.StageCritique, events.StatusRunning, nil, 0)
		results := p.critiques.Run(ctx, query.ID, state.Reports, state.Debate)
		state.Critique = results
		bus.Publish(events.StageCritique, events.StatusComplete, events.CritiquePayload{
			Items:      len(results.Items),
			Assessment: results.Assessment,
		}, time.Since(start))
	})
	p.logBoundary(query.ID, events.StageCritique, state)
}

func (p *Pipeline) runVerify(query models.Query, state *models.AnalysisState, bus *events.Bus) {
	runStage(bus, state, events.StageVerify, func() {
		start := time.Now()
		bus.Publish(events.StageVerify, events.StatusRunning, nil, 0)
		result := p.verifier.Run(state.Reports, state.Prefetch, state.Classification.Intent)
		state.Verification = result
		bus.Publish(events.StageVerify, events.StatusComplete, events.VerifyPayload{
			UncitedClaims:     result.UncitedClaims,
			FabricatedNumbers: result.FabricatedNumbers,
			StaleClaims:       result.StaleClaims,
		}, time.Since(start))
	})
	p.logBoundary(query.ID, events.StageVerify, state)
}

func (p *Pipeline) runSynthesize(ctx context.Context, query models.Query, state *models.AnalysisState, bus *events.Bus) {
	runStage(bus, state, events.StageSynthesize, func() {
		start := time.Now()
		bus.Publish(events.StageSynthesize, events.StatusRunning, nil, 0)
		syn := p.synthesizer.Run(ctx, state)
		state.Synthesis = syn
		bus.Publish(events.StageSynthesize, events.StatusComplete, events.SynthesizePayload{
			Confidence:      syn.Confidence,
			Clusters:        len(syn.Clusters),
			Warnings:        syn.Warnings,
			LexicalFallback: syn.LexicalFallback,
		}, time.Since(start))
	})
	if state.Synthesis == nil {
		state.Synthesis = &models.Synthesis{
			Briefing: "Synthesis unavailable for this request.",
			Degraded: state.DegradedStages,
		}
	}
	p.logBoundary(query.ID, events.StageSynthesize, state)
}

// ─────────────────────────────────────────────────────────────────────────────
// Termination
// ─────────────────────────────────────────────────────────────────────────────

// finish publishes the terminal done event for a completed run, degraded or not.
func (p *Pipeline) finish(state *models.AnalysisState, bus *events.Bus) {
	bus.Publish(events.StageDone, events.StatusComplete, events.DonePayload{
		RequestID: state.Query.ID,
		Degraded:  state.DegradedStages,
	}, 0)
}

// finishIfCancelled terminates the stream when the request scope is done. No
// synthesizer runs on this path.
func (p *Pipeline) finishIfCancelled(ctx context.Context, query models.Query, bus *events.Bus) (bool, error) {
	err := ctx.Err()
	if err == nil {
		return false, nil
	}
	reason := "cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timed_out"
	}
	slog.Info("Request scope closed, terminating stream", "query_id", query.ID, "reason", reason)
	bus.Publish(events.StageDone, events.StatusError, events.DonePayload{
		RequestID: query.ID,
		Reason:    reason,
	}, 0)
	return true, fmt.Errorf("%w: %s", ErrCancelled, reason)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// runStage contains a stage-internal panic: the stage is marked degraded, the
// subscriber sees a stage-level error event, and the pipeline continues with
// the stage's output absent.
func runStage(bus *events.Bus, state *models.AnalysisState, stage string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Stage panicked, continuing with output absent",
				"stage", stage, "panic", rec, "state_keys", state.Keys())
			state.MarkDegraded(stage)
			bus.Publish(stage, events.StatusError, events.StageErrorPayload{
				Error: fmt.Sprint(rec),
				Keys:  state.Keys(),
			}, 0)
		}
	}()
	fn()
}

func (p *Pipeline) logBoundary(queryID, stage string, state *models.AnalysisState) {
	slog.Debug("Stage boundary", "query_id", queryID, "stage", stage, "state_keys", state.Keys())
}

func prefetchPayload(result *models.PrefetchResult) events.PrefetchPayload {
	payload := events.PrefetchPayload{FactCount: len(result.Facts)}
	seen := make(map[string]bool)
	for _, f := range result.Facts {
		if !seen[f.SourceID] {
			seen[f.SourceID] = true
			payload.Sources = append(payload.Sources, f.SourceID)
		}
	}
	for _, fs := range result.FailedSources {
		payload.FailedSources = append(payload.FailedSources, fs.SourceID)
	}
	return payload
}

// deterministicBriefing renders the short-path answer for definitional
// questions straight from the classification.
func deterministicBriefing(query models.Query, cls *models.Classification) *models.Synthesis {
	var b strings.Builder
	b.WriteString("Definitional lookup answered without agent deliberation.\n")
	fmt.Fprintf(&b, "Question: %s\n", query.Text)
	fmt.Fprintf(&b, "Interpreted intent: %s (confidence %.2f)\n", cls.Intent, cls.Confidence)

	kinds := make([]string, 0, len(cls.Entities))
	for kind := range cls.Entities {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(&b, "Recognized %s terms: %s\n", kind, strings.Join(cls.Entities[kind], ", "))
	}

	return &models.Synthesis{Briefing: b.String(), Confidence: cls.Confidence}
}

// emptyIndex stands in when no vector index is wired; retrieval completes
// with zero snippets, which is a normal outcome.
type emptyIndex struct{}

func (emptyIndex) Search(context.Context, []float32, int, float64) ([]retrieval.Snippet, error) {
	return nil, nil
}
