package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/pkg/models"
)

// stubAgent is a configurable test agent.
type stubAgent struct {
	id      string
	intents []models.Intent
	report  *models.AgentReport
	err     error
	delay   time.Duration
}

func (a *stubAgent) ID() string              { return a.id }
func (a *stubAgent) Intents() []models.Intent { return a.intents }

func (a *stubAgent) Analyze(ctx context.Context, _ *AnalysisInput) (*models.AgentReport, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	if a.report != nil {
		return a.report, nil
	}
	return &models.AgentReport{AgentID: a.id, Narrative: "analysis from " + a.id, Confidence: 0.8}, nil
}

func newTestRegistry(agents ...Agent) *Registry {
	r := NewRegistry()
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

func classificationWith(complexity models.Complexity, intent models.Intent) *models.Classification {
	return &models.Classification{Intent: intent, Complexity: complexity, Confidence: 0.8, Routing: models.RoutingLLMAgents}
}

// ─────────────────────────────────────────────────────────────────────────────
// Selector
// ─────────────────────────────────────────────────────────────────────────────

func TestSelector_ComplexSelectsAll(t *testing.T) {
	registry := newTestRegistry(
		&stubAgent{id: "Macro-Economist", intents: []models.Intent{models.IntentPolicy}},
		&stubAgent{id: "labor", intents: []models.Intent{models.IntentDiagnostic}},
		&stubAgent{id: "trade", intents: []models.Intent{models.IntentComparison}},
	)
	selector := NewSelector(registry)

	selected := selector.Select(classificationWith(models.ComplexityComplex, models.IntentPolicy))

	assert.Equal(t, []string{"labor", "macroeconomist", "trade"}, selected)
}

func TestSelector_StandardSelectsIntentSubset(t *testing.T) {
	registry := newTestRegistry(
		&stubAgent{id: "macro", intents: []models.Intent{models.IntentPolicy, models.IntentForecast}},
		&stubAgent{id: "labor", intents: []models.Intent{models.IntentDiagnostic}},
		&stubAgent{id: "fiscal", intents: []models.Intent{models.IntentPolicy}},
	)
	selector := NewSelector(registry)

	selected := selector.Select(classificationWith(models.ComplexityStandard, models.IntentPolicy))

	assert.Equal(t, []string{"fiscal", "macro"}, selected)
}

func TestSelector_SimpleCapsAtTwo(t *testing.T) {
	registry := newTestRegistry(
		&stubAgent{id: "a", intents: []models.Intent{models.IntentDiagnostic}},
		&stubAgent{id: "b", intents: []models.Intent{models.IntentDiagnostic}},
		&stubAgent{id: "c", intents: []models.Intent{models.IntentDiagnostic}},
	)
	selector := NewSelector(registry)

	selected := selector.Select(classificationWith(models.ComplexitySimple, models.IntentDiagnostic))

	assert.Len(t, selected, maxSimpleAgents)
	assert.Equal(t, []string{"a", "b"}, selected)
}

func TestSelector_CanonicalDedupe(t *testing.T) {
	// Two registrations differing only in case collapse to one key.
	registry := newTestRegistry(
		&stubAgent{id: "MacroEconomist", intents: []models.Intent{models.IntentPolicy}},
		&stubAgent{id: "macroeconomist", intents: []models.Intent{models.IntentPolicy}},
	)
	selector := NewSelector(registry)

	selected := selector.Select(classificationWith(models.ComplexityComplex, models.IntentPolicy))

	assert.Equal(t, []string{"macroeconomist"}, selected)
}

// ─────────────────────────────────────────────────────────────────────────────
// Invoker
// ─────────────────────────────────────────────────────────────────────────────

func TestInvoker_ParallelReportsSorted(t *testing.T) {
	registry := newTestRegistry(
		&stubAgent{id: "zeta"},
		&stubAgent{id: "alpha"},
		&stubAgent{id: "mid"},
	)
	inv := NewInvoker(registry, time.Second)

	reports := inv.Run(context.Background(), []string{"zeta", "alpha", "mid"}, &AnalysisInput{})

	require.Len(t, reports, 3)
	assert.Equal(t, "alpha", reports[0].AgentID)
	assert.Equal(t, "mid", reports[1].AgentID)
	assert.Equal(t, "zeta", reports[2].AgentID)
}

func TestInvoker_TimeoutYieldsEmptyReport(t *testing.T) {
	registry := newTestRegistry(
		&stubAgent{id: "fast"},
		&stubAgent{id: "slow", delay: 500 * time.Millisecond},
	)
	inv := NewInvoker(registry, 50*time.Millisecond)

	reports := inv.Run(context.Background(), []string{"fast", "slow"}, &AnalysisInput{})

	require.Len(t, reports, 2)
	assert.False(t, reports[0].IsEmpty())
	assert.True(t, reports[1].IsEmpty())
	assert.Equal(t, float64(0), reports[1].Confidence)
	require.Len(t, reports[1].Warnings, 1)
	assert.Contains(t, reports[1].Warnings[0], "timed out")
}

func TestInvoker_AgentErrorDoesNotFailStage(t *testing.T) {
	registry := newTestRegistry(
		&stubAgent{id: "ok"},
		&stubAgent{id: "broken", err: errors.New("llm provider 503")},
	)
	inv := NewInvoker(registry, time.Second)

	reports := inv.Run(context.Background(), []string{"broken", "ok"}, &AnalysisInput{})

	require.Len(t, reports, 2)
	assert.True(t, reports[0].IsEmpty())
	assert.Contains(t, reports[0].Warnings[0], "503")
	assert.False(t, reports[1].IsEmpty())
}

func TestInvoker_AllAgentsTimeOut(t *testing.T) {
	registry := newTestRegistry(
		&stubAgent{id: "a", delay: time.Second},
		&stubAgent{id: "b", delay: time.Second},
	)
	inv := NewInvoker(registry, 20*time.Millisecond)

	reports := inv.Run(context.Background(), []string{"a", "b"}, &AnalysisInput{})

	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.True(t, r.IsEmpty())
		assert.Equal(t, float64(0), r.Confidence)
	}
}

func TestInvoker_CaseInsensitiveOverwrite(t *testing.T) {
	// An agent that mislabels its own report with different casing must not
	// produce two state entries.
	registry := newTestRegistry(
		&stubAgent{id: "macro", report: &models.AgentReport{AgentID: "Macro", Narrative: "mislabeled", Confidence: 0.5}},
	)
	inv := NewInvoker(registry, time.Second)

	reports := inv.Run(context.Background(), []string{"macro"}, &AnalysisInput{})

	require.Len(t, reports, 1)
	assert.Equal(t, "macro", reports[0].AgentID)
}

func TestMergeReports_DuplicateKeepsLater(t *testing.T) {
	reports := []models.AgentReport{
		{AgentID: "macro", Narrative: "earlier", Confidence: 0.4},
		{AgentID: "macro", Narrative: "later", Confidence: 0.6},
	}

	merged := mergeReports(reports)

	require.Len(t, merged, 1)
	assert.Equal(t, "later", merged[0].Narrative)
}

func TestInvoker_OnReportCallback(t *testing.T) {
	registry := newTestRegistry(
		&stubAgent{id: "ok"},
		&stubAgent{id: "broken", err: errors.New("down")},
	)
	inv := NewInvoker(registry, time.Second)

	var seen []string
	var failures int
	inv.OnReport = func(r models.AgentReport, failed bool, _ time.Duration) {
		seen = append(seen, r.AgentID)
		if failed {
			failures++
		}
	}

	inv.Run(context.Background(), []string{"ok", "broken"}, &AnalysisInput{})

	assert.ElementsMatch(t, []string{"ok", "broken"}, seen)
	assert.Equal(t, 1, failures)
}
