package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// ReportCallback is invoked as each agent finishes, for event streaming.
// failed is true when the report is a timeout/error placeholder.
type ReportCallback func(report models.AgentReport, failed bool, elapsed time.Duration)

// Invoker runs the selected agents concurrently and merges their reports.
type Invoker struct {
	registry        *Registry
	perAgentTimeout time.Duration

	// OnReport, when set, fires once per agent as its invocation completes.
	OnReport ReportCallback
}

// NewInvoker creates the invocation stage.
func NewInvoker(registry *Registry, perAgentTimeout time.Duration) *Invoker {
	return &Invoker{registry: registry, perAgentTimeout: perAgentTimeout}
}

// Run invokes every selected agent in parallel. Single-agent failure or
// timeout never fails the stage: the failing agent yields an empty report
// with the error recorded. Returned reports are keyed by canonical id,
// deduplicated case-insensitively, and sorted for deterministic downstream
// consumption.
func (inv *Invoker) Run(ctx context.Context, selected []string, input *AnalysisInput) []models.AgentReport {
	results := make([]models.AgentReport, len(selected))
	elapsed := make([]time.Duration, len(selected))

	var wg sync.WaitGroup
	for i, id := range selected {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			start := time.Now()
			results[i] = inv.invokeOne(ctx, id, input)
			elapsed[i] = time.Since(start)
		}(i, id)
	}
	wg.Wait()

	if inv.OnReport != nil {
		for i := range results {
			inv.OnReport(results[i], results[i].IsEmpty(), elapsed[i])
		}
	}

	return mergeReports(results)
}

// invokeOne runs a single agent under its own timeout and converts every
// failure mode into an empty report.
func (inv *Invoker) invokeOne(ctx context.Context, canonicalID string, input *AnalysisInput) models.AgentReport {
	agent, ok := inv.registry.Get(canonicalID)
	if !ok {
		slog.Warn("Selected agent not registered", "agent_id", canonicalID)
		return models.EmptyReport(canonicalID, "agent not registered")
	}

	agentCtx, cancel := context.WithTimeout(ctx, inv.perAgentTimeout)
	defer cancel()

	report, err := agent.Analyze(agentCtx, input)
	switch {
	case err != nil:
		warning := fmt.Sprintf("agent failed: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			warning = fmt.Sprintf("agent timed out after %s", inv.perAgentTimeout)
		} else if errors.Is(err, context.Canceled) {
			warning = "agent cancelled"
		}
		slog.Warn("Agent invocation failed",
			"agent_id", canonicalID, "query_id", input.Query.ID, "error", err)
		return models.EmptyReport(canonicalID, warning)
	case report == nil:
		slog.Warn("Agent returned nil report", "agent_id", canonicalID)
		return models.EmptyReport(canonicalID, "agent returned no report")
	default:
		r := *report
		r.AgentID = models.CanonicalAgentID(r.AgentID)
		if r.AgentID == "" {
			r.AgentID = canonicalID
		}
		return r
	}
}

// mergeReports deduplicates by canonical id — the later report overwrites the
// earlier with a warning — and sorts by id. Selection already normalizes ids,
// so a collision here means an agent mislabeled its own output.
func mergeReports(reports []models.AgentReport) []models.AgentReport {
	merged := make(map[string]models.AgentReport, len(reports))
	for _, r := range reports {
		if _, exists := merged[r.AgentID]; exists {
			slog.Warn("Duplicate agent id in reports, overwriting earlier report",
				"agent_id", r.AgentID)
		}
		merged[r.AgentID] = r
	}

	out := make([]models.AgentReport, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}
