// Package critique runs a single devil's-advocate pass over the merged agent
// reports and the debate synthesis. The pass is non-fatal by contract: any
// failure yields an empty critique and the pipeline proceeds.
package critique

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Critic is the devil's-advocate collaborator. Deployments wire an LLM-backed
// implementation; RuleCritic is the local default.
type Critic interface {
	Critique(ctx context.Context, reports []models.AgentReport, debate *models.DebateResults) (*models.CritiqueResults, error)
}

// Stage wraps a Critic with the non-fatal contract.
type Stage struct {
	critic Critic
}

// NewStage creates the critique stage.
func NewStage(critic Critic) *Stage {
	return &Stage{critic: critic}
}

// Run executes the pass. Never returns nil: a failing critic yields an empty
// critique with a warning log.
func (s *Stage) Run(ctx context.Context, queryID string, reports []models.AgentReport, debate *models.DebateResults) *models.CritiqueResults {
	results, err := s.critic.Critique(ctx, reports, debate)
	if err != nil || results == nil {
		slog.Warn("Critique failed, continuing with empty critique",
			"query_id", queryID, "error", err)
		return &models.CritiqueResults{}
	}
	return results
}

// RuleCritic derives critiques structurally: unsupported narratives, low
// confidence, and involvement in unresolved contradictions all count against
// a report's robustness.
type RuleCritic struct {
	// LowConfidence is the threshold below which a report draws a critique.
	LowConfidence float64
}

// NewRuleCritic creates the default critic.
func NewRuleCritic(lowConfidence float64) *RuleCritic {
	return &RuleCritic{LowConfidence: lowConfidence}
}

// Critique inspects each non-empty report.
func (c *RuleCritic) Critique(_ context.Context, reports []models.AgentReport, debate *models.DebateResults) (*models.CritiqueResults, error) {
	contested := contestedAgents(debate)

	results := &models.CritiqueResults{}
	for i := range reports {
		r := &reports[i]
		if r.IsEmpty() {
			continue
		}
		robustness := r.Confidence

		if len(r.Citations) == 0 {
			robustness -= 0.2
			results.Items = append(results.Items, models.CritiqueItem{
				AgentID:         r.AgentID,
				Weakness:        "narrative cites no sources",
				CounterArgument: "conclusions resting on uncited analysis cannot be independently checked",
				Severity:        string(models.SeverityMedium),
				Robustness:      clamp01(robustness),
			})
		}
		if r.Confidence < c.LowConfidence {
			results.Items = append(results.Items, models.CritiqueItem{
				AgentID:         r.AgentID,
				Weakness:        fmt.Sprintf("self-reported confidence %.2f is below the reliability bar", r.Confidence),
				CounterArgument: "a recommendation this uncertain should not anchor the briefing",
				Severity:        string(models.SeverityLow),
				Robustness:      clamp01(robustness),
			})
		}
		if contested[r.AgentID] {
			robustness -= 0.15
			results.Items = append(results.Items, models.CritiqueItem{
				AgentID:         r.AgentID,
				Weakness:        "position contradicted by a peer on a shared metric",
				CounterArgument: "the contradiction must be resolved before this figure is used",
				Severity:        string(models.SeverityHigh),
				Robustness:      clamp01(robustness),
			})
		}
	}

	results.Assessment = fmt.Sprintf("Devil's-advocate pass over %d reports surfaced %d weakness(es).",
		len(reports), len(results.Items))
	return results, nil
}

// contestedAgents collects agents party to an unresolved contradiction.
func contestedAgents(debate *models.DebateResults) map[string]bool {
	contested := make(map[string]bool)
	if debate == nil {
		return contested
	}
	for i, c := range debate.Contradictions {
		unresolved := i >= len(debate.Resolutions) ||
			debate.Resolutions[i].Action == models.ActionFlagForReview
		if unresolved {
			contested[c.First.AgentID] = true
			contested[c.Second.AgentID] = true
		}
	}
	return contested
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
