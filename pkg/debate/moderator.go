package debate

import (
	"context"
	"fmt"
	"strings"

	"github.com/conclave-ai/conclave/pkg/models"
)

// RuleModerator is a deterministic, local moderator: template-driven probes
// and a structural synthesis. Deployments that wire an LLM-backed moderator
// replace it; the engine works end-to-end without one.
type RuleModerator struct{}

// NewRuleModerator creates the default moderator.
func NewRuleModerator() *RuleModerator { return &RuleModerator{} }

// EdgeCasePrompts derives probes from the classified entities, capped to keep
// the phase within its turn budget.
func (m *RuleModerator) EdgeCasePrompts(classification *models.Classification) []string {
	var prompts []string
	for _, sector := range classification.EntityValues(models.EntityKindSector) {
		prompts = append(prompts, fmt.Sprintf(
			"Edge case: how does your position hold if the %s sector underperforms projections by half?", sector))
	}
	for _, metric := range classification.EntityValues(models.EntityKindMetric) {
		prompts = append(prompts, fmt.Sprintf(
			"Edge case: what breaks in your analysis if %s moves sharply against the baseline?",
			strings.ReplaceAll(metric, "_", " ")))
	}
	if len(prompts) == 0 {
		prompts = append(prompts, "Edge case: which single assumption, if wrong, most damages your position?")
	}
	if len(prompts) > 3 {
		prompts = prompts[:3]
	}
	return prompts
}

// RiskPrompts covers the fixed risk dimensions.
func (m *RuleModerator) RiskPrompts() []string {
	return []string{
		"Risk analysis: what is the principal economic risk in your recommendation?",
		"Risk analysis: what execution or governance risk could derail it?",
	}
}

// Refocus restates the original question to pull a degenerated debate back to
// substance.
func (m *RuleModerator) Refocus(query models.Query) string {
	return fmt.Sprintf(
		"Moderator: this discussion has drifted into debating the analysis itself. "+
			"Return to the original question: %s", query.Text)
}

// Synthesize produces a structural debate synthesis from the recorded turns
// and the contradiction ledger.
func (m *RuleModerator) Synthesize(_ context.Context, query models.Query, turns []models.DebateTurn,
	contradictions []models.Contradiction, resolutions []models.Resolution) (string, error) {

	var b strings.Builder
	fmt.Fprintf(&b, "Debate synthesis for: %s\n", query.Text)
	fmt.Fprintf(&b, "Recorded %d turns across %d speakers.\n", len(turns), speakerCount(turns))

	if len(contradictions) > 0 {
		unresolved := 0
		for _, res := range resolutions {
			if res.Action == models.ActionFlagForReview {
				unresolved++
			}
		}
		fmt.Fprintf(&b, "%d contradiction(s) were detected; %d remain flagged for review.\n",
			len(contradictions), unresolved)
		for _, c := range contradictions {
			fmt.Fprintf(&b, "- %s: %s reports %g, %s reports %g (%s severity)\n",
				c.Metric, c.First.AgentID, c.First.Value, c.Second.AgentID, c.Second.Value, c.Severity)
		}
	}

	if last := lastConsensusUtterance(turns); last != "" {
		fmt.Fprintf(&b, "Closing consensus position: %s\n", last)
	}
	return b.String(), nil
}

func speakerCount(turns []models.DebateTurn) int {
	seen := make(map[string]bool)
	for _, t := range turns {
		if t.Speaker != models.ModeratorSpeaker {
			seen[t.Speaker] = true
		}
	}
	return len(seen)
}

func lastConsensusUtterance(turns []models.DebateTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Phase == models.PhaseConsensus && turns[i].Speaker != models.ModeratorSpeaker {
			return turns[i].Utterance
		}
	}
	return ""
}
