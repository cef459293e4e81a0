package workflow

import (
	"context"
	"fmt"

	"github.com/conclave-ai/conclave/pkg/debate"
	"github.com/conclave-ai/conclave/pkg/models"
)

// SpeakerFactory builds the debate speaker set from the merged agent reports.
// The default factory derives deterministic speakers from the reports;
// deployments substitute LLM-backed speakers here.
type SpeakerFactory func(reports []models.AgentReport) []debate.Speaker

// ReportSpeakers is the default factory: one deterministic speaker per
// non-empty report, in the reports' canonical-id order. Agents that timed out
// or failed do not speak.
func ReportSpeakers(reports []models.AgentReport) []debate.Speaker {
	speakers := make([]debate.Speaker, 0, len(reports))
	for i := range reports {
		if reports[i].IsEmpty() {
			continue
		}
		speakers = append(speakers, &reportSpeaker{report: &reports[i]})
	}
	return speakers
}

// reportSpeaker restates its agent's invocation report phase by phase. It
// never calls out, so its only failure mode is cancellation.
type reportSpeaker struct {
	report *models.AgentReport
}

func (s *reportSpeaker) ID() string { return s.report.AgentID }

func (s *reportSpeaker) Speak(ctx context.Context, req *debate.TurnRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	position := s.report.Recommendation
	if position == "" {
		position = s.report.Narrative
	}

	switch req.Phase {
	case models.PhaseOpening:
		opening := fmt.Sprintf("%s position: %s", s.report.AgentID, position)
		if len(s.report.Findings) > 0 {
			opening += " Key finding: " + s.report.Findings[0].Text
		}
		return opening, nil
	case models.PhaseCrossExamination:
		return fmt.Sprintf("%s holds to its analysis against the prior point: %s",
			s.report.AgentID, position), nil
	case models.PhaseEdgeCases, models.PhaseRiskAnalysis:
		return fmt.Sprintf("%s responds to %q: the recommendation stands at confidence %.2f. %s",
			s.report.AgentID, req.Prompt, s.report.Confidence, position), nil
	default:
		return fmt.Sprintf("%s can support: %s", s.report.AgentID, position), nil
	}
}
