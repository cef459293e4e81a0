package agents

import (
	"log/slog"

	"github.com/conclave-ai/conclave/pkg/models"
)

// maxSimpleAgents bounds the active set for simple questions.
const maxSimpleAgents = 2

// Selector chooses the active agent set from the classification.
type Selector struct {
	registry *Registry
}

// NewSelector creates a selector over the registry.
func NewSelector(registry *Registry) *Selector {
	return &Selector{registry: registry}
}

// Select returns the canonical ids of the agents to run, sorted. Complexity
// drives breadth: complex runs everything, standard runs the intent-curated
// subset, simple runs at most two agents. Ids are canonical by construction
// here — this is one of the two normalization points (the other is the
// invoker's merge).
func (s *Selector) Select(classification *models.Classification) []string {
	all := s.registry.List()
	if len(all) == 0 {
		return nil
	}

	var selected []string
	switch classification.Complexity {
	case models.ComplexityComplex:
		selected = all
	case models.ComplexitySimple:
		selected = s.byIntent(all, classification.Intent)
		if len(selected) == 0 {
			selected = all
		}
		if len(selected) > maxSimpleAgents {
			selected = selected[:maxSimpleAgents]
		}
	default:
		selected = s.byIntent(all, classification.Intent)
		if len(selected) == 0 {
			// No agent curates this intent; run everything rather than nothing.
			slog.Warn("No agents curated for intent, selecting all",
				"intent", classification.Intent)
			selected = all
		}
	}
	return selected
}

// byIntent filters the sorted id list to agents that curate the intent.
func (s *Selector) byIntent(ids []string, intent models.Intent) []string {
	var out []string
	for _, id := range ids {
		agent, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		for _, i := range agent.Intents() {
			if i == intent {
				out = append(out, id)
				break
			}
		}
	}
	return out
}
