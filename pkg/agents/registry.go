package agents

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Registry holds the registered agents keyed by canonical id. Registration
// happens at startup; reads are concurrent afterwards.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds an agent under its canonical id. A second agent whose id
// canonicalizes to the same key replaces the first with a warning — two live
// agents must never share a key or downstream state double-counts.
func (r *Registry) Register(agent Agent) {
	canonical := models.CanonicalAgentID(agent.ID())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[canonical]; exists {
		slog.Warn("Agent id collision at registration, replacing",
			"agent_id", agent.ID(), "canonical_id", canonical)
	}
	r.agents[canonical] = agent
}

// Get returns the agent for a canonical id.
func (r *Registry) Get(canonicalID string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[canonicalID]
	return agent, ok
}

// List returns all canonical ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
