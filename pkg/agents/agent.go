// Package agents defines the analytical agent boundary and the selection and
// parallel-invocation logic around it. Agent implementations are external
// collaborators: they call LLMs and HTTP APIs and may suspend.
package agents

import (
	"context"

	"github.com/conclave-ai/conclave/pkg/models"
	"github.com/conclave-ai/conclave/pkg/retrieval"
)

// AnalysisInput is the read-only view an agent receives: the query plus the
// accumulated upstream stage outputs.
type AnalysisInput struct {
	Query          models.Query
	Classification *models.Classification
	Prefetch       *models.PrefetchResult
	Retrieval      *models.RetrievalContext
	// Snippets is the opaque handle to the retrieved passages; provenance
	// lives in Retrieval.
	Snippets []retrieval.Snippet
}

// Agent is one analytical perspective. Analyze may suspend on external calls
// and must respect context cancellation.
type Agent interface {
	// ID returns the agent's identifier. It is canonicalized at registration;
	// implementations may return any casing.
	ID() string
	// Intents lists the intents this agent is curated for at standard
	// complexity.
	Intents() []models.Intent
	// Analyze produces the agent's report for this query.
	Analyze(ctx context.Context, input *AnalysisInput) (*models.AgentReport, error)
}
