package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Snippet is one retrieved corpus passage. Snippets flow to the agent layer
// as an opaque handle; only the provenance (count, source ids) enters the
// analysis state.
type Snippet struct {
	Text       string
	SourceID   string
	Similarity float64
}

// VectorIndex is the pre-indexed corpus collaborator.
type VectorIndex interface {
	// Search returns at most k snippets with similarity above floor, most
	// similar first.
	Search(ctx context.Context, vector []float32, k int, floor float64) ([]Snippet, error)
}

// Retriever is the retrieval stage: embed the question with the shared
// pre-warmed embedder, search the index, and report provenance.
type Retriever struct {
	embedders *EmbedderService
	index     VectorIndex
	k         int
	floor     float64
}

// NewRetriever creates the stage.
func NewRetriever(embedders *EmbedderService, index VectorIndex, k int, floor float64) *Retriever {
	return &Retriever{embedders: embedders, index: index, k: k, floor: floor}
}

// Run retrieves snippets for the query. Failure is non-fatal: any error
// yields an empty context annotated with the degradation and a nil snippet
// list; the pipeline proceeds.
func (r *Retriever) Run(ctx context.Context, query models.Query) (*models.RetrievalContext, []Snippet) {
	snippets, err := r.retrieve(ctx, query)
	if err != nil {
		slog.Warn("Retrieval failed, continuing with empty context",
			"query_id", query.ID, "error", err)
		return &models.RetrievalContext{Degraded: err.Error()}, nil
	}

	rctx := &models.RetrievalContext{SnippetCount: len(snippets)}
	seen := make(map[string]bool)
	for _, s := range snippets {
		if !seen[s.SourceID] {
			seen[s.SourceID] = true
			rctx.SourceIDs = append(rctx.SourceIDs, s.SourceID)
		}
	}
	return rctx, snippets
}

func (r *Retriever) retrieve(ctx context.Context, query models.Query) ([]Snippet, error) {
	embedder, err := r.embedders.Get()
	if err != nil {
		return nil, err
	}
	vectors, err := embedder.Embed(ctx, []string{query.Text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	snippets, err := r.index.Search(ctx, vectors[0], r.k, r.floor)
	if err != nil {
		return nil, fmt.Errorf("vector index search failed: %w", err)
	}
	return snippets, nil
}
