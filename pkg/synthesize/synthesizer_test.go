package synthesize

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/pkg/models"
	"github.com/conclave-ai/conclave/pkg/retrieval"
)

// vectorEmbedder maps each text to a fixed vector, defaulting to an
// orthogonal axis per unknown text.
type vectorEmbedder struct {
	vectors map[string][]float32
}

func (e *vectorEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := e.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func warmService(t *testing.T, e retrieval.Embedder) *retrieval.EmbedderService {
	t.Helper()
	svc := retrieval.NewEmbedderService(func(context.Context) (retrieval.Embedder, error) {
		return e, nil
	})
	require.NoError(t, svc.Warm(context.Background()))
	return svc
}

func coldService() *retrieval.EmbedderService {
	return retrieval.NewEmbedderService(func(context.Context) (retrieval.Embedder, error) {
		return nil, assert.AnError
	})
}

func report(id, recommendation string, confidence float64) models.AgentReport {
	return models.AgentReport{
		AgentID:        id,
		Narrative:      "analysis from " + id,
		Confidence:     confidence,
		Recommendation: recommendation,
	}
}

func TestSynthesizer_ClustersAndConsensus(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"invest gradually": {1, 0, 0},
		"invest slowly":    {0.98, 0.2, 0},
		"do not invest":    {-1, 0, 0},
	}}
	s := New(warmService(t, embedder), 0.65, 0.40, 0.60)

	state := &models.AnalysisState{Reports: []models.AgentReport{
		report("fiscal", "do not invest", 0.7),
		report("macro", "invest gradually", 0.9),
		report("micro", "invest slowly", 0.8),
	}}

	out := s.Run(context.Background(), state)

	require.Len(t, out.Clusters, 2)
	assert.False(t, out.LexicalFallback)
	// fiscal opens cluster 0; macro and micro land together in cluster 1.
	assert.Equal(t, []string{"fiscal"}, out.Clusters[0].Members)
	assert.Equal(t, []string{"macro", "micro"}, out.Clusters[1].Members)
	assert.Contains(t, out.Consensus, "2 of 3 agents align")
	require.Len(t, out.Dissents, 1)
	assert.Contains(t, out.Dissents[0], "fiscal")
	assert.NotEmpty(t, out.Briefing)
}

func TestSynthesizer_Deterministic(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"invest gradually": {1, 0, 0},
		"invest slowly":    {0.9, 0.1, 0},
		"do not invest":    {-1, 0, 0},
	}}
	s := New(warmService(t, embedder), 0.65, 0.40, 0.60)

	state := func() *models.AnalysisState {
		return &models.AnalysisState{Reports: []models.AgentReport{
			report("alpha", "invest gradually", 0.9),
			report("beta", "invest slowly", 0.8),
			report("gamma", "do not invest", 0.7),
		}}
	}

	first := s.Run(context.Background(), state())
	second := s.Run(context.Background(), state())

	assert.Equal(t, first.Clusters, second.Clusters)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestSynthesizer_LexicalFallback(t *testing.T) {
	s := New(coldService(), 0.65, 0.40, 0.60)

	state := &models.AnalysisState{Reports: []models.AgentReport{
		report("macro", "invest in food security infrastructure now", 0.9),
		report("micro", "invest in food security infrastructure gradually", 0.8),
		report("fiscal", "reject the proposal entirely as unaffordable", 0.7),
	}}

	out := s.Run(context.Background(), state)

	assert.True(t, out.LexicalFallback)
	require.Len(t, out.Clusters, 2)
	assert.Equal(t, []string{"macro", "micro"}, out.Clusters[0].Members)

	found := false
	for _, w := range out.Warnings {
		if strings.Contains(w, "degraded-clustering") {
			found = true
		}
	}
	assert.True(t, found, "degraded-clustering warning expected")
}

func TestSynthesizer_ConfidenceScore(t *testing.T) {
	t.Run("cluster-size weighting", func(t *testing.T) {
		recs := []recommendation{
			{agentID: "a", confidence: 0.9},
			{agentID: "b", confidence: 0.9},
			{agentID: "c", confidence: 0.3},
		}
		clusters := []models.Cluster{
			{ID: 0, Members: []string{"a", "b"}},
			{ID: 1, Members: []string{"c"}},
		}

		// (0.9*2 + 0.9*2 + 0.3*1) / (2+2+1) = 0.78
		score := confidenceScore(recs, clusters, nil)
		assert.InDelta(t, 0.78, score, 1e-9)
	})

	t.Run("high-severity contradictions penalize", func(t *testing.T) {
		recs := []recommendation{{agentID: "a", confidence: 0.8}}
		clusters := []models.Cluster{{ID: 0, Members: []string{"a"}}}
		debate := &models.DebateResults{Contradictions: []models.Contradiction{
			{Severity: models.SeverityHigh},
			{Severity: models.SeverityLow},
		}}

		score := confidenceScore(recs, clusters, debate)
		assert.InDelta(t, 0.75, score, 1e-9)
	})
}

func TestSynthesizer_WarningsAndLowConfidence(t *testing.T) {
	s := New(coldService(), 0.65, 0.40, 0.60)

	state := &models.AnalysisState{
		Reports: []models.AgentReport{
			report("macro", "proceed with investment", 0.9),
			report("timid", "maybe wait a few quarters", 0.4),
		},
		Debate: &models.DebateResults{
			Contradictions: []models.Contradiction{{
				Metric: "gdp_growth",
				First:  models.ContradictionSide{AgentID: "macro", Value: 8},
				Second: models.ContradictionSide{AgentID: "timid", Value: 2},
			}},
			Resolutions: []models.Resolution{{Action: models.ActionFlagForReview}},
		},
		Verification: &models.Verification{FabricatedNumbers: 2},
	}

	out := s.Run(context.Background(), state)

	assert.Contains(t, out.Briefing, "Flagged for review")
	assert.Contains(t, out.Briefing, "unbacked number")
	assert.Contains(t, out.Briefing, "Low confidence: timid")
}

func TestSynthesizer_NeverEmpty(t *testing.T) {
	s := New(coldService(), 0.65, 0.40, 0.60)

	t.Run("all reports empty", func(t *testing.T) {
		state := &models.AnalysisState{
			Reports: []models.AgentReport{
				models.EmptyReport("a", "timed out"),
				models.EmptyReport("b", "timed out"),
			},
			Debate: &models.DebateResults{Consensus: "no agent produced a result"},
		}

		out := s.Run(context.Background(), state)

		assert.NotEmpty(t, out.Briefing)
		assert.Equal(t, 0.0, out.Confidence)
		assert.Contains(t, out.Briefing, "no agent produced a result")
	})

	t.Run("degraded stages enumerated", func(t *testing.T) {
		state := &models.AnalysisState{
			Reports:        []models.AgentReport{report("macro", "proceed", 0.9)},
			DegradedStages: []string{"prefetch", "rag"},
		}

		out := s.Run(context.Background(), state)

		assert.Contains(t, out.Briefing, "prefetch, rag")
		assert.Equal(t, []string{"prefetch", "rag"}, out.Degraded)
	})
}
