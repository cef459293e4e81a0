// Package synthesize produces the final briefing: semantic clustering of the
// agents' recommendations, consensus and dissent statements, warning
// aggregation, and the weighted confidence score. The synthesizer runs for
// every request that was not cancelled, however degraded the state.
package synthesize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/conclave-ai/conclave/pkg/models"
	"github.com/conclave-ai/conclave/pkg/retrieval"
)

// highSeverityPenalty is subtracted from the confidence score per
// high-severity contradiction.
const highSeverityPenalty = 0.05

// Synthesizer builds the final briefing from the accumulated analysis state.
type Synthesizer struct {
	embedders        *retrieval.EmbedderService
	clusterThreshold float64
	lexicalThreshold float64
	lowConfidence    float64
}

// New creates a synthesizer.
func New(embedders *retrieval.EmbedderService, clusterThreshold, lexicalThreshold, lowConfidence float64) *Synthesizer {
	return &Synthesizer{
		embedders:        embedders,
		clusterThreshold: clusterThreshold,
		lexicalThreshold: lexicalThreshold,
		lowConfidence:    lowConfidence,
	}
}

// Run produces the synthesis over whatever the state has accumulated. The
// result is never empty.
func (s *Synthesizer) Run(ctx context.Context, state *models.AnalysisState) *models.Synthesis {
	recs := collectRecommendations(state.Reports)
	out := &models.Synthesis{Degraded: state.DegradedStages}

	if len(recs) == 0 {
		out.Briefing = degradedBriefing(state)
		out.Confidence = 0
		return out
	}

	clusters, lexical := s.cluster(ctx, recs)
	out.Clusters = clusters
	out.LexicalFallback = lexical
	if lexical {
		out.Warnings = append(out.Warnings, "degraded-clustering: embedder unavailable, lexical-overlap similarity used")
	}

	s.compose(out, state, recs, clusters)
	out.Confidence = confidenceScore(recs, clusters, state.Debate)
	return out
}

// cluster embeds the recommendations and clusters them; when the embedder is
// unavailable it falls back to lexical overlap at the higher threshold.
func (s *Synthesizer) cluster(ctx context.Context, recs []recommendation) ([]models.Cluster, bool) {
	embedder, err := s.embedders.Get()
	if err == nil {
		texts := make([]string, len(recs))
		for i := range recs {
			texts[i] = recs[i].text
		}
		vectors, embedErr := embedder.Embed(ctx, texts)
		if embedErr == nil && len(vectors) == len(recs) {
			for i := range recs {
				recs[i].vector = vectors[i]
			}
			return clusterGreedy(recs, s.clusterThreshold, cosineSimilarity), false
		}
		err = embedErr
	}

	slog.Warn("Embedding unavailable for clustering, using lexical fallback", "error", err)
	return clusterGreedy(recs, s.lexicalThreshold, jaccardSimilarity), true
}

// compose assembles the briefing text: consensus, dissents, unresolved
// contradictions, verifier warnings, data-quality warnings, low-confidence
// recommendations, and degraded stages.
func (s *Synthesizer) compose(out *models.Synthesis, state *models.AnalysisState, recs []recommendation, clusters []models.Cluster) {
	var b strings.Builder
	byID := make(map[string]recommendation, len(recs))
	for _, r := range recs {
		byID[r.agentID] = r
	}

	main := largestCluster(clusters)
	if main >= 0 {
		rep := byID[clusters[main].Representative]
		out.Consensus = fmt.Sprintf("%d of %d agents align: %s",
			len(clusters[main].Members), len(recs), rep.text)
		fmt.Fprintf(&b, "Consensus: %s\n", out.Consensus)
	}

	for i := range clusters {
		if i == main {
			continue
		}
		rep := byID[clusters[i].Representative]
		dissent := fmt.Sprintf("%s (with %d agent(s)): %s",
			rep.agentID, len(clusters[i].Members), rep.text)
		out.Dissents = append(out.Dissents, dissent)
		fmt.Fprintf(&b, "Dissent: %s\n", dissent)
	}

	if state.Debate != nil {
		for i, c := range state.Debate.Contradictions {
			unresolved := i >= len(state.Debate.Resolutions) ||
				state.Debate.Resolutions[i].Action == models.ActionFlagForReview
			if unresolved {
				w := fmt.Sprintf("unresolved contradiction on %s: %s=%g vs %s=%g",
					c.Metric, c.First.AgentID, c.First.Value, c.Second.AgentID, c.Second.Value)
				out.Warnings = append(out.Warnings, w)
				fmt.Fprintf(&b, "Flagged for review: %s\n", w)
			}
		}
		for _, dq := range state.Debate.DataQuality {
			w := fmt.Sprintf("data quality: %s reported %s=%g (%s)", dq.AgentID, dq.Metric, dq.Value, dq.Reason)
			out.Warnings = append(out.Warnings, w)
		}
	}

	if v := state.Verification; v != nil && (v.UncitedClaims > 0 || v.FabricatedNumbers > 0 || v.StaleClaims > 0) {
		w := fmt.Sprintf("verification: %d uncited claim(s), %d unbacked number(s), %d stale claim(s)",
			v.UncitedClaims, v.FabricatedNumbers, v.StaleClaims)
		out.Warnings = append(out.Warnings, w)
		fmt.Fprintf(&b, "%s\n", w)
	}

	for _, r := range recs {
		if r.confidence < s.lowConfidence {
			fmt.Fprintf(&b, "Low confidence: %s recommends with confidence %.2f: %s\n",
				r.agentID, r.confidence, r.text)
		}
	}

	if len(state.DegradedStages) > 0 {
		fmt.Fprintf(&b, "Degraded stages this run: %s\n", strings.Join(state.DegradedStages, ", "))
	}

	out.Briefing = b.String()
}

// confidenceScore is the mean report confidence weighted by cluster size,
// minus a penalty per high-severity contradiction.
func confidenceScore(recs []recommendation, clusters []models.Cluster, debate *models.DebateResults) float64 {
	clusterSize := make(map[string]float64)
	for _, c := range clusters {
		for _, member := range c.Members {
			clusterSize[member] = float64(len(c.Members))
		}
	}

	weighted := make([]float64, 0, len(recs))
	weights := make([]float64, 0, len(recs))
	for _, r := range recs {
		w := clusterSize[r.agentID]
		if w == 0 {
			w = 1
		}
		weighted = append(weighted, r.confidence*w)
		weights = append(weights, w)
	}

	num, err := stats.Sum(weighted)
	if err != nil {
		return 0
	}
	den, err := stats.Sum(weights)
	if err != nil || den == 0 {
		return 0
	}
	score := num / den

	if debate != nil {
		for _, c := range debate.Contradictions {
			if c.Severity == models.SeverityHigh {
				score -= highSeverityPenalty
			}
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// collectRecommendations pulls each non-empty report's recommendation (or
// narrative when none is set), preserving the canonical-id order of the
// report slice.
func collectRecommendations(reports []models.AgentReport) []recommendation {
	var out []recommendation
	for i := range reports {
		r := &reports[i]
		if r.IsEmpty() {
			continue
		}
		text := r.Recommendation
		if text == "" {
			text = r.Narrative
		}
		out = append(out, recommendation{
			agentID:    r.AgentID,
			text:       text,
			confidence: r.Confidence,
		})
	}
	return out
}

// degradedBriefing covers the no-recommendations path: the briefing still
// explains what happened.
func degradedBriefing(state *models.AnalysisState) string {
	var b strings.Builder
	b.WriteString("No agent produced an analyzable recommendation for this request.")
	if state.Debate != nil && state.Debate.Consensus != "" {
		fmt.Fprintf(&b, " Debate synthesis: %s", state.Debate.Consensus)
	}
	if len(state.DegradedStages) > 0 {
		fmt.Fprintf(&b, " Degraded stages: %s.", strings.Join(state.DegradedStages, ", "))
	}
	return b.String()
}
