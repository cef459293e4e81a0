package synthesize

import (
	"math"
	"strings"

	"github.com/conclave-ai/conclave/pkg/models"
)

// recommendation is one agent's position entering clustering, in canonical-id
// order.
type recommendation struct {
	agentID    string
	text       string
	confidence float64
	vector     []float32 // nil under the lexical fallback
}

// clusterGreedy performs the single-pass assignment: for each recommendation
// in canonical order, compute similarity to every existing cluster's
// representative and join the best cluster above the threshold, else open a
// new one. Ties break to the lowest cluster id. Deterministic for identical
// inputs and embedder.
func clusterGreedy(recs []recommendation, threshold float64, sim func(a, b recommendation) float64) []models.Cluster {
	var clusters []models.Cluster
	reps := make([]recommendation, 0, len(recs))

	for _, rec := range recs {
		best := -1
		bestSim := 0.0
		for id := range clusters {
			s := sim(rec, reps[id])
			// Strict inequality keeps the earlier cluster on ties.
			if s >= threshold && s > bestSim {
				best = id
				bestSim = s
			}
		}
		if best >= 0 {
			clusters[best].Members = append(clusters[best].Members, rec.agentID)
			continue
		}
		clusters = append(clusters, models.Cluster{
			ID:             len(clusters),
			Representative: rec.agentID,
			Members:        []string{rec.agentID},
			Centroid:       rec.vector,
		})
		reps = append(reps, rec)
	}
	return clusters
}

// cosineSimilarity returns the [0,1]-normalized cosine between two vectors.
func cosineSimilarity(a, b recommendation) float64 {
	va, vb := a.vector, b.vector
	if len(va) == 0 || len(vb) == 0 || len(va) != len(vb) {
		return 0
	}
	var dot, na, nb float64
	for i := range va {
		dot += float64(va[i]) * float64(vb[i])
		na += float64(va[i]) * float64(va[i])
		nb += float64(vb[i]) * float64(vb[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return (cos + 1) / 2
}

// jaccardSimilarity is the lexical fallback: token-set overlap.
func jaccardSimilarity(a, b recommendation) float64 {
	ta := tokenSet(a.text)
	tb := tokenSet(b.text)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	return float64(intersection) / float64(len(ta)+len(tb)-intersection)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?()\"'")
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}

// largestCluster returns the index of the biggest cluster, lowest id on ties.
func largestCluster(clusters []models.Cluster) int {
	best := -1
	for i := range clusters {
		if best < 0 || len(clusters[i].Members) > len(clusters[best].Members) {
			best = i
		}
	}
	return best
}
