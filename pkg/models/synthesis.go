package models

// Cluster groups agents whose recommendations are semantically similar.
// The representative is the first agent assigned; its embedding stands in
// for the centroid.
type Cluster struct {
	ID             int       `json:"id"`
	Representative string    `json:"representative"`
	Members        []string  `json:"members"`
	Centroid       []float32 `json:"-"`
}

// Size returns the member count.
func (c *Cluster) Size() int { return len(c.Members) }

// Synthesis is the final briefing produced by the synthesizer.
type Synthesis struct {
	Briefing   string    `json:"briefing"`
	Consensus  string    `json:"consensus,omitempty"`
	Dissents   []string  `json:"dissents,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Clusters   []Cluster `json:"clusters,omitempty"`
	Confidence float64   `json:"confidence"`
	// Degraded lists the stages that produced empty or partial output on the
	// way here; the briefing enumerates them explicitly.
	Degraded []string `json:"degraded,omitempty"`
	// LexicalFallback is set when the embedder was unavailable and clustering
	// fell back to lexical overlap.
	LexicalFallback bool `json:"lexical_fallback,omitempty"`
}
