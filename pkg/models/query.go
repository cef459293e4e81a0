// Package models defines the data model threaded through the deliberation
// pipeline: the immutable query, per-stage outputs, and the accumulating
// AnalysisState that carries them.
package models

import (
	"strings"
	"time"
	"unicode"
)

// Query is the immutable record created at request entry.
// Created once per request, read by every stage, destroyed with the request.
type Query struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	ProviderHint string    `json:"provider_hint,omitempty"`
	ModelHint    string    `json:"model_hint,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CanonicalAgentID normalizes an agent identifier to its canonical form:
// lowercase with punctuation and whitespace stripped. All containers keyed by
// agent id use this form; normalization happens at the only two places agent
// ids enter the state (selection and invocation merge).
func CanonicalAgentID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range strings.ToLower(id) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
