package models

import "fmt"

// FactValueKind discriminates the value carried by a PrefetchFact.
type FactValueKind string

const (
	FactValueNumber FactValueKind = "number"
	FactValueString FactValueKind = "string"
	FactValueBool   FactValueKind = "bool"
)

// maxFactStringLen bounds string fact values so a misbehaving extractor
// cannot smuggle whole documents into the fact list.
const maxFactStringLen = 512

// FactValue is a tagged value: a number, a bounded string, or a boolean.
type FactValue struct {
	Kind   FactValueKind `json:"kind"`
	Number float64       `json:"number,omitempty"`
	Str    string        `json:"str,omitempty"`
	Bool   bool          `json:"bool,omitempty"`
}

// NumberValue builds a numeric FactValue.
func NumberValue(v float64) FactValue {
	return FactValue{Kind: FactValueNumber, Number: v}
}

// StringValue builds a string FactValue, truncating to the bounded length.
func StringValue(s string) FactValue {
	if len(s) > maxFactStringLen {
		s = s[:maxFactStringLen]
	}
	return FactValue{Kind: FactValueString, Str: s}
}

// BoolValue builds a boolean FactValue.
func BoolValue(b bool) FactValue {
	return FactValue{Kind: FactValueBool, Bool: b}
}

// String renders the value for prompts and logs.
func (v FactValue) String() string {
	switch v.Kind {
	case FactValueNumber:
		return fmt.Sprintf("%g", v.Number)
	case FactValueBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return v.Str
	}
}

// PrefetchFact is a typed, sourced factual datum retrieved before agent
// invocation. Confidence is required and lies in [0,1].
type PrefetchFact struct {
	Metric     string    `json:"metric"`
	Value      FactValue `json:"value"`
	SourceID   string    `json:"source_id"`
	Confidence float64   `json:"confidence"`
	Snippet    string    `json:"snippet,omitempty"`
}

// PrefetchResult is the prefetch stage output: ordered facts plus the
// non-fatal per-source errors encountered while fetching.
type PrefetchResult struct {
	Facts         []PrefetchFact `json:"facts"`
	FailedSources []SourceError  `json:"failed_sources,omitempty"`
}

// SourceError records a single connector failure (non-fatal).
type SourceError struct {
	SourceID string `json:"source_id"`
	Message  string `json:"message"`
}

// RetrievalContext tracks retrieval provenance only: the count of retrieved
// snippets and the set of stable source ids. The snippets themselves flow to
// the agent layer via an opaque handle.
type RetrievalContext struct {
	SnippetCount int      `json:"snippet_count"`
	SourceIDs    []string `json:"source_ids,omitempty"`
	// Degraded notes a retrieval failure that produced an empty context.
	Degraded string `json:"degraded,omitempty"`
}
