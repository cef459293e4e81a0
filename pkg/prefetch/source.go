// Package prefetch issues bounded-parallel requests to configured external
// data sources and extracts typed facts from their results before the agent
// stage runs. Partial failure is expected and non-fatal.
package prefetch

import (
	"context"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Request carries the inputs a source needs to decide what to fetch.
type Request struct {
	Query          models.Query
	Classification *models.Classification
}

// Metrics returns the metric entities from the classification (nil-safe).
func (r *Request) Metrics() []string {
	return r.Classification.EntityValues(models.EntityKindMetric)
}

// Countries returns the country entities from the classification (nil-safe).
func (r *Request) Countries() []string {
	return r.Classification.EntityValues(models.EntityKindCountry)
}

// Record is one raw datum returned by a source, before extraction.
type Record struct {
	Metric     string
	Value      models.FactValue
	Confidence float64
	Snippet    string
}

// SourceResult is the raw output of one source fetch.
type SourceResult struct {
	Records []Record
}

// Source is an external data connector. Implementations maintain their own
// connection pools; the engine treats them as opaque.
type Source interface {
	// ID returns the stable connector id used in fact provenance.
	ID() string
	// Fetch retrieves raw records for the request. The context carries the
	// per-source timeout.
	Fetch(ctx context.Context, req *Request) (*SourceResult, error)
}
