package prefetch

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conclave-ai/conclave/pkg/models"
)

// IndicatorStore is a read-only connector over a relational indicator cache.
// The engine owns no schema here — the table is maintained by an external
// ingestion job and queried by metric and country.
type IndicatorStore struct {
	id   string
	pool *pgxpool.Pool
}

// NewIndicatorStore connects to the indicator store. The pool is created
// lazily-healthy: connection errors surface on the first Fetch, not here.
func NewIndicatorStore(ctx context.Context, id, dsn string) (*IndicatorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create indicator store pool for %s: %w", id, err)
	}
	return &IndicatorStore{id: id, pool: pool}, nil
}

// ID returns the stable connector id.
func (s *IndicatorStore) ID() string { return s.id }

// Fetch queries the latest indicator values for the classified metrics and
// countries. No entities means nothing to look up — an empty result, not an
// error.
func (s *IndicatorStore) Fetch(ctx context.Context, req *Request) (*SourceResult, error) {
	metrics := req.Metrics()
	countries := req.Countries()
	if len(metrics) == 0 && len(countries) == 0 {
		return &SourceResult{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (metric, country)
		       metric, country, value, confidence, snippet
		  FROM indicators
		 WHERE (cardinality($1::text[]) = 0 OR metric = ANY($1))
		   AND (cardinality($2::text[]) = 0 OR country = ANY($2))
		 ORDER BY metric, country, observed_at DESC`,
		metrics, countries)
	if err != nil {
		return nil, fmt.Errorf("indicator store query failed: %w", err)
	}
	defer rows.Close()

	result := &SourceResult{}
	for rows.Next() {
		var (
			metric, country, snippet string
			value, confidence        float64
		)
		if err := rows.Scan(&metric, &country, &value, &confidence, &snippet); err != nil {
			return nil, fmt.Errorf("indicator store scan failed: %w", err)
		}
		result.Records = append(result.Records, Record{
			Metric:     metric,
			Value:      models.NumberValue(value),
			Confidence: confidence,
			Snippet:    fmt.Sprintf("%s (%s): %s", metric, country, snippet),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("indicator store rows failed: %w", err)
	}
	return result, nil
}

// Close releases the connection pool.
func (s *IndicatorStore) Close() {
	s.pool.Close()
}
