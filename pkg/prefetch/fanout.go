package prefetch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/conclave-ai/conclave/pkg/models"
)

// ErrNoFacts is returned when the plan named sources for this intent but no
// source yielded a single fact. The caller treats this as a degraded stage,
// not a pipeline failure.
var ErrNoFacts = errors.New("prefetch: all planned sources failed to yield facts")

// Plan maps an intent to the source ids to fetch from. An intent with no
// entry uses every registered source.
type Plan map[models.Intent][]string

// Fanout launches all planned fetches for one run concurrently, under a hard
// concurrency cap and a per-source timeout, and merges the extracted facts.
type Fanout struct {
	sources          map[string]Source
	plan             Plan
	maxConcurrency   int64
	perSourceTimeout time.Duration
}

// Option configures a Fanout.
type Option func(*Fanout)

// WithPlan overrides the default all-sources plan.
func WithPlan(plan Plan) Option {
	return func(f *Fanout) { f.plan = plan }
}

// NewFanout creates the prefetch stage over the given sources.
func NewFanout(sources []Source, maxConcurrency int, perSourceTimeout time.Duration, opts ...Option) *Fanout {
	byID := make(map[string]Source, len(sources))
	for _, s := range sources {
		byID[s.ID()] = s
	}
	f := &Fanout{
		sources:          byID,
		maxConcurrency:   int64(maxConcurrency),
		perSourceTimeout: perSourceTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run fetches from every planned source concurrently and returns the ordered
// facts plus per-source errors. Facts are ordered by (source id, extraction
// order) so identical inputs produce identical output.
//
// Returns ErrNoFacts when sources were planned but none produced a fact; the
// result still carries the per-source errors for the event stream.
func (f *Fanout) Run(ctx context.Context, query models.Query, classification *models.Classification) (*models.PrefetchResult, error) {
	sourceIDs := f.plannedSources(classification)
	if len(sourceIDs) == 0 {
		// The plan declared no sources for this intent; an empty result is a
		// normal completion.
		return &models.PrefetchResult{}, nil
	}

	req := &Request{Query: query, Classification: classification}
	sem := semaphore.NewWeighted(f.maxConcurrency)

	type fetchOutcome struct {
		sourceID string
		result   *SourceResult
		err      error
	}
	outcomes := make([]fetchOutcome, len(sourceIDs))

	var wg sync.WaitGroup
	for i, id := range sourceIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = fetchOutcome{sourceID: id, err: err}
				return
			}
			defer sem.Release(1)

			fetchCtx, cancel := context.WithTimeout(ctx, f.perSourceTimeout)
			defer cancel()

			result, err := f.sources[id].Fetch(fetchCtx, req)
			outcomes[i] = fetchOutcome{sourceID: id, result: result, err: err}
		}(i, id)
	}
	wg.Wait()

	// sourceIDs is sorted, so walking outcomes in index order yields the
	// deterministic (source id, extraction order) fact ordering.
	result := &models.PrefetchResult{}
	for _, out := range outcomes {
		if out.err != nil {
			slog.Warn("Prefetch source failed",
				"source_id", out.sourceID, "query_id", query.ID, "error", out.err)
			result.FailedSources = append(result.FailedSources, models.SourceError{
				SourceID: out.sourceID,
				Message:  out.err.Error(),
			})
			continue
		}
		result.Facts = append(result.Facts, extractFacts(out.sourceID, out.result)...)
	}

	if len(result.Facts) == 0 {
		return result, ErrNoFacts
	}
	return result, nil
}

// plannedSources resolves the plan for the classified intent, filters to
// registered sources, and sorts the ids.
func (f *Fanout) plannedSources(classification *models.Classification) []string {
	var ids []string
	planned, ok := f.plan[classification.Intent]
	if !ok {
		for id := range f.sources {
			ids = append(ids, id)
		}
	} else {
		for _, id := range planned {
			if _, registered := f.sources[id]; registered {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}
