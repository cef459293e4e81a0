package prefetch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/conclave-ai/conclave/pkg/config"
)

// BuildSources instantiates the configured connectors. Returns the sources in
// id order plus a close function for connector teardown at shutdown.
//
// A connector that fails to initialize is skipped with a warning rather than
// failing startup; the prefetch stage already tolerates missing sources.
func BuildSources(ctx context.Context, cfg *config.Config) ([]Source, func()) {
	ids := make([]string, 0, len(cfg.Sources))
	for id := range cfg.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sources []Source
	var closers []func()
	for _, id := range ids {
		sc := cfg.Sources[id]
		switch sc.Kind {
		case "indicator_store":
			store, err := NewIndicatorStore(ctx, id, sc.DSN)
			if err != nil {
				slog.Warn("Skipping indicator store source", "source_id", id, "error", err)
				continue
			}
			sources = append(sources, store)
			closers = append(closers, store.Close)
		case "http":
			sources = append(sources, NewHTTPSource(id, sc.URL))
		default:
			slog.Warn("Unknown source kind, skipping",
				"source_id", id, "kind", sc.Kind)
		}
	}

	slog.Info(fmt.Sprintf("Initialized %d prefetch sources", len(sources)))
	return sources, func() {
		for _, close := range closers {
			close()
		}
	}
}
