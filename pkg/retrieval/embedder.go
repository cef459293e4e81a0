// Package retrieval looks up corpus snippets by semantic similarity to the
// query. The embedder and vector index are external collaborators; the engine
// tracks provenance only and hands snippets to the agent layer opaquely.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Embedder turns texts into vectors. Implementations wrap an external model
// service and may suspend on network calls.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrEmbedderUnavailable is returned by Get before a successful warm-up.
// Callers with a lexical fallback (the synthesizer) degrade on it instead of
// failing.
var ErrEmbedderUnavailable = errors.New("embedder not initialized")

// EmbedderService is the process-wide embedder with explicit lifecycle:
// construct with New, warm with Warm (idempotent, single-flight under
// concurrent callers), read with Get. There is no module-level global — the
// service is injected into the stages that embed.
type EmbedderService struct {
	factory func(ctx context.Context) (Embedder, error)

	mu       sync.RWMutex
	embedder Embedder

	group singleflight.Group
}

// NewEmbedderService creates the service around a factory that builds and
// health-checks the underlying embedder.
func NewEmbedderService(factory func(ctx context.Context) (Embedder, error)) *EmbedderService {
	return &EmbedderService{factory: factory}
}

// Warm initializes the embedder if it is not already initialized. Safe under
// concurrent callers: exactly one factory call runs per cold start and every
// concurrent caller shares its outcome.
func (s *EmbedderService) Warm(ctx context.Context) error {
	s.mu.RLock()
	ready := s.embedder != nil
	s.mu.RUnlock()
	if ready {
		return nil
	}

	_, err, _ := s.group.Do("warm", func() (any, error) {
		// Re-check under the flight: a previous flight may have won.
		s.mu.RLock()
		ready := s.embedder != nil
		s.mu.RUnlock()
		if ready {
			return nil, nil
		}

		embedder, err := s.factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("embedder warm-up failed: %w", err)
		}

		s.mu.Lock()
		s.embedder = embedder
		s.mu.Unlock()
		slog.Info("Embedder warmed")
		return nil, nil
	})
	return err
}

// Get returns the warmed embedder or ErrEmbedderUnavailable.
func (s *EmbedderService) Get() (Embedder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.embedder == nil {
		return nil, ErrEmbedderUnavailable
	}
	return s.embedder, nil
}

// Teardown drops the embedder reference; a later Warm re-initializes.
func (s *EmbedderService) Teardown() {
	s.mu.Lock()
	s.embedder = nil
	s.mu.Unlock()
}
