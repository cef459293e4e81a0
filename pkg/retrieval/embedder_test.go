package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/pkg/models"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

func TestEmbedderService_WarmOnce(t *testing.T) {
	var factoryCalls atomic.Int32
	svc := NewEmbedderService(func(context.Context) (Embedder, error) {
		factoryCalls.Add(1)
		return &stubEmbedder{vec: []float32{1, 0}}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Warm(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), factoryCalls.Load())

	// Warm after warm is a no-op.
	require.NoError(t, svc.Warm(context.Background()))
	assert.Equal(t, int32(1), factoryCalls.Load())

	embedder, err := svc.Get()
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}

func TestEmbedderService_GetBeforeWarm(t *testing.T) {
	svc := NewEmbedderService(func(context.Context) (Embedder, error) {
		return &stubEmbedder{}, nil
	})

	_, err := svc.Get()
	assert.ErrorIs(t, err, ErrEmbedderUnavailable)
}

func TestEmbedderService_WarmFailureRetries(t *testing.T) {
	var factoryCalls atomic.Int32
	fail := true
	svc := NewEmbedderService(func(context.Context) (Embedder, error) {
		factoryCalls.Add(1)
		if fail {
			return nil, errors.New("model service down")
		}
		return &stubEmbedder{}, nil
	})

	assert.Error(t, svc.Warm(context.Background()))

	// A failed warm-up leaves the service cold; the next warm retries.
	fail = false
	require.NoError(t, svc.Warm(context.Background()))
	assert.Equal(t, int32(2), factoryCalls.Load())
}

type stubIndex struct {
	snippets []Snippet
	err      error
}

func (i *stubIndex) Search(context.Context, []float32, int, float64) ([]Snippet, error) {
	return i.snippets, i.err
}

func TestRetriever_Provenance(t *testing.T) {
	svc := NewEmbedderService(func(context.Context) (Embedder, error) {
		return &stubEmbedder{vec: []float32{1, 0}}, nil
	})
	require.NoError(t, svc.Warm(context.Background()))

	index := &stubIndex{snippets: []Snippet{
		{Text: "a", SourceID: "corpus-1", Similarity: 0.9},
		{Text: "b", SourceID: "corpus-2", Similarity: 0.8},
		{Text: "c", SourceID: "corpus-1", Similarity: 0.7},
	}}
	r := NewRetriever(svc, index, 20, 0.35)

	rctx, snippets := r.Run(context.Background(), models.Query{ID: "q1", Text: "question"})

	assert.Equal(t, 3, rctx.SnippetCount)
	assert.Equal(t, []string{"corpus-1", "corpus-2"}, rctx.SourceIDs)
	assert.Empty(t, rctx.Degraded)
	assert.Len(t, snippets, 3)
}

func TestRetriever_FailureIsNonFatal(t *testing.T) {
	t.Run("embedder cold", func(t *testing.T) {
		svc := NewEmbedderService(func(context.Context) (Embedder, error) {
			return &stubEmbedder{}, nil
		})
		r := NewRetriever(svc, &stubIndex{}, 20, 0.35)

		rctx, snippets := r.Run(context.Background(), models.Query{ID: "q1", Text: "question"})

		assert.Equal(t, 0, rctx.SnippetCount)
		assert.NotEmpty(t, rctx.Degraded)
		assert.Nil(t, snippets)
	})

	t.Run("index error", func(t *testing.T) {
		svc := NewEmbedderService(func(context.Context) (Embedder, error) {
			return &stubEmbedder{vec: []float32{1}}, nil
		})
		require.NoError(t, svc.Warm(context.Background()))
		r := NewRetriever(svc, &stubIndex{err: errors.New("index offline")}, 20, 0.35)

		rctx, snippets := r.Run(context.Background(), models.Query{ID: "q1", Text: "question"})

		assert.Equal(t, 0, rctx.SnippetCount)
		assert.Contains(t, rctx.Degraded, "index offline")
		assert.Nil(t, snippets)
	})

	t.Run("zero snippets is a normal completion", func(t *testing.T) {
		svc := NewEmbedderService(func(context.Context) (Embedder, error) {
			return &stubEmbedder{vec: []float32{1}}, nil
		})
		require.NoError(t, svc.Warm(context.Background()))
		r := NewRetriever(svc, &stubIndex{}, 20, 0.35)

		rctx, _ := r.Run(context.Background(), models.Query{ID: "q1", Text: "question"})

		assert.Equal(t, 0, rctx.SnippetCount)
		assert.Empty(t, rctx.Degraded)
	})
}
