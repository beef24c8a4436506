package embedding

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/hypogen/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the same embedding.
type MockEmbedder struct {
	dimensions int
	calls      atomic.Int64
	texts      atomic.Int64

	mu  sync.RWMutex
	err error
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// FailWith makes every later call return err (nil restores normal behaviour).
func (e *MockEmbedder) FailWith(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// Calls returns how many Embed/EmbedBatch calls were made.
func (e *MockEmbedder) Calls() int64 { return e.calls.Load() }

// Texts returns how many texts were embedded in total.
func (e *MockEmbedder) Texts() int64 { return e.texts.Load() }

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if err := e.failure(ctx); err != nil {
		return nil, err
	}
	e.texts.Add(1)
	return e.vector(text), nil
}

// EmbedBatch embeds each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if err := e.failure(ctx); err != nil {
		return nil, err
	}
	e.texts.Add(int64(len(texts)))
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.vector(text)
	}
	return embeddings, nil
}

func (e *MockEmbedder) failure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

func (e *MockEmbedder) vector(text string) []float32 {
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
