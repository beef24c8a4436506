// Package embedding turns chunk text into vectors: an OpenAI client, a local ONNX
// model, a deterministic mock, and a two-tier cache in front of any of them.
package embedding

import "context"

// Embedder produces vector embeddings for text. Returned vectors are shared with
// caches and must not be modified by callers.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
