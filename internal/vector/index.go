// Package vector stores chunk embeddings and answers nearest-neighbour queries.
package vector

import "context"

// VectorIndex is the semantic side of the shared index storage. Implementations
// must be safe for concurrent Add and Search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single hit; ID is a chunk ID.
type VectorResult struct {
	ID    string
	Score float64 // inner product, cosine similarity for normalized vectors
}
