// Package keyword provides lexical (BM25) retrieval over indexed chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/hypogen/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// PhraseBoost multiplies the score of chunks where the query terms appear adjacent.
	// Use 1.0 (or 0) for no boost.
	PhraseBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits, for gene symbols typed loosely.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default 1.
	Fuzziness int
}

// KeywordIndex is the lexical side of the shared index storage.
type KeywordIndex interface {
	// IndexChunks adds chunks in a single batch. Safe for concurrent use.
	IndexChunks(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit; ID is a chunk ID.
type KeywordResult struct {
	ID    string
	Score float64
}
