package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/hypogen/internal/embedding"
	"github.com/hyperjump/hypogen/internal/keyword"
	"github.com/hyperjump/hypogen/internal/models"
	"github.com/hyperjump/hypogen/internal/storage"
	"github.com/hyperjump/hypogen/internal/vector"
)

// minCandidates is the floor on hits fetched from each side before fusion.
const minCandidates = 20

// Weights sets the share of each retrieval side in the fused score.
type Weights struct {
	Semantic float64
	Keyword  float64
}

// DefaultWeights favours semantic similarity.
var DefaultWeights = Weights{Semantic: 0.7, Keyword: 0.3}

// Retriever runs hybrid (semantic + keyword) retrieval over the shared index storage.
type Retriever struct {
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex // nil disables the keyword side
	store        storage.ChunkStore
	weights      Weights
	keywordOpts  *keyword.SearchOptions
}

// NewRetriever creates a retriever. keywordIndex may be nil.
func NewRetriever(
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	store storage.ChunkStore,
	weights Weights,
) *Retriever {
	if weights.Semantic == 0 && weights.Keyword == 0 {
		weights = DefaultWeights
	}
	return &Retriever{
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		store:        store,
		weights:      weights,
		keywordOpts:  &keyword.SearchOptions{PhraseBoost: 1.5},
	}
}

// Retrieve returns the k best chunks for query, most relevant first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.ContextItem, error) {
	if k <= 0 {
		return nil, nil
	}
	candidates := k * 4
	if candidates < minCandidates {
		candidates = minCandidates
	}

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*vector.VectorResult
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if r.keywordIndex != nil && r.weights.Keyword > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := r.keywordIndex.Search(ctx, query, candidates, r.keywordOpts)
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	if r.weights.Semantic > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queryEmbedding, err := r.embedder.Embed(ctx, query)
			if err != nil {
				errChan <- fmt.Errorf("embedding failed: %w", err)
				return
			}
			results, err := r.vectorIndex.Search(ctx, queryEmbedding, candidates)
			if err != nil {
				errChan <- fmt.Errorf("vector search failed: %w", err)
				return
			}
			semanticResults = results
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := Fuse(
		NormalizeKeywordScores(keywordResults),
		NormalizeSemanticScores(semanticResults),
		r.weights.Keyword, r.weights.Semantic,
	)

	items := make([]models.ContextItem, 0, k)
	for _, f := range fused {
		if len(items) == k {
			break
		}
		chunk, err := r.store.GetChunk(ctx, f.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve chunk %s: %w", f.ID, err)
		}
		items = append(items, models.ContextItem{
			ChunkID:       chunk.ID,
			Text:          chunk.Text,
			Score:         f.Score,
			SemanticScore: f.SemanticScore,
			KeywordScore:  f.KeywordScore,
			Metadata:      chunk.Metadata,
		})
	}
	return items, nil
}
