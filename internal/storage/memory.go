package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/hypogen/internal/models"
)

// MemoryStore is a ChunkStore backed by a map.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]models.Chunk
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]models.Chunk)}
}

func (s *MemoryStore) PutChunks(ctx context.Context, chunks []models.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		c.Metadata = models.CloneMetadata(c.Metadata)
		c.Embedding = nil
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	s.mu.RLock()
	c, ok := s.chunks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	c.Metadata = models.CloneMetadata(c.Metadata)
	return &c, nil
}

func (s *MemoryStore) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error) {
	s.mu.RLock()
	var out []*models.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == docID {
			c := c
			c.Metadata = models.CloneMetadata(c.Metadata)
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *MemoryStore) CountChunks(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

func (s *MemoryStore) CountDocuments(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make(map[string]struct{})
	for _, c := range s.chunks {
		docs[c.DocumentID] = struct{}{}
	}
	return int64(len(docs)), nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.chunks = make(map[string]models.Chunk)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
