// Package storage persists indexed chunks so retrieval hits can be resolved back to text.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/hypogen/internal/models"
)

// ErrNotFound is returned when a chunk ID is not in the store.
var ErrNotFound = errors.New("not found")

// ChunkStore holds chunk text and metadata keyed by chunk ID. Implementations must be
// safe for concurrent use by the build's insertion workers.
type ChunkStore interface {
	// PutChunks stores chunks, replacing any with the same ID.
	PutChunks(ctx context.Context, chunks []models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	// GetChunksByDocumentID returns a document's chunks ordered by chunk index.
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)

	CountChunks(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)

	// Reset removes every chunk. A full rebuild starts from an empty store.
	Reset(ctx context.Context) error
	Close() error
}

// New returns a SQLiteStore at dbPath, or a MemoryStore when dbPath is empty.
func New(dbPath string) (ChunkStore, error) {
	if dbPath == "" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(dbPath)
}

// GenerationPath returns the database path of build generation n. Generation 1 uses
// dbPath itself; later ones insert the generation before the extension, so
// "chunks.db" becomes "chunks.2.db". An empty dbPath stays empty.
func GenerationPath(dbPath string, n uint64) string {
	if dbPath == "" || n <= 1 {
		return dbPath
	}
	ext := filepath.Ext(dbPath)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(dbPath, ext), n, ext)
}

// Remove deletes the SQLite database at dbPath together with its WAL and shared
// memory files. Missing files are ignored.
func Remove(dbPath string) error {
	if dbPath == "" {
		return nil
	}
	var errs []error
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
