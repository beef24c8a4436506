package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/hypogen/internal/models"
)

func sampleChunks() []models.Chunk {
	return []models.Chunk{
		{ID: "c2", DocumentID: "doc1", Index: 1, Text: "second", Metadata: map[string]string{"source": "go"}},
		{ID: "c1", DocumentID: "doc1", Index: 0, Text: "first", Metadata: map[string]string{"source": "go"}},
		{ID: "c3", DocumentID: "doc2", Index: 0, Text: "other"},
	}
}

func stores(t *testing.T) map[string]ChunkStore {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]ChunkStore{"memory": NewMemoryStore(), "sqlite": sq}
}

func TestChunkStore_CRUD(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.PutChunks(ctx, sampleChunks()); err != nil {
				t.Fatal(err)
			}

			got, err := store.GetChunk(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Text != "first" || got.DocumentID != "doc1" || got.Metadata["source"] != "go" {
				t.Errorf("got %+v", got)
			}

			if _, err := store.GetChunk(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("err=%v, want ErrNotFound", err)
			}

			list, err := store.GetChunksByDocumentID(ctx, "doc1")
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 || list[0].ID != "c1" || list[1].ID != "c2" {
				t.Errorf("unexpected order: %+v", list)
			}

			n, _ := store.CountChunks(ctx)
			d, _ := store.CountDocuments(ctx)
			if n != 3 || d != 2 {
				t.Errorf("chunks=%d docs=%d", n, d)
			}

			// upsert keeps the count
			if err := store.PutChunks(ctx, []models.Chunk{{ID: "c1", DocumentID: "doc1", Text: "replaced"}}); err != nil {
				t.Fatal(err)
			}
			got, _ = store.GetChunk(ctx, "c1")
			if got.Text != "replaced" {
				t.Errorf("text=%q", got.Text)
			}
			n, _ = store.CountChunks(ctx)
			if n != 3 {
				t.Errorf("chunks=%d after upsert", n)
			}

			if err := store.Reset(ctx); err != nil {
				t.Fatal(err)
			}
			n, _ = store.CountChunks(ctx)
			if n != 0 {
				t.Errorf("chunks=%d after reset", n)
			}
		})
	}
}

func TestChunkStore_ConcurrentPut(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			errs := make(chan error, 4)
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					batch := make([]models.Chunk, 25)
					for i := range batch {
						batch[i] = models.Chunk{ID: fmt.Sprintf("%d-%d", w, i), DocumentID: fmt.Sprint(w), Index: i, Text: "t"}
					}
					if err := store.PutChunks(ctx, batch); err != nil {
						errs <- err
					}
				}(w)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatal(err)
			}
			n, _ := store.CountChunks(ctx)
			if n != 100 {
				t.Errorf("chunks=%d, want 100", n)
			}
		})
	}
}

func TestMemoryStore_isolatesMetadata(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	meta := map[string]string{"k": "v"}
	_ = s.PutChunks(ctx, []models.Chunk{{ID: "a", Metadata: meta}})
	meta["k"] = "changed"

	got, _ := s.GetChunk(ctx, "a")
	if got.Metadata["k"] != "v" {
		t.Errorf("metadata aliased: %v", got.Metadata)
	}
}

func TestNew(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("New(\"\") = %T, want *MemoryStore", s)
	}
	s, err = New(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("New(path) = %T, want *SQLiteStore", s)
	}
}

func TestGenerationPath(t *testing.T) {
	tests := []struct {
		path string
		n    uint64
		want string
	}{
		{"", 3, ""},
		{"data/chunks.db", 1, "data/chunks.db"},
		{"data/chunks.db", 2, "data/chunks.2.db"},
		{"data/chunks", 7, "data/chunks.7"},
	}
	for _, tt := range tests {
		if got := GenerationPath(tt.path, tt.n); got != tt.want {
			t.Errorf("GenerationPath(%q, %d) = %q, want %q", tt.path, tt.n, got, tt.want)
		}
	}
}

func TestRemove_deletesDatabaseFiles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.2.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutChunks(ctx, sampleChunks()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if err := Remove(path); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still exists: %v", p, err)
		}
	}
	if err := Remove(path); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}
