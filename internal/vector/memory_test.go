package vector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}
}

func TestMemoryIndex_tiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"first", "second", "third"}, [][]float32{{1, 0}, {1, 0}, {1, 0}})

	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].ID != want {
			t.Errorf("results[%d]=%s, want %s", i, results[i].ID, want)
		}
	}
}

func TestMemoryIndex_dimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	err := idx.Add(ctx, []string{"ok", "bad"}, [][]float32{{1, 0}, {1, 0, 0}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err=%v, want ErrDimensionMismatch", err)
	}
	if idx.Size() != 0 {
		t.Errorf("partial batch stored: size=%d", idx.Size())
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("search err=%v", err)
	}
}

func TestMemoryIndex_InvalidDimension(t *testing.T) {
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestMemoryIndex_ConcurrentAdd(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = idx.Add(ctx, []string{fmt.Sprintf("%d-%d", w, i)}, [][]float32{{1, 0}})
			}
		}(w)
	}
	wg.Wait()
	if idx.Size() != 400 {
		t.Errorf("Size=%d, want 400", idx.Size())
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "vectors.bin")
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("Size=%d, want 2", loaded.Size())
	}
	res, _ := loaded.Search(ctx, []float32{0, 1}, 1)
	if res[0].ID != "y" {
		t.Errorf("top=%s, want y", res[0].ID)
	}

	wrong, _ := NewMemoryIndex(3)
	if err := wrong.Load(path); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err=%v, want ErrDimensionMismatch", err)
	}
	if err := loaded.Load(filepath.Join(t.TempDir(), "missing.bin")); err != nil {
		t.Errorf("missing file: %v", err)
	}
}

func TestOpenMemoryIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	idx, _ := NewMemoryIndex(3)
	_ = idx.Add(context.Background(), []string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	opened, err := OpenMemoryIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if opened.Dimensions() != 3 || opened.Size() != 2 {
		t.Errorf("dims=%d size=%d, want 3 and 2", opened.Dimensions(), opened.Size())
	}
	if _, err := OpenMemoryIndex(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{2, 0}, []float32{5, 0}); got < 0.999 {
		t.Errorf("parallel=%v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal=%v", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero=%v", got)
	}
}
