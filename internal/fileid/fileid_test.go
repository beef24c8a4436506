package fileid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestFileDocID(t *testing.T) {
	id1 := FileDocID("/data/kegg/hsa00010.xml")
	id2 := FileDocID("/data/kegg/hsa00010.xml")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if FileDocID("/data/kegg/hsa00020.xml") == id1 {
		t.Error("different paths should give different IDs")
	}
}

func TestFileDocID_normalized(t *testing.T) {
	id1 := FileDocID("/foo/bar")
	if id1 != FileDocID("/foo/bar/") || id1 != FileDocID("/foo/./bar") {
		t.Error("paths that clean to the same value should share an ID")
	}
}

func TestChunkID(t *testing.T) {
	a := ChunkID("file:abc", 0)
	if a != ChunkID("file:abc", 0) {
		t.Error("ChunkID should be deterministic")
	}
	if a == ChunkID("file:abc", 1) || a == ChunkID("file:abd", 0) {
		t.Error("ChunkID should differ across documents and indices")
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("ChunkID is not a UUID: %v", err)
	}
	if parsed.Version() != 5 {
		t.Errorf("ChunkID version = %d, want 5", parsed.Version())
	}
}
