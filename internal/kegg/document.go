package kegg

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/hyperjump/hypogen/internal/fileid"
	"github.com/hyperjump/hypogen/internal/models"
)

// Handler loads one pathway XML file as one document. It satisfies loader.Handler.
type Handler struct{}

// Load returns the full file content of path as a single document. The XML is
// parsed only to validate it and to fill the pathway metadata, so relations and
// non-gene entries stay searchable.
func (Handler) Load(ctx context.Context, path string, extra map[string]string) ([]models.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	p, err := ParsePathwayReader(bytes.NewReader(raw), path)
	if err != nil {
		return nil, err
	}
	meta := map[string]string{
		models.MetaFilePath: path,
		models.MetaSource:   models.SourceKEGG,
		"pathway_id":        p.ID,
		"pathway_title":     p.Title,
	}
	for k, v := range extra {
		meta[k] = v
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return []models.Document{{
		ID:       fileid.FileDocID(abs),
		Text:     string(raw),
		Metadata: meta,
	}}, nil
}
