package loader

import (
	"context"

	"github.com/hyperjump/hypogen/internal/extract"
	"github.com/hyperjump/hypogen/internal/models"
)

// ExtractReader loads binary and office formats (PDF, DOCX, XLSX, ...) as one document per file.
type ExtractReader struct {
	extractor *extract.Extractor
}

// NewExtractReader returns a Handler backed by extract.Extractor.
func NewExtractReader() *ExtractReader {
	return &ExtractReader{extractor: extract.NewExtractor()}
}

// Load implements Handler.
func (r *ExtractReader) Load(ctx context.Context, path string, extra map[string]string) ([]models.Document, error) {
	text, err := r.extractor.Extract(path)
	if err != nil {
		return nil, err
	}
	return []models.Document{{
		ID:       docID(path),
		Text:     text,
		Metadata: baseMetadata(path, extra),
	}}, nil
}

// LiteratureHandlers maps every extension ExtractReader supports to a shared reader.
func LiteratureHandlers() map[string]Handler {
	r := NewExtractReader()
	handlers := make(map[string]Handler)
	for _, ext := range extract.SupportedExtensions() {
		handlers[ext] = r
	}
	return handlers
}
