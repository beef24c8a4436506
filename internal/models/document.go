package models

// Metadata keys attached to documents and chunks.
const (
	MetaFilePath = "file_path"
	MetaSource   = "source"
	MetaBatch    = "batch"
)

// Sources recorded under MetaSource.
const (
	SourceGO         = "go"
	SourceKEGG       = "kegg"
	SourceLiterature = "literature"
)

// Document is a text-bearing record produced by a loader.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Chunk is a bounded slice of a document's text, the unit that is embedded and indexed.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	Index      int               `json:"index"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Embedding  []float32         `json:"-"`
}

// CloneMetadata returns a copy of m that is safe to mutate.
func CloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
