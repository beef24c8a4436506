package loader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/hypogen/internal/fileid"
	"github.com/hyperjump/hypogen/internal/models"
)

// DefaultBatchLines is the number of lines per document for batched files.
const DefaultBatchLines = 10000

const maxLineBytes = 16 * 1024 * 1024

// PlainTextReader reads text files. Files whose extension is in BatchExtensions
// (".gaf" by default) are streamed and emitted as one document per BatchLines lines,
// plus a final partial batch. Other files become a single document.
type PlainTextReader struct {
	BatchLines      int
	BatchExtensions []string
}

// NewPlainTextReader returns a reader batching .gaf files every batchLines lines.
// A non-positive batchLines uses DefaultBatchLines.
func NewPlainTextReader(batchLines int) *PlainTextReader {
	if batchLines <= 0 {
		batchLines = DefaultBatchLines
	}
	return &PlainTextReader{BatchLines: batchLines, BatchExtensions: []string{".gaf"}}
}

// Load implements Handler.
func (r *PlainTextReader) Load(ctx context.Context, path string, extra map[string]string) ([]models.Document, error) {
	if r.batched(path) {
		return r.loadBatches(ctx, path, extra)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidEncoding)
	}
	return []models.Document{{
		ID:       docID(path),
		Text:     string(content),
		Metadata: baseMetadata(path, extra),
	}}, nil
}

func (r *PlainTextReader) batched(path string) bool {
	ext := extensionKey(filepath.Ext(path))
	for _, b := range r.BatchExtensions {
		if extensionKey(b) == ext {
			return true
		}
	}
	return false
}

// loadBatches streams path line by line. On any read or encoding error the documents
// collected so far are discarded.
func (r *PlainTextReader) loadBatches(ctx context.Context, path string, extra map[string]string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	batchLines := r.BatchLines
	if batchLines <= 0 {
		batchLines = DefaultBatchLines
	}
	base := docID(path)
	var (
		docs  []models.Document
		lines = make([]string, 0, batchLines)
		lineN int
	)
	emit := func() {
		batch := len(docs)
		meta := baseMetadata(path, extra)
		meta[models.MetaBatch] = strconv.Itoa(batch)
		docs = append(docs, models.Document{
			ID:       base + "#" + strconv.Itoa(batch),
			Text:     strings.Join(lines, "\n"),
			Metadata: meta,
		})
		lines = lines[:0]
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		lineN++
		line := sc.Text()
		if !utf8.ValidString(line) {
			return nil, fmt.Errorf("%s line %d: %w", path, lineN, ErrInvalidEncoding)
		}
		lines = append(lines, line)
		if len(lines) == batchLines {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			emit()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(lines) > 0 {
		emit()
	}
	return docs, nil
}

func docID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return fileid.FileDocID(path)
}
