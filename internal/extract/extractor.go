// Package extract pulls plain text out of literature files (PDF, Word, spreadsheets, text)
// so they can be indexed next to pathway and annotation data.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lu4p/cat"
)

type bytesFunc func(content []byte) (string, error)

var byteExtractors = map[string]bytesFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
}

// pathExtractors need the file on disk.
var pathExtractors = map[string]func(path string) (string, error){
	".odt": cat.File,
	".rtf": cat.File,
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the extensions Extract understands, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(byteExtractors)+len(pathExtractors))
	for ext := range byteExtractors {
		exts = append(exts, ext)
	}
	for ext := range pathExtractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads the file at path and returns its text content.
// Returns an error if the file cannot be read or the format is unsupported.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if fn, ok := pathExtractors[ext]; ok {
		text, err := fn(path)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		return strings.TrimSpace(text), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension (with leading dot).
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := byteExtractors[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("unsupported format %q", ext)
	}
	return fn(content)
}
