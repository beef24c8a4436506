// Package loader reads raw input files into uniform text-bearing documents.
//
// A directory is scanned non-recursively and every file whose extension has a
// registered Handler is loaded. If any file fails, LoadDirectory fails as a whole
// and returns no documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/hypogen/internal/models"
	"go.uber.org/zap"
)

// ErrInvalidEncoding is wrapped by errors for files that are not valid UTF-8.
var ErrInvalidEncoding = errors.New("invalid UTF-8")

// Handler turns one file into documents. extra is merged over the default
// metadata ({"file_path": path}) of every document produced.
type Handler interface {
	Load(ctx context.Context, path string, extra map[string]string) ([]models.Document, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, path string, extra map[string]string) ([]models.Document, error)

// Load calls f.
func (f HandlerFunc) Load(ctx context.Context, path string, extra map[string]string) ([]models.Document, error) {
	return f(ctx, path, extra)
}

// Option configures LoadDirectory.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	metadata map[string]string
}

// WithLogger sets a logger for debug output (file loaded, documents produced).
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetadata adds metadata to every document loaded from the directory.
func WithMetadata(m map[string]string) Option {
	return func(o *options) { o.metadata = m }
}

// LoadDirectory loads every regular file directly inside dir whose extension has a handler
// in handlers (keys like ".gaf" or "gaf", case-insensitive). Files are visited in name order.
// Sub-directories and files without a handler are skipped.
func LoadDirectory(ctx context.Context, dir string, handlers map[string]Handler, opts ...Option) ([]models.Document, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	byExt := make(map[string]Handler, len(handlers))
	for ext, h := range handlers {
		byExt[extensionKey(ext)] = h
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var docs []models.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		h, ok := byExt[extensionKey(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		loaded, err := h.Load(ctx, path, o.metadata)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if o.logger != nil {
			o.logger.Debug("loader file loaded", zap.String("path", path), zap.Int("documents", len(loaded)))
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}

func extensionKey(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// baseMetadata returns {"file_path": path} overlaid with extra.
func baseMetadata(path string, extra map[string]string) map[string]string {
	m := map[string]string{models.MetaFilePath: path}
	for k, v := range extra {
		m[k] = v
	}
	return m
}
