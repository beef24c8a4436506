package hypothesis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hyperjump/hypogen/internal/embedding"
	"github.com/hyperjump/hypogen/internal/indexer"
	"github.com/hyperjump/hypogen/internal/kegg"
	"github.com/hyperjump/hypogen/internal/loader"
	"github.com/hyperjump/hypogen/internal/models"
	"github.com/hyperjump/hypogen/internal/network"
	"github.com/hyperjump/hypogen/internal/storage"
	"github.com/hyperjump/hypogen/pkg/utils"
	"go.uber.org/zap"
)

// DataDirs are the input directories of one build. Literature is optional.
type DataDirs struct {
	KEGG          string
	GO            string
	Literature    string
	GAFBatchLines int
}

// LoadSources loads every input directory. Any failing file fails the whole load.
func LoadSources(ctx context.Context, dirs DataDirs, logger *zap.Logger) (indexer.Sources, error) {
	logger = utils.OrNop(logger)
	var src indexer.Sources

	text := loader.NewPlainTextReader(dirs.GAFBatchLines)
	goDocs, err := loader.LoadDirectory(ctx, dirs.GO, map[string]loader.Handler{
		".gaf": text,
		".txt": text,
		".tsv": text,
	}, loader.WithLogger(logger), loader.WithMetadata(map[string]string{models.MetaSource: models.SourceGO}))
	if err != nil {
		return src, fmt.Errorf("load GO annotations: %w", err)
	}
	src.GO = goDocs

	keggDocs, err := loader.LoadDirectory(ctx, dirs.KEGG, map[string]loader.Handler{
		".xml": kegg.Handler{},
	}, loader.WithLogger(logger))
	if err != nil {
		return src, fmt.Errorf("load KEGG pathways: %w", err)
	}
	src.KEGG = keggDocs

	if dirs.Literature != "" {
		litDocs, err := loader.LoadDirectory(ctx, dirs.Literature, loader.LiteratureHandlers(),
			loader.WithLogger(logger),
			loader.WithMetadata(map[string]string{models.MetaSource: models.SourceLiterature}))
		if err != nil {
			return src, fmt.Errorf("load literature: %w", err)
		}
		src.Literature = litDocs
	}
	return src, nil
}

// StorageFactory returns a fresh storage context for one build. Every call must return
// storage no other index uses; a failed build discards it.
type StorageFactory func() (indexer.Storage, error)

// GenerationStorage gives every build its own chunk store. With a database path each
// build generation gets its own SQLite file (see storage.GenerationPath), so a rebuild
// never touches the chunks the previous index still serves. Discarding a generation
// deletes its file.
func GenerationStorage(dims int, dbPath string) StorageFactory {
	var generation atomic.Uint64
	return func() (indexer.Storage, error) {
		path := storage.GenerationPath(dbPath, generation.Add(1))
		chunks, err := storage.New(path)
		if err != nil {
			return indexer.Storage{}, fmt.Errorf("failed to initialize storage: %w", err)
		}
		st, err := indexer.NewStorage(dims, chunks)
		if err != nil {
			_ = chunks.Close()
			return indexer.Storage{}, err
		}
		st.Remove = func() error { return storage.Remove(path) }
		return st, nil
	}
}

// IndexBuilder loads the sources in dirs and builds the combined index over a fresh
// storage context.
func IndexBuilder(dirs DataDirs, embedder embedding.Embedder, newStorage StorageFactory, logger *zap.Logger, opts ...indexer.Option) func(context.Context) (*indexer.Index, error) {
	logger = utils.OrNop(logger)
	return func(ctx context.Context) (*indexer.Index, error) {
		start := time.Now()
		src, err := LoadSources(ctx, dirs, logger)
		if err != nil {
			return nil, err
		}
		st, err := newStorage()
		if err != nil {
			return nil, err
		}
		idx, err := indexer.Build(ctx, src, embedder, st, append([]indexer.Option{indexer.WithLogger(logger)}, opts...)...)
		if err != nil {
			if derr := st.Discard(); derr != nil {
				logger.Warn("failed to discard storage of failed build", zap.Error(derr))
			}
			return nil, fmt.Errorf("build index: %w", err)
		}
		stats := idx.Stats()
		logger.Info("index ready",
			zap.Int("documents", stats.Documents),
			zap.Int("chunks", stats.Chunks),
			zap.Duration("duration", time.Since(start)))
		return idx, nil
	}
}

// NetworkBuilder builds the gene network from every pathway in keggDir. When exporter
// is non-nil the graph is mirrored to Neo4j; export failures are logged only.
func NetworkBuilder(keggDir string, exporter *network.Neo4jExporter, logger *zap.Logger) func(context.Context) (*network.Graph, error) {
	logger = utils.OrNop(logger)
	return func(ctx context.Context) (*network.Graph, error) {
		g, err := kegg.BuildNetworkFromDirectory(ctx, keggDir)
		if err != nil {
			return nil, fmt.Errorf("build gene network: %w", err)
		}
		logger.Info("network ready", zap.Int("nodes", g.NodeCount()), zap.Int("edges", g.EdgeCount()))
		if exporter != nil {
			if err := exporter.Export(ctx, g); err != nil {
				logger.Warn("neo4j export failed", zap.Error(err))
			}
		}
		return g, nil
	}
}
