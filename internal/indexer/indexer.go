// Package indexer splits loaded documents into chunks and builds the combined
// semantic and keyword index over them.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/hypogen/internal/embedding"
	"github.com/hyperjump/hypogen/internal/keyword"
	"github.com/hyperjump/hypogen/internal/models"
	"github.com/hyperjump/hypogen/internal/search"
	"github.com/hyperjump/hypogen/internal/storage"
	"github.com/hyperjump/hypogen/internal/vector"
	"github.com/hyperjump/hypogen/pkg/utils"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Defaults for the build pools.
const (
	DefaultInsertWorkers  = 4
	DefaultEmbedBatchSize = 64
)

var (
	// ErrNoStorage is returned by Build when the storage context is incomplete.
	ErrNoStorage = errors.New("indexer: vector index and chunk store are required")
	// ErrClosed is returned by Query on an index that has been closed.
	ErrClosed = errors.New("indexer: index is closed")
)

// Sources are the loaded inputs of one build. GO documents are the GAF batches and are
// split in parallel; KEGG and literature documents are split in the second pass only.
type Sources struct {
	GO         []models.Document
	KEGG       []models.Document
	Literature []models.Document
}

// Len returns the total number of documents.
func (s Sources) Len() int {
	return len(s.GO) + len(s.KEGG) + len(s.Literature)
}

// Storage is the shared storage context all insertion workers write into. Each build
// owns its own Storage. Keywords is optional.
type Storage struct {
	Vectors  vector.VectorIndex
	Chunks   storage.ChunkStore
	Keywords keyword.KeywordIndex

	// Remove deletes on-disk state after Close. Called by Discard only.
	Remove func() error
}

// Close releases every index and store in s.
func (s Storage) Close() error {
	var errs []error
	if s.Vectors != nil {
		errs = append(errs, s.Vectors.Close())
	}
	if s.Keywords != nil {
		errs = append(errs, s.Keywords.Close())
	}
	if s.Chunks != nil {
		errs = append(errs, s.Chunks.Close())
	}
	return errors.Join(errs...)
}

// Discard closes s and removes whatever it persisted.
func (s Storage) Discard() error {
	err := s.Close()
	if s.Remove != nil {
		err = errors.Join(err, s.Remove())
	}
	return err
}

// Stats describes a finished build.
type Stats struct {
	Documents      int           `json:"documents"`
	GOChunks       int           `json:"go_chunks"`
	Chunks         int           `json:"chunks"`
	Vectors        int           `json:"vectors"`
	SplitDuration  time.Duration `json:"split_duration"`
	InsertDuration time.Duration `json:"insert_duration"`
	TotalDuration  time.Duration `json:"total_duration"`
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	chunkSize      int
	chunkOverlap   int
	splitWorkers   int
	insertWorkers  int
	embedBatchSize int
	weights        search.Weights
	logger         *zap.Logger
}

// WithLogger sets a logger for phase timings and counts.
func WithLogger(l *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = l }
}

// WithChunking sets the splitter budget in tokens.
func WithChunking(size, overlap int) Option {
	return func(o *buildOptions) {
		o.chunkSize = size
		o.chunkOverlap = overlap
	}
}

// WithSplitWorkers sets the size of the split pool. Default runtime.NumCPU().
func WithSplitWorkers(n int) Option {
	return func(o *buildOptions) { o.splitWorkers = n }
}

// WithInsertWorkers sets how many slices are embedded and inserted at once. Default 4.
func WithInsertWorkers(n int) Option {
	return func(o *buildOptions) { o.insertWorkers = n }
}

// WithEmbedBatchSize sets how many chunks go to one EmbedBatch call. Default 64.
func WithEmbedBatchSize(n int) Option {
	return func(o *buildOptions) { o.embedBatchSize = n }
}

// WithWeights sets the fusion weights used by the returned index.
func WithWeights(w search.Weights) Option {
	return func(o *buildOptions) { o.weights = w }
}

func applyOptions(opts []Option) buildOptions {
	o := buildOptions{
		chunkSize:      DefaultChunkSize,
		chunkOverlap:   DefaultChunkOverlap,
		splitWorkers:   runtime.NumCPU(),
		insertWorkers:  DefaultInsertWorkers,
		embedBatchSize: DefaultEmbedBatchSize,
		weights:        search.DefaultWeights,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.splitWorkers <= 0 {
		o.splitWorkers = runtime.NumCPU()
	}
	if o.insertWorkers <= 0 {
		o.insertWorkers = DefaultInsertWorkers
	}
	if o.embedBatchSize <= 0 {
		o.embedBatchSize = DefaultEmbedBatchSize
	}
	o.logger = utils.OrNop(o.logger)
	return o
}

// Index is a query frontend over a built storage context. It owns the storage: Close
// waits for running queries, then releases it.
type Index struct {
	storage   Storage
	retriever *search.Retriever
	stats     Stats

	mu     sync.RWMutex
	closed bool
}

// Build splits sources, embeds every chunk and inserts it into st. The chunk store is
// reset first so a reused store never mixes old and new chunks. The first failure in
// any worker cancels the rest and Build returns no index; st is left to the caller.
func Build(ctx context.Context, src Sources, embedder embedding.Embedder, st Storage, opts ...Option) (*Index, error) {
	o := applyOptions(opts)
	if embedder == nil {
		return nil, errors.New("indexer: embedder is required")
	}
	if st.Vectors == nil || st.Chunks == nil {
		return nil, ErrNoStorage
	}
	if embedder.Dimensions() != st.Vectors.Dimensions() {
		return nil, fmt.Errorf("indexer: embedder dimensions %d do not match vector index dimensions %d",
			embedder.Dimensions(), st.Vectors.Dimensions())
	}
	splitter, err := NewSentenceSplitter(o.chunkSize, o.chunkOverlap)
	if err != nil {
		return nil, err
	}
	WarmUp()

	start := time.Now()
	if err := st.Chunks.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset chunk store: %w", err)
	}

	o.logger.Debug("split phase started",
		zap.Int("go_documents", len(src.GO)), zap.Int("workers", o.splitWorkers))
	goChunks, err := splitParallel(ctx, splitter, src.GO, o.splitWorkers)
	if err != nil {
		return nil, err
	}
	chunks := splitter.SplitChunks(goChunks)
	chunks = append(chunks, splitter.SplitDocuments(src.KEGG)...)
	chunks = append(chunks, splitter.SplitDocuments(src.Literature)...)
	splitDone := time.Now()
	o.logger.Debug("split phase finished",
		zap.Int("go_chunks", len(goChunks)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", splitDone.Sub(start)))

	if err := insertParallel(ctx, chunks, embedder, st, o); err != nil {
		return nil, err
	}
	end := time.Now()
	o.logger.Debug("insert phase finished",
		zap.Int("vectors", st.Vectors.Size()),
		zap.Duration("duration", end.Sub(splitDone)))

	return &Index{
		storage:   st,
		retriever: search.NewRetriever(embedder, st.Vectors, st.Keywords, st.Chunks, o.weights),
		stats: Stats{
			Documents:      src.Len(),
			GOChunks:       len(goChunks),
			Chunks:         len(chunks),
			Vectors:        st.Vectors.Size(),
			SplitDuration:  splitDone.Sub(start),
			InsertDuration: end.Sub(splitDone),
			TotalDuration:  end.Sub(start),
		},
	}, nil
}

// splitParallel splits each document in its own pool task. Results land in per-document
// slots so the output keeps document order regardless of scheduling.
func splitParallel(ctx context.Context, splitter *SentenceSplitter, docs []models.Document, workers int) ([]models.Chunk, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create split pool: %w", err)
	}
	defer pool.Release()

	slots := make([][]models.Chunk, len(docs))
	errs := make([]error, len(docs))
	var wg sync.WaitGroup
	for i := range docs {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("split document %s: panic: %v", docs[i].ID, r)
				}
			}()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			slots[i] = splitter.SplitDocuments(docs[i : i+1])
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit split task: %w", err)
		}
	}
	wg.Wait()

	total := 0
	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		total += len(slots[i])
	}
	out := make([]models.Chunk, 0, total)
	for _, s := range slots {
		out = append(out, s...)
	}
	return out, nil
}

// insertParallel embeds and inserts contiguous slices of chunks concurrently.
func insertParallel(ctx context.Context, chunks []models.Chunk, embedder embedding.Embedder, st Storage, o buildOptions) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.insertWorkers)
	for _, r := range Partition(len(chunks), o.insertWorkers) {
		r := r
		part := chunks[r.Start:r.End]
		g.Go(func() error {
			for start := 0; start < len(part); start += o.embedBatchSize {
				if err := gctx.Err(); err != nil {
					return err
				}
				end := start + o.embedBatchSize
				if end > len(part) {
					end = len(part)
				}
				if err := insertBatch(gctx, part[start:end], embedder, st); err != nil {
					return err
				}
				o.logger.Debug("batch inserted", zap.Int("offset", r.Start+start), zap.Int("chunks", end-start))
			}
			return nil
		})
	}
	return g.Wait()
}

func insertBatch(ctx context.Context, batch []models.Chunk, embedder embedding.Embedder, st Storage) error {
	texts := make([]string, len(batch))
	ids := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
		ids[i] = c.ID
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
	}
	if err := st.Vectors.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	if err := st.Chunks.PutChunks(ctx, batch); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	if st.Keywords != nil {
		if err := st.Keywords.IndexChunks(ctx, batch); err != nil {
			return fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	return nil
}

// Range is a half-open slice [Start, End).
type Range struct {
	Start, End int
}

// Partition cuts n elements into at most parts contiguous ranges whose sizes differ
// by at most one. Empty ranges are omitted.
func Partition(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts <= 0 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	size, rem := n/parts, n%parts
	out := make([]Range, 0, parts)
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rem {
			end++
		}
		out = append(out, Range{Start: start, End: end})
		start = end
	}
	return out
}

// Query returns the k most relevant chunks for text.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]models.ContextItem, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, ErrClosed
	}
	return ix.retriever.Retrieve(ctx, text, k)
}

// Stats returns counts and timings of the build that produced ix.
func (ix *Index) Stats() Stats {
	return ix.stats
}

// SaveVectors writes the vector index to path.
func (ix *Index) SaveVectors(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return ErrClosed
	}
	return ix.storage.Vectors.Save(path)
}

// Close releases the storage, keeping anything persisted. Closing twice is a no-op.
func (ix *Index) Close() error {
	return ix.shutdown(Storage.Close)
}

// Discard closes ix and removes its persisted storage. Used for an index that a
// rebuild has replaced.
func (ix *Index) Discard() error {
	return ix.shutdown(Storage.Discard)
}

func (ix *Index) shutdown(release func(Storage) error) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return release(ix.storage)
}

// ContextString joins retrieved chunk texts with blank lines.
func ContextString(items []models.ContextItem) string {
	texts := make([]string, 0, len(items))
	for _, it := range items {
		if t := strings.TrimSpace(it.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}

// NewStorage returns a fresh storage context: an in-memory vector index of dims
// dimensions and an in-memory bleve index, over the given chunk store.
func NewStorage(dims int, chunks storage.ChunkStore) (Storage, error) {
	vectors, err := vector.NewMemoryIndex(dims)
	if err != nil {
		return Storage{}, fmt.Errorf("create vector index: %w", err)
	}
	keywords, err := keyword.NewBleveIndex("")
	if err != nil {
		_ = vectors.Close()
		return Storage{}, fmt.Errorf("create keyword index: %w", err)
	}
	return Storage{Vectors: vectors, Chunks: chunks, Keywords: keywords}, nil
}
