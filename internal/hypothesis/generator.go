// Package hypothesis answers questions by combining hybrid retrieval over the
// combined index, facts from the gene network, and one model call per attempt.
package hypothesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/hypogen/internal/indexer"
	"github.com/hyperjump/hypogen/internal/llm"
	"github.com/hyperjump/hypogen/internal/models"
	"github.com/hyperjump/hypogen/internal/network"
	"github.com/hyperjump/hypogen/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Defaults for Generator.
const (
	DefaultTopK       = 4
	DefaultMaxRetries = 2
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
)

// networkHeading introduces the gene network facts appended to the context.
const networkHeading = "Gene network:"

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(k int) Option {
	return func(g *Generator) {
		if k > 0 {
			g.topK = k
		}
	}
}

// WithMaxRetries sets how many times a transient model error is retried.
func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// WithBackoff sets the first retry delay and its cap. Delays double per attempt.
func WithBackoff(base, limit time.Duration) Option {
	return func(g *Generator) {
		g.backoff = base
		g.maxBackoff = limit
	}
}

// WithNetworkAugmentation turns the gene network facts on or off. On by default.
func WithNetworkAugmentation(enabled bool) Option {
	return func(g *Generator) { g.augment = enabled }
}

// Generator owns the lazily built index and network and produces hypotheses.
type Generator struct {
	index   *Lazy[*indexer.Index]
	network *Lazy[*network.Graph]
	agent   *llm.Agent
	logger  *zap.Logger

	topK       int
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	augment    bool
	sleep      func(ctx context.Context, d time.Duration) error
}

// New returns a Generator. Nothing is built until first use or WarmUp.
func New(
	buildIndex func(context.Context) (*indexer.Index, error),
	buildNetwork func(context.Context) (*network.Graph, error),
	agent *llm.Agent,
	opts ...Option,
) *Generator {
	g := &Generator{
		index:      NewLazy(buildIndex),
		network:    NewLazy(buildNetwork),
		agent:      agent,
		topK:       DefaultTopK,
		maxRetries: DefaultMaxRetries,
		backoff:    defaultBackoff,
		maxBackoff: defaultMaxBackoff,
		augment:    true,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)
	g.index.WithRetire(g.discardIndex)
	return g
}

// discardIndex releases an index a rebuild has replaced, along with its storage.
func (g *Generator) discardIndex(idx *indexer.Index) {
	if idx == nil {
		return
	}
	if err := idx.Discard(); err != nil {
		g.logger.Warn("failed to discard replaced index", zap.Error(err))
		return
	}
	g.logger.Debug("replaced index discarded")
}

// Close closes the current index, keeping whatever it persisted, and discards every
// index a rebuild replaced. Requests after Close fail with ErrClosed.
func (g *Generator) Close() error {
	g.network.Close()
	idx, ok := g.index.Close()
	if !ok || idx == nil {
		return nil
	}
	return idx.Close()
}

// CombinedIndex returns the combined index, building it on first use.
func (g *Generator) CombinedIndex(ctx context.Context) (*indexer.Index, error) {
	return g.index.Get(ctx)
}

// GeneNetwork returns the gene network, building it on first use.
func (g *Generator) GeneNetwork(ctx context.Context) (*network.Graph, error) {
	return g.network.Get(ctx)
}

// WarmUp builds the index and the network concurrently.
func (g *Generator) WarmUp(ctx context.Context) error {
	indexer.WarmUp()
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		_, err := g.CombinedIndex(egctx)
		return err
	})
	eg.Go(func() error {
		_, err := g.GeneNetwork(egctx)
		return err
	})
	return eg.Wait()
}

// Invalidate drops the cached index and network. The next request rebuilds both.
// Requests already holding the old index keep querying it until the rebuild lands.
func (g *Generator) Invalidate() {
	g.index.Reset()
	g.network.Reset()
	g.logger.Info("index and network invalidated")
}

// Status reports what is currently built, without building anything.
type Status struct {
	IndexReady   bool          `json:"index_ready"`
	NetworkReady bool          `json:"network_ready"`
	Index        indexer.Stats `json:"index"`
	Genes        int           `json:"genes"`
	Interactions int           `json:"interactions"`
}

// Status returns the current build state.
func (g *Generator) Status() Status {
	var s Status
	if idx, ok := g.index.Peek(); ok {
		s.IndexReady = true
		s.Index = idx.Stats()
	}
	if net, ok := g.network.Peek(); ok {
		s.NetworkReady = true
		s.Genes = net.NodeCount()
		s.Interactions = net.EdgeCount()
	}
	return s
}

// Generate answers question with a hypothesis grounded in retrieved context.
func (g *Generator) Generate(ctx context.Context, question string) (*models.Hypothesis, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	start := time.Now()
	reqID := uuid.NewString()
	log := g.logger.With(zap.String("request_id", reqID))

	idx, err := g.CombinedIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("combined index: %w", err)
	}
	items, err := idx.Query(ctx, question, g.topK)
	if errors.Is(err, indexer.ErrClosed) {
		// replaced by a rebuild between CombinedIndex and Query
		if idx, err = g.CombinedIndex(ctx); err != nil {
			return nil, fmt.Errorf("combined index: %w", err)
		}
		items, err = idx.Query(ctx, question, g.topK)
	}
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	contextText := indexer.ContextString(items)

	var facts []string
	if g.augment {
		facts = g.networkFacts(ctx, question, log)
		if len(facts) > 0 {
			contextText += "\n\n" + networkHeading + "\n" + strings.Join(facts, "\n")
		}
	}

	answer, err := g.ask(ctx, question, contextText, log)
	if err != nil {
		return nil, err
	}
	h := &models.Hypothesis{
		RequestID:    reqID,
		Question:     question,
		Answer:       answer,
		Context:      items,
		NetworkFacts: facts,
		Duration:     time.Since(start),
	}
	log.Debug("hypothesis generated",
		zap.Int("context_items", len(items)),
		zap.Int("network_facts", len(facts)),
		zap.Duration("duration", h.Duration))
	return h, nil
}

// Ask returns only the answer text of Generate.
func (g *Generator) Ask(ctx context.Context, question string) (string, error) {
	h, err := g.Generate(ctx, question)
	if err != nil {
		return "", err
	}
	return h.Answer, nil
}

// networkFacts is best-effort: a network that fails to build adds nothing.
func (g *Generator) networkFacts(ctx context.Context, question string, log *zap.Logger) []string {
	net, err := g.GeneNetwork(ctx)
	if err != nil {
		log.Warn("gene network unavailable, skipping augmentation", zap.Error(err))
		return nil
	}
	return network.Facts(net, DetectGenes(net, question))
}

// DetectGenes returns the network node ids named in text, in order of first mention.
// Matching ignores case and skips English stop words.
func DetectGenes(net *network.Graph, text string) []string {
	if net == nil {
		return nil
	}
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	for _, word := range indexer.Words(text) {
		if indexer.IsStopWord(word) {
			continue
		}
		id, ok := net.Lookup(word)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ask calls the agent, retrying transient failures with jittered exponential backoff.
func (g *Generator) ask(ctx context.Context, question, contextText string, log *zap.Logger) (string, error) {
	delay := g.backoff
	for attempt := 0; ; attempt++ {
		log.Debug("llm request", zap.Int("attempt", attempt+1))
		answer, err := g.agent.GenerateHypothesis(ctx, question, contextText)
		if err == nil {
			return answer, nil
		}
		if !llm.IsTransient(err) || attempt >= g.maxRetries {
			return "", err
		}
		wait := llm.Jitter(delay)
		var le *llm.Error
		if errors.As(err, &le) && le.RetryAfter > wait {
			wait = le.RetryAfter
		}
		if g.maxBackoff > 0 && wait > g.maxBackoff {
			wait = g.maxBackoff
		}
		log.Debug("llm transient error, retrying", zap.Error(err), zap.Duration("wait", wait))
		if err := g.sleep(ctx, wait); err != nil {
			return "", err
		}
		delay *= 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
