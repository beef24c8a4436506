package hypothesis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/hypogen/internal/embedding"
	"github.com/hyperjump/hypogen/internal/indexer"
	"github.com/hyperjump/hypogen/internal/llm"
	"github.com/hyperjump/hypogen/internal/models"
	"github.com/hyperjump/hypogen/internal/network"
	"github.com/hyperjump/hypogen/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dims = 16

// scriptedClient fails with errs in order, then answers.
type scriptedClient struct {
	mu       sync.Mutex
	errs     []error
	answer   string
	calls    int
	messages []llm.Message
}

func (c *scriptedClient) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.messages = messages
	if c.calls <= len(c.errs) {
		return "", c.errs[c.calls-1]
	}
	return c.answer, nil
}

func (c *scriptedClient) userPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[len(c.messages)-1].Content
}

func testIndex(ctx context.Context) (*indexer.Index, error) {
	st, err := indexer.NewStorage(dims, storage.NewMemoryStore())
	if err != nil {
		return nil, err
	}
	src := indexer.Sources{
		GO: []models.Document{{ID: "go-0", Text: "UniProtKB\tP04637\tTP53\tGO:0006915 apoptotic process"}},
		KEGG: []models.Document{{
			ID:   "kegg-0",
			Text: "KEGG pathway hsa04115 (number 04115): p53 signaling pathway. Gene TP53 (hsa:TP53).",
		}},
	}
	return indexer.Build(ctx, src, embedding.NewMockEmbedder(dims), st)
}

func testNetwork(ctx context.Context) (*network.Graph, error) {
	g := network.New()
	g.AddEdge("TP53", "MDM2", "inhibition")
	g.AddEdge("ATM", "TP53", "activation")
	g.AddNode("was")
	return g, nil
}

type recordedSleeps struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newGenerator(client llm.ChatClient, opts ...Option) (*Generator, *recordedSleeps) {
	g := New(testIndex, testNetwork, llm.NewAgent(client, "instructions"), opts...)
	rs := &recordedSleeps{}
	g.sleep = rs.sleep
	return g, rs
}

func TestGenerate_addsNetworkFacts(t *testing.T) {
	client := &scriptedClient{answer: "TP53 is involved."}
	g, _ := newGenerator(client)

	h, err := g.Generate(context.Background(), "  Is TP53 involved in apoptosis?  ")
	require.NoError(t, err)
	assert.Equal(t, "TP53 is involved.", h.Answer)
	assert.Equal(t, "Is TP53 involved in apoptosis?", h.Question)
	assert.NotEmpty(t, h.RequestID)
	assert.NotEmpty(t, h.Context)
	assert.Equal(t, []string{"TP53 -[inhibition]-> MDM2", "ATM -[activation]-> TP53"}, h.NetworkFacts)

	prompt := client.userPrompt()
	assert.True(t, strings.HasPrefix(prompt, "Question: Is TP53 involved in apoptosis?\n\nContext:\n"))
	assert.Contains(t, prompt, "\n\nGene network:\nTP53 -[inhibition]-> MDM2\nATM -[activation]-> TP53")
}

func TestGenerate_noGenesNoNetworkSection(t *testing.T) {
	client := &scriptedClient{answer: "unclear"}
	g, _ := newGenerator(client)
	h, err := g.Generate(context.Background(), "What causes glycolysis defects?")
	require.NoError(t, err)
	assert.Empty(t, h.NetworkFacts)
	assert.NotContains(t, client.userPrompt(), networkHeading)
}

func TestGenerate_networkFailureIsSkipped(t *testing.T) {
	client := &scriptedClient{answer: "ok"}
	failing := func(ctx context.Context) (*network.Graph, error) { return nil, errors.New("no pathways") }
	g := New(testIndex, failing, llm.NewAgent(client, "i"))

	h, err := g.Generate(context.Background(), "Is TP53 involved?")
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Answer)
	assert.Empty(t, h.NetworkFacts)
}

func TestGenerate_augmentationDisabled(t *testing.T) {
	var builds atomic.Int32
	counting := func(ctx context.Context) (*network.Graph, error) {
		builds.Add(1)
		return testNetwork(ctx)
	}
	client := &scriptedClient{answer: "ok"}
	g := New(testIndex, counting, llm.NewAgent(client, "i"), WithNetworkAugmentation(false))
	h, err := g.Generate(context.Background(), "Is TP53 involved?")
	require.NoError(t, err)
	assert.Empty(t, h.NetworkFacts)
	assert.Equal(t, int32(0), builds.Load())
}

func TestGenerate_emptyAnswerIsNotAnError(t *testing.T) {
	g, _ := newGenerator(&scriptedClient{answer: ""})
	h, err := g.Generate(context.Background(), "Is TP53 involved?")
	require.NoError(t, err)
	assert.Equal(t, "", h.Answer)
}

func TestGenerate_emptyQuestion(t *testing.T) {
	g, _ := newGenerator(&scriptedClient{})
	_, err := g.Generate(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestGenerate_retriesTransientErrors(t *testing.T) {
	client := &scriptedClient{
		errs: []error{
			&llm.Error{Kind: llm.KindTransient, StatusCode: 503},
			&llm.Error{Kind: llm.KindTransient, StatusCode: 429, RetryAfter: 3 * time.Second},
		},
		answer: "finally",
	}
	g, rs := newGenerator(client, WithMaxRetries(2), WithBackoff(100*time.Millisecond, 10*time.Second))

	answer, err := g.Ask(context.Background(), "Is TP53 involved?")
	require.NoError(t, err)
	assert.Equal(t, "finally", answer)
	assert.Equal(t, 3, client.calls)
	require.Len(t, rs.waits, 2)
	assert.InDelta(t, float64(100*time.Millisecond), float64(rs.waits[0]), float64(20*time.Millisecond))
	assert.Equal(t, 3*time.Second, rs.waits[1])
}

func TestGenerate_retryWaitIsCapped(t *testing.T) {
	client := &scriptedClient{
		errs:   []error{&llm.Error{Kind: llm.KindTransient, StatusCode: 429, RetryAfter: time.Hour}},
		answer: "ok",
	}
	g, rs := newGenerator(client, WithBackoff(10*time.Millisecond, time.Second))
	_, err := g.Generate(context.Background(), "Is TP53 involved?")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, rs.waits)
}

func TestGenerate_stopsOnPermanentError(t *testing.T) {
	client := &scriptedClient{errs: []error{&llm.Error{Kind: llm.KindPermanent, StatusCode: 400}}}
	g, rs := newGenerator(client, WithMaxRetries(5))

	_, err := g.Generate(context.Background(), "Is TP53 involved?")
	require.Error(t, err)
	assert.True(t, llm.IsPermanent(err))
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, rs.waits)
}

func TestGenerate_givesUpAfterMaxRetries(t *testing.T) {
	transient := &llm.Error{Kind: llm.KindTransient, StatusCode: 503}
	client := &scriptedClient{errs: []error{transient, transient, transient, transient}}
	g, _ := newGenerator(client, WithMaxRetries(2))

	_, err := g.Generate(context.Background(), "Is TP53 involved?")
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
	assert.Equal(t, 3, client.calls)
}

func TestGenerate_indexFailureIsRetriedNextRequest(t *testing.T) {
	var builds atomic.Int32
	flaky := func(ctx context.Context) (*indexer.Index, error) {
		if builds.Add(1) == 1 {
			return nil, errors.New("embedding backend down")
		}
		return testIndex(ctx)
	}
	g := New(flaky, testNetwork, llm.NewAgent(&scriptedClient{answer: "ok"}, "i"))

	_, err := g.Generate(context.Background(), "Is TP53 involved?")
	assert.ErrorContains(t, err, "embedding backend down")
	_, err = g.Generate(context.Background(), "Is TP53 involved?")
	require.NoError(t, err)
	assert.Equal(t, int32(2), builds.Load())
}

func TestGenerator_warmUpStatusAndInvalidate(t *testing.T) {
	var indexBuilds, networkBuilds atomic.Int32
	g := New(
		func(ctx context.Context) (*indexer.Index, error) {
			indexBuilds.Add(1)
			return testIndex(ctx)
		},
		func(ctx context.Context) (*network.Graph, error) {
			networkBuilds.Add(1)
			return testNetwork(ctx)
		},
		llm.NewAgent(llm.EchoClient{}, "i"),
	)
	assert.False(t, g.Status().IndexReady)

	require.NoError(t, g.WarmUp(context.Background()))
	s := g.Status()
	assert.True(t, s.IndexReady)
	assert.True(t, s.NetworkReady)
	assert.Equal(t, 4, s.Genes)
	assert.Equal(t, 2, s.Interactions)
	assert.Equal(t, 2, s.Index.Documents)

	_, err := g.Ask(context.Background(), "Is TP53 involved?")
	require.NoError(t, err)
	assert.Equal(t, int32(1), indexBuilds.Load())

	g.Invalidate()
	assert.False(t, g.Status().IndexReady)
	_, err = g.Ask(context.Background(), "Is TP53 involved?")
	require.NoError(t, err)
	assert.Equal(t, int32(2), indexBuilds.Load())
	assert.Equal(t, int32(2), networkBuilds.Load())
}

// gatedEmbedder holds or fails index builds. Query embedding goes through Embed and
// is never gated.
type gatedEmbedder struct {
	*embedding.MockEmbedder
	mu   sync.Mutex
	hold chan struct{}
	err  error
}

func (e *gatedEmbedder) set(hold chan struct{}, err error) {
	e.mu.Lock()
	e.hold, e.err = hold, err
	e.mu.Unlock()
}

func (e *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	hold, err := e.hold, e.err
	e.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

func itemTexts(items []models.ContextItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func TestGenerator_rebuildKeepsOldIndexServing(t *testing.T) {
	ctx := context.Background()
	dirs := writeDataDirs(t)
	dbPath := filepath.Join(t.TempDir(), "chunks.db")
	emb := &gatedEmbedder{MockEmbedder: embedding.NewMockEmbedder(dims)}
	g := New(
		IndexBuilder(dirs, emb, GenerationStorage(dims, dbPath), nil, indexer.WithChunking(64, 8)),
		NetworkBuilder(dirs.KEGG, nil, nil),
		llm.NewAgent(llm.EchoClient{}, "i"),
	)
	const question = "Does TP53 regulate MDM2?"

	old, err := g.CombinedIndex(ctx)
	require.NoError(t, err)
	before, err := old.Query(ctx, question, 4)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	boom := errors.New("embedding backend down")
	hold := make(chan struct{})
	emb.set(hold, boom)
	g.Invalidate()
	rebuilt := make(chan error, 1)
	go func() {
		_, err := g.CombinedIndex(ctx)
		rebuilt <- err
	}()
	require.Eventually(t, func() bool {
		_, err := os.Stat(storage.GenerationPath(dbPath, 2))
		return err == nil
	}, time.Second, time.Millisecond)

	during, err := old.Query(ctx, question, 4)
	require.NoError(t, err)
	assert.Equal(t, itemTexts(before), itemTexts(during))

	close(hold)
	require.ErrorIs(t, <-rebuilt, boom)
	after, err := old.Query(ctx, question, 4)
	require.NoError(t, err)
	assert.Equal(t, itemTexts(before), itemTexts(after))
	assert.FileExists(t, dbPath)
	assert.NoFileExists(t, storage.GenerationPath(dbPath, 2))

	emb.set(nil, nil)
	h, err := g.Generate(ctx, question)
	require.NoError(t, err)
	assert.Equal(t, itemTexts(before), itemTexts(h.Context))
	cur, err := g.CombinedIndex(ctx)
	require.NoError(t, err)
	assert.NotSame(t, old, cur)
	_, err = old.Query(ctx, question, 4)
	assert.ErrorIs(t, err, indexer.ErrClosed)
	assert.NoFileExists(t, dbPath)
	assert.FileExists(t, storage.GenerationPath(dbPath, 3))

	require.NoError(t, g.Close())
	assert.FileExists(t, storage.GenerationPath(dbPath, 3))
	_, err = g.CombinedIndex(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGenerator_concurrentRequestsShareOneBuild(t *testing.T) {
	var builds atomic.Int32
	g := New(
		func(ctx context.Context) (*indexer.Index, error) {
			builds.Add(1)
			time.Sleep(10 * time.Millisecond)
			return testIndex(ctx)
		},
		testNetwork,
		llm.NewAgent(llm.EchoClient{}, "i"),
	)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Ask(context.Background(), "Is TP53 involved?")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), builds.Load())
}

func TestDetectGenes(t *testing.T) {
	net, _ := testNetwork(context.Background())
	net.AddNode("BRCA1")
	got := DetectGenes(net, "Was TP53 or brca1, and TP53 again, linked to MDM2?")
	assert.Equal(t, []string{"TP53", "BRCA1", "MDM2"}, got)
	assert.Nil(t, DetectGenes(nil, "TP53"))
}

const pathwayXML = `<pathway name="path:hsa04115" number="04115" title="p53 signaling pathway">
  <entry id="1" type="gene" name="hsa:TP53"/>
  <entry id="2" type="gene" name="hsa:MDM2"/>
  <relation entry1="1" entry2="2" type="inhibition"/>
</pathway>`

func writeDataDirs(t *testing.T) DataDirs {
	t.Helper()
	root := t.TempDir()
	dirs := DataDirs{KEGG: filepath.Join(root, "kegg"), GO: filepath.Join(root, "go"), GAFBatchLines: 2}
	require.NoError(t, os.MkdirAll(dirs.KEGG, 0o755))
	require.NoError(t, os.MkdirAll(dirs.GO, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dirs.KEGG, "hsa04115.xml"), []byte(pathwayXML), 0o600))
	gaf := "!gaf-version: 2.2\nUniProtKB\tP04637\tTP53\t\tGO:0006915\nUniProtKB\tQ00987\tMDM2\t\tGO:0016567\n"
	require.NoError(t, os.WriteFile(filepath.Join(dirs.GO, "goa_human.gaf"), []byte(gaf), 0o600))
	return dirs
}

func TestLoadSources(t *testing.T) {
	dirs := writeDataDirs(t)
	src, err := LoadSources(context.Background(), dirs, nil)
	require.NoError(t, err)
	require.Len(t, src.GO, 2)
	assert.Equal(t, models.SourceGO, src.GO[0].Metadata[models.MetaSource])
	require.Len(t, src.KEGG, 1)
	assert.Equal(t, models.SourceKEGG, src.KEGG[0].Metadata[models.MetaSource])
	assert.Contains(t, src.KEGG[0].Text, `type="inhibition"`)
	assert.Empty(t, src.Literature)
}

func TestLoadSources_missingDirectoryFails(t *testing.T) {
	dirs := writeDataDirs(t)
	dirs.Literature = filepath.Join(t.TempDir(), "missing")
	_, err := LoadSources(context.Background(), dirs, nil)
	assert.Error(t, err)
}

func TestBuilders_endToEnd(t *testing.T) {
	dirs := writeDataDirs(t)
	g := New(
		IndexBuilder(dirs, embedding.NewMockEmbedder(dims), GenerationStorage(dims, ""), nil, indexer.WithChunking(64, 8)),
		NetworkBuilder(dirs.KEGG, nil, nil),
		llm.NewAgent(llm.EchoClient{}, "i"),
	)
	h, err := g.Generate(context.Background(), "Does TP53 regulate MDM2?")
	require.NoError(t, err)
	assert.Equal(t, []string{"TP53 -[inhibition]-> MDM2"}, h.NetworkFacts)
	assert.Contains(t, h.Answer, "Does TP53 regulate MDM2?")
	assert.Equal(t, 3, g.Status().Index.Documents)
}
