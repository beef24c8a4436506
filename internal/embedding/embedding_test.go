package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hyperjump/hypogen/internal/llm"
	"github.com/hyperjump/hypogen/internal/vector"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	ctx := context.Background()
	a, err := e.Embed(ctx, "TP53")
	require.NoError(t, err)
	b, _ := e.Embed(ctx, "TP53")
	c, _ := e.Embed(ctx, "BRCA1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.InDelta(t, 1.0, vector.L2Norm(a), 1e-5)
	assert.Equal(t, int64(3), e.Calls())
}

func TestMockEmbedder_FailWith(t *testing.T) {
	e := NewMockEmbedder(4)
	boom := errors.New("boom")
	e.FailWith(boom)
	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
	e.FailWith(nil)
	_, err = e.EmbedBatch(context.Background(), []string{"x"})
	assert.NoError(t, err)
}

func embeddingServer(t *testing.T, dims int, status int) (*httptest.Server, *[]embeddingsRequest) {
	t.Helper()
	var reqs []embeddingsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		reqs = append(reqs, req)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		// reversed order: the client must place by index
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float64, dims)
			vec[i%dims] = 2
			resp.Data = append(resp.Data, item{Index: i, Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	srv, reqs := embeddingServer(t, 4, http.StatusOK)
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "text-embedding-3-small", Dimensions: 4})
	require.NoError(t, err)

	out, err := e.EmbedBatch(context.Background(), []string{"a", "", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []float32{1, 0, 0, 0}, out[0])
	assert.Equal(t, []float32{0, 1, 0, 0}, out[1])
	require.Len(t, *reqs, 1)
	assert.Equal(t, " ", (*reqs)[0].Input[1])
	assert.Equal(t, 4, (*reqs)[0].Dimensions)
}

func TestOpenAIEmbedder_errors(t *testing.T) {
	srv, _ := embeddingServer(t, 4, http.StatusTooManyRequests)
	e, _ := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "m", Dimensions: 4})
	_, err := e.Embed(context.Background(), "x")
	assert.True(t, llm.IsTransient(err))

	srv2, _ := embeddingServer(t, 3, http.StatusOK)
	e2, _ := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv2.URL, Model: "m", Dimensions: 4})
	_, err = e2.Embed(context.Background(), "x")
	assert.True(t, llm.IsPermanent(err))
}

func TestCachedEmbedder_LRU(t *testing.T) {
	inner := NewMockEmbedder(4)
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := c.EmbedBatch(ctx, []string{"a", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, first[0], first[2])
	assert.Equal(t, int64(2), inner.Texts(), "duplicates embedded once")

	_, err = c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), inner.Texts(), "only c is new")
}

func TestCachedEmbedder_propagatesErrors(t *testing.T) {
	inner := NewMockEmbedder(4)
	inner.FailWith(errors.New("down"))
	_, err := NewCachedEmbedder(inner, 10).Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestCachedEmbedder_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	newClient := func() *redis.Client { return redis.NewClient(&redis.Options{Addr: mr.Addr()}) }

	inner1 := NewMockEmbedder(4)
	c1 := NewCachedEmbedder(inner1, 10, WithRedis(newClient(), 0), WithNamespace("mock"))
	defer c1.Close()
	want, err := c1.Embed(ctx, "shared text")
	require.NoError(t, err)

	key := c1.Key("shared text")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, DefaultRedisTTL, mr.TTL(key))

	// a second process with a cold LRU reads the shared tier
	inner2 := NewMockEmbedder(4)
	c2 := NewCachedEmbedder(inner2, 10, WithRedis(newClient(), 0), WithNamespace("mock"))
	defer c2.Close()
	got, err := c2.Embed(ctx, "shared text")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Zero(t, inner2.Calls())
}

func TestCachedEmbedder_RedisDownIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	inner := NewMockEmbedder(4)
	c := NewCachedEmbedder(inner, 10, WithRedis(client, 0))
	defer c.Close()
	_, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.Calls())
}

func TestCachedEmbedder_KeyNamespaced(t *testing.T) {
	a := NewCachedEmbedder(NewMockEmbedder(4), 1, WithNamespace("m1"))
	b := NewCachedEmbedder(NewMockEmbedder(4), 1, WithNamespace("m2"))
	assert.NotEqual(t, a.Key("x"), b.Key("x"))
	assert.Contains(t, a.Key("x"), RedisKeyPrefix)
	assert.Len(t, a.Key("x"), len(RedisKeyPrefix)+64)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
