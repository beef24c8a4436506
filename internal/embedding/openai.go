package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperjump/hypogen/internal/llm"
	"github.com/hyperjump/hypogen/pkg/utils"
)

// OpenAIConfig configures OpenAIEmbedder.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	HTTPClient *http.Client
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. Errors are
// classified as *llm.Error, the same as chat completions.
type OpenAIEmbedder struct {
	cfg OpenAIConfig
}

// NewOpenAIEmbedder returns an embedder for cfg.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &OpenAIEmbedder{cfg: cfg}, nil
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed embeds a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request. Vectors are L2-normalized.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(texts))
	for i, s := range texts {
		// the API rejects empty inputs
		if strings.TrimSpace(s) == "" {
			s = " "
		}
		clean[i] = s
	}
	req := embeddingsRequest{Model: e.cfg.Model, Input: clean}
	if strings.HasPrefix(e.cfg.Model, "text-embedding-3") {
		req.Dimensions = e.cfg.Dimensions
	}
	var resp embeddingsResponse
	if err := llm.PostJSON(ctx, e.cfg.HTTPClient, e.cfg.BaseURL, "/embeddings", e.cfg.APIKey, req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		if len(d.Embedding) != e.cfg.Dimensions {
			return nil, &llm.Error{Kind: llm.KindPermanent,
				Message: fmt.Sprintf("embedding has %d dimensions, expected %d", len(d.Embedding), e.cfg.Dimensions)}
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		utils.NormalizeL2(vec)
		out[d.Index] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, &llm.Error{Kind: llm.KindPermanent,
				Message: fmt.Sprintf("embeddings response missing index %d of %d", i, len(out))}
		}
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error { return nil }
