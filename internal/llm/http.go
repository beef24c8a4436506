package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 32 << 20

// PostJSON sends body as JSON to baseURL+path with bearer auth and decodes a 2xx
// response into out. Failures are classified into *Error (see TransportError for
// the one exception).
func PostJSON(ctx context.Context, client *http.Client, baseURL, path, apiKey string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	url := strings.TrimRight(baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return TransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return TransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusError(resp, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return DecodeError(err)
	}
	return nil
}
