package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const httpClientTimeout = 60 * time.Second

// HTTPEmbedder calls an external embedding service over JSON HTTP.
// The service receives {"text": ...} and responds {"embedding": [...]}.
type HTTPEmbedder struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPEmbedder(url, apiKey string) *HTTPEmbedder {
	return &HTTPEmbedder{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: httpClientTimeout},
	}
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := postJSON(ctx, e.client, e.url, e.apiKey, map[string]string{"text": text}, &out); err != nil {
		return nil, &ProviderError{Provider: "embedding", Err: err}
	}
	if len(out.Embedding) == 0 {
		return nil, &ProviderError{Provider: "embedding", Err: fmt.Errorf("empty embedding from %s", e.url)}
	}
	return out.Embedding, nil
}

// HTTPGenerator calls an external generation service over JSON HTTP.
// The service receives {"prompt": ...} and responds {"output": "..."}.
type HTTPGenerator struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPGenerator(url, apiKey string) *HTTPGenerator {
	return &HTTPGenerator{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: httpClientTimeout},
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	if err := postJSON(ctx, g.client, g.url, g.apiKey, map[string]string{"prompt": prompt}, &out); err != nil {
		return "", &ProviderError{Provider: "generation", Err: err}
	}
	return out.Output, nil
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, string(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
