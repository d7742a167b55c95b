package provider

import (
	"context"
	"math"

	"github.com/hyperjump/kotae/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and local runs. The same
// text always gets the same unit-length embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of the
// given dimension.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding derived from the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := hashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// hashString returns a stable FNV-1a style hash of s.
func hashString(s string) int {
	h := 2166136261
	for i := 0; i < len(s); i++ {
		h ^= int(s[i])
		h *= 16777619
		h &= 0x7fffffff
	}
	return h
}

// MockGenerator returns a fixed response or error and counts calls. Tests
// mutate Response and Err between calls to script provider behaviour.
type MockGenerator struct {
	Response string
	Err      error
	Calls    int
}

// Generate implements GenerationProvider.
func (g *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.Calls++
	if g.Err != nil {
		return "", g.Err
	}
	return g.Response, nil
}

// PassthroughRedactor returns text unchanged.
type PassthroughRedactor struct{}

// Redact implements Redactor.
func (PassthroughRedactor) Redact(text string) string { return text }
