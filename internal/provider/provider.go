// Package provider defines the external collaborator interfaces the pipeline
// depends on: embedding, text generation, redaction.
package provider

import (
	"context"
	"fmt"
)

// EmbeddingProvider turns text into a vector embedding.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerationProvider produces raw model output for an assembled prompt.
// The output is expected to be JSON matching models.GenerationResponse;
// parse failures are the gateway's problem, not the provider's.
type GenerationProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Redactor scrubs PII from text. Synchronous and side-effect free.
type Redactor interface {
	Redact(text string) string
}

// ProviderError wraps a transport or auth failure from an external provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
