package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
	"go.uber.org/zap"
)

const (
	defaultCallTimeout = 20 * time.Second
	maxHistoryTurns    = 6

	unavailableAnswer = "The answer service is temporarily unavailable. Please try again in a moment."
)

// Gateway submits prompts to the generation provider and queries the
// embedding provider, protected by a circuit breaker, per-call timeouts, and
// an embedding cache. Provider failures never escape as errors from Answer;
// they degrade to a safe fallback response.
type Gateway struct {
	generator provider.GenerationProvider
	embedder  provider.EmbeddingProvider
	cache     *embedding.Cache
	breaker   *Breaker
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a gateway. breaker and cache are injected so separate pipelines
// never share breaker counters or cache entries.
func New(
	generator provider.GenerationProvider,
	embedder provider.EmbeddingProvider,
	cache *embedding.Cache,
	breaker *Breaker,
	timeout time.Duration,
	logger *zap.Logger,
) *Gateway {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if breaker == nil {
		breaker = NewBreaker(0, 0, 0)
	}
	if cache == nil {
		cache = embedding.NewCache(0)
	}
	return &Gateway{
		generator: generator,
		embedder:  embedder,
		cache:     cache,
		breaker:   breaker,
		timeout:   timeout,
		logger:    logger,
	}
}

// Breaker exposes the breaker for status reporting.
func (g *Gateway) Breaker() *Breaker {
	return g.breaker
}

// EmbedQuery returns the embedding for text, consulting the cache first.
// A cache hit skips the provider entirely. Embedding failures propagate: with
// no query vector there is nothing to ground an answer on.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := embedding.Key(text)
	if vec, ok := g.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := g.callEmbed(ctx, text)
	if err != nil {
		var perr *provider.ProviderError
		if errors.As(err, &perr) {
			return nil, err
		}
		return nil, &provider.ProviderError{Provider: "embedding", Err: err}
	}
	g.cache.Set(key, vec)
	return vec, nil
}

// Answer builds the prompt from the query, recent history, and sanitized
// context chunks, then produces a structured answer. It never returns an
// error: circuit-open, provider failure, timeout, and parse failure all
// degrade to a fixed-shape fallback response.
func (g *Gateway) Answer(ctx context.Context, query string, history []models.HistoryTurn, chunks []models.ContextChunk) *models.GenerationResponse {
	if !g.breaker.Allow() {
		g.logger.Warn("generation rejected, circuit open")
		return Fallback(unavailableAnswer)
	}

	prompt := buildPrompt(query, history, chunks)
	raw, err := g.callGenerate(ctx, prompt)
	if err != nil {
		g.breaker.RecordFailure()
		g.logger.Error("generation provider failed", zap.Error(err), zap.String("breaker", g.breaker.State().String()))
		return Fallback(unavailableAnswer)
	}
	g.breaker.RecordSuccess()

	resp, err := ParseResponse(raw)
	if err != nil {
		// The provider answered but not in the expected shape; serve the raw
		// text at low confidence rather than failing the query.
		g.logger.Warn("unparseable provider output", zap.Error(err))
		fb := Fallback(strings.TrimSpace(raw))
		if fb.Answer == "" {
			fb.Answer = unavailableAnswer
		}
		fb.MissingInformation = "response could not be parsed as structured output"
		return fb
	}
	return resp
}

// Fallback returns the safe fixed-shape response used whenever generation is
// unavailable or unusable.
func Fallback(answer string) *models.GenerationResponse {
	return &models.GenerationResponse{
		Answer:     answer,
		Confidence: models.ConfidenceLow,
		Citations:  nil,
	}
}

// callGenerate races the provider call against the timeout. A request already
// dispatched cannot be cancelled, only abandoned.
func (g *Gateway) callGenerate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		raw string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		raw, err := g.generator.Generate(ctx, prompt)
		ch <- result{raw, err}
	}()
	select {
	case r := <-ch:
		return r.raw, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("generation timed out: %w", ctx.Err())
	}
}

func (g *Gateway) callEmbed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vec, err := g.embedder.Embed(ctx, text)
		ch <- result{vec, err}
	}()
	select {
	case r := <-ch:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("embedding timed out: %w", ctx.Err())
	}
}

const answerInstructions = `You answer questions using only the numbered context passages below.
Respond with a single JSON object: {"answer": string, "confidence": "High"|"Medium"|"Low", "citations": [{"source_title": string, "quote": string, "relevance": string}], "missing_information": string}.
Quote citations verbatim from the passages. If the passages do not contain the answer, say so in "answer" and describe the gap in "missing_information".`

func buildPrompt(query string, history []models.HistoryTurn, chunks []models.ContextChunk) string {
	var b strings.Builder
	b.WriteString(answerInstructions)
	b.WriteString("\n\nContext passages:\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, SanitizeChunk(chunk.SourceTitle), SanitizeChunk(chunk.Text))
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", SanitizeChunk(turn.Role), SanitizeChunk(turn.Content))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s\n", SanitizeChunk(query))
	return b.String()
}
