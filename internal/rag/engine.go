// Package rag sequences the pipeline: embed, retrieve, assemble, generate,
// verify, audit.
package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/kotae/internal/assembler"
	"github.com/hyperjump/kotae/internal/audit"
	"github.com/hyperjump/kotae/internal/gateway"
	"github.com/hyperjump/kotae/internal/integrity"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

const (
	defaultTopK = 8

	// maxAuditDetailChars bounds the detail column; provider errors can
	// embed response bodies.
	maxAuditDetailChars = 500

	// NoMatchAnswer is served when retrieval finds nothing accessible;
	// generation and verification are skipped entirely.
	NoMatchAnswer = "No matching documents were found for your question."

	// RejectedAnswer replaces an answer whose integrity verdict is reject.
	RejectedAnswer = "The generated answer did not pass integrity verification and has been withheld. " +
		"Please rephrase your question or consult the listed sources directly."
)

// Engine runs one query through the full pipeline.
type Engine struct {
	store     *vector.Store
	gateway   *gateway.Gateway
	assembler *assembler.Assembler
	verifier  *integrity.Verifier
	sink      audit.Sink
	topK      int
	logger    *zap.Logger
}

// NewEngine creates an engine with the given collaborators. A nil sink
// discards audit events; a non-positive topK selects the default.
func NewEngine(
	store *vector.Store,
	gw *gateway.Gateway,
	asm *assembler.Assembler,
	verifier *integrity.Verifier,
	sink audit.Sink,
	topK int,
	logger *zap.Logger,
) *Engine {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		gateway:   gw,
		assembler: asm,
		verifier:  verifier,
		sink:      sink,
		topK:      topK,
		logger:    logger,
	}
}

// Query answers one request. Retrieval strictly precedes generation, which
// strictly precedes verification. Generation failures degrade to fallback
// answers inside the gateway; only embedding and retrieval failures surface
// as errors, since no grounded answer is possible without them. An audit
// event is emitted on every path.
func (e *Engine) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	queryEmbedding, err := e.gateway.EmbedQuery(ctx, req.Query)
	if err != nil {
		e.emit(req, audit.OutcomeError, "", fmt.Sprintf("embed query: %v", err))
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := e.store.Search(ctx, queryEmbedding, e.topK, req.User)
	if err != nil {
		e.emit(req, audit.OutcomeError, "", fmt.Sprintf("retrieval: %v", err))
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	if len(results) == 0 {
		e.logger.Debug("no accessible matches", zap.String("department", req.User.Department))
		e.emit(req, audit.OutcomeNoMatch, string(integrity.VerdictSafe), "")
		return &models.QueryResponse{
			Answer:  NoMatchAnswer,
			Sources: []models.Source{},
			Integrity: models.IntegritySummary{
				Verdict:    string(integrity.VerdictSafe),
				Confidence: models.ConfidenceLow,
			},
			Usage: models.Usage{DurationMillis: time.Since(start).Milliseconds()},
		}, nil
	}

	chunks := e.assembler.Assemble(results)
	generated := e.gateway.Answer(ctx, req.Query, req.History, chunks)
	analysis := e.verifier.Verify(generated, chunks)

	answer := generated.Answer
	outcome := audit.OutcomeAnswered
	if analysis.Verdict == integrity.VerdictReject {
		e.logger.Warn("answer rejected by integrity verifier",
			zap.Float64("score", analysis.Score),
			zap.Int("issues", len(analysis.Issues)))
		answer = RejectedAnswer
		outcome = audit.OutcomeRejected
	}

	contextChars := 0
	for _, c := range chunks {
		contextChars += len(c.Text)
	}

	response := &models.QueryResponse{
		Answer:  answer,
		Sources: sourcesOf(results),
		Integrity: models.IntegritySummary{
			Score:      analysis.Score,
			Verdict:    string(analysis.Verdict),
			Confidence: generated.Confidence,
			Issues:     issueCodes(analysis.Issues),
		},
		Usage: models.Usage{
			RetrievedCount: len(results),
			ContextChars:   contextChars,
			DurationMillis: time.Since(start).Milliseconds(),
		},
	}
	e.emit(req, outcome, string(analysis.Verdict), "")
	return response, nil
}

// emit sends the audit event fire-and-forget so a slow sink never delays the
// response path.
func (e *Engine) emit(req *models.QueryRequest, outcome, verdict, detail string) {
	event := audit.NewEvent("query", outcome)
	event.Department = req.User.Department
	event.Role = req.User.Role
	event.Verdict = verdict
	event.Detail = utils.Truncate(detail, maxAuditDetailChars)
	go e.sink.Log(event)
}

func sourcesOf(results []models.RetrievalResult) []models.Source {
	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, models.Source{
			ID:         r.Record.ID,
			DocumentID: r.Record.DocumentID,
			Title:      r.Record.Title,
			Score:      r.Score,
			Link:       r.Record.Link,
		})
	}
	return sources
}

func issueCodes(issues []integrity.Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	codes := make([]string, 0, len(issues))
	for _, i := range issues {
		codes = append(codes, i.Code)
	}
	return codes
}
