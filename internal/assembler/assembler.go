// Package assembler builds the bounded, redacted prompt context from ranked
// retrieval results.
package assembler

import (
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
	"github.com/hyperjump/kotae/pkg/utils"
)

// DefaultMaxContextChars is the default total character budget for a context.
const DefaultMaxContextChars = 20000

// TruncationMarker is appended to a chunk cut at the budget boundary.
const TruncationMarker = "\n[... truncated]"

// Assembler turns ranked retrieval results into context chunks whose
// cumulative length never exceeds the budget. Redaction runs before length
// accounting, so the budget reflects post-redaction size.
type Assembler struct {
	redactor        provider.Redactor
	maxContextChars int
}

// New creates an assembler. A nil redactor passes text through; a
// non-positive budget selects DefaultMaxContextChars.
func New(redactor provider.Redactor, maxContextChars int) *Assembler {
	if redactor == nil {
		redactor = provider.PassthroughRedactor{}
	}
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	return &Assembler{redactor: redactor, maxContextChars: maxContextChars}
}

// Assemble processes results in the given order (strictly descending score,
// as produced by the store) and stops at the first chunk that exhausts the
// budget: that chunk is cut to the remaining budget and marked, and all
// lower-ranked chunks are dropped. An empty result list yields an empty
// context; the orchestrator must then skip generation entirely.
func (a *Assembler) Assemble(results []models.RetrievalResult) []models.ContextChunk {
	chunks := make([]models.ContextChunk, 0, len(results))
	remaining := a.maxContextChars
	for _, r := range results {
		if remaining <= 0 {
			break
		}
		text := a.redactor.Redact(r.Record.Text)
		if len(text) > remaining {
			// Cut on a rune boundary so the prompt never carries invalid UTF-8.
			chunks = append(chunks, models.ContextChunk{
				SourceTitle: r.Record.Title,
				Text:        utils.Cut(text, remaining) + TruncationMarker,
			})
			break
		}
		chunks = append(chunks, models.ContextChunk{
			SourceTitle: r.Record.Title,
			Text:        text,
		})
		remaining -= len(text)
	}
	return chunks
}
