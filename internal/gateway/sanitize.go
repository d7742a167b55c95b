package gateway

import (
	"strings"

	"github.com/hyperjump/kotae/pkg/utils"
)

// maxChunkChars bounds each sanitized chunk independently of the assembler's
// overall context budget.
const maxChunkChars = 5000

// Line-initial tokens that read like instructions to the model. They are
// bracketed rather than removed so the passage stays legible.
var instructionTokens = []string{
	"ignore",
	"disregard",
	"system:",
	"assistant:",
	"user:",
	"instruction:",
	"instructions:",
}

var bracketReplacer = strings.NewReplacer("<", "‹", ">", "›")

// SanitizeChunk prepares untrusted document text for inclusion in a prompt:
// the chunk is capped at maxChunkChars, literal angle brackets become
// single-angle quotation marks, and line-initial instruction-like tokens are
// bracketed so they are preserved but not executed.
func SanitizeChunk(text string) string {
	if len(text) > maxChunkChars {
		text = utils.Cut(text, maxChunkChars)
	}
	text = bracketReplacer.Replace(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		lower := strings.ToLower(trimmed)
		for _, tok := range instructionTokens {
			if strings.HasPrefix(lower, tok) {
				indent := line[:len(line)-len(trimmed)]
				lines[i] = indent + "[" + trimmed[:len(tok)] + "]" + trimmed[len(tok):]
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}
