package integrity

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// Analyzer weights in the composite score.
const (
	quoteWeight         = 0.4
	contradictionWeight = 0.3
	structureWeight     = 0.2
	calibrationWeight   = 0.1
)

const (
	// A quote needs at least this many normalized characters to be checkable.
	minQuoteChars = 5
	// Fraction of quote words that must find a similar context word.
	wordCoverageThreshold = 0.9
	// Edit-distance similarity a word pair must reach to count.
	wordSimilarityThreshold = 0.9

	contradictionStep = 0.3
	calibrationStep   = 0.4
	structurePenalty  = 0.5

	cautionThreshold = 0.4
	rejectThreshold  = 0.7

	shortAnswerChars  = 50
	maxPlausibleCites = 5
	tangentChars      = 2000
)

// Antonym pairs scanned by the contradiction analyzer: an affirmative token
// and its negation appearing in one answer, with the negated form ungrounded
// in the context, reads as self-contradiction. A fixed heuristic list; false
// positives and negatives are an accepted trade-off.
var antonymPairs = [][2]string{
	{"always", "never"},
	{"all", "none"},
	{"agrees", "disagrees"},
	{"can", "cannot"},
	{"increases", "decreases"},
	{"allowed", "prohibited"},
}

// Markers of an answer claiming the context held no information.
var noInfoMarkers = []string{
	"no information",
	"no matching documents",
	"not contain",
	"could not find",
	"do not have the information",
	"don t have the information",
}

// Verifier analyzes a generated answer against the assembled context.
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger}
}

// Verify produces the composite analysis for one answer. It never fails:
// when the context is missing the result is degraded toward caution instead.
func (v *Verifier) Verify(resp *models.GenerationResponse, chunks []models.ContextChunk) *Analysis {
	passages := make([]string, 0, len(chunks))
	for _, c := range chunks {
		passages = append(passages, Normalize(c.Text))
	}

	analysis := &Analysis{}

	quoteScore, quoteIssues := v.verifyQuotes(resp.Citations, passages)
	contradictionScore, contraIssues := v.detectContradictions(resp.Answer, passages)
	structureScore, structIssues := v.validateStructure(resp)
	calibrationScore, calIssues := v.calibrateConfidence(resp.Confidence, quoteScore)

	analysis.Details = Details{
		QuoteVerificationScore:     quoteScore,
		ContradictionScore:         contradictionScore,
		StructureScore:             structureScore,
		ConfidenceCalibrationScore: calibrationScore,
	}
	analysis.Issues = append(analysis.Issues, quoteIssues...)
	analysis.Issues = append(analysis.Issues, contraIssues...)
	analysis.Issues = append(analysis.Issues, structIssues...)
	analysis.Issues = append(analysis.Issues, calIssues...)

	analysis.Score = quoteWeight*(1-quoteScore) +
		contradictionWeight*contradictionScore +
		structureWeight*(1-structureScore) +
		calibrationWeight*calibrationScore
	analysis.Verdict = VerdictFor(analysis.Score)

	if len(chunks) == 0 && (len(resp.Citations) > 0 || resp.Answer != "") {
		// Nothing to evaluate against; default toward caution, never throw.
		analysis.Issues = append(analysis.Issues, Issue{
			Code:     IssueDegraded,
			Severity: SeverityLow,
			Detail:   "no context available for verification",
		})
		if analysis.Verdict == VerdictSafe {
			analysis.Verdict = VerdictCaution
		}
	}

	v.logger.Debug("integrity analysis",
		zap.Float64("score", analysis.Score),
		zap.String("verdict", string(analysis.Verdict)),
		zap.Int("issues", len(analysis.Issues)))
	return analysis
}

// VerdictFor maps a composite score to a verdict.
func VerdictFor(score float64) Verdict {
	switch {
	case score > rejectThreshold:
		return VerdictReject
	case score > cautionThreshold:
		return VerdictCaution
	default:
		return VerdictSafe
	}
}

// verifyQuotes checks each citation quote against the normalized context:
// exact substring first, then word-level fuzzy matching. Returns the score
// (1 = every citation verified; 1 when there are no citations) and issues.
func (v *Verifier) verifyQuotes(citations []models.Citation, passages []string) (float64, []Issue) {
	if len(citations) == 0 {
		return 1, nil
	}
	var issues []Issue
	unverified := 0
	for _, c := range citations {
		quote := Normalize(c.Quote)
		if len(quote) < minQuoteChars {
			unverified++
			issues = append(issues, Issue{
				Code:     IssueQuoteUnverified,
				Severity: SeverityMedium,
				Detail:   fmt.Sprintf("quote %q too short to verify", c.Quote),
			})
			continue
		}
		if quoteMatches(quote, passages) {
			continue
		}
		unverified++
		issues = append(issues, Issue{
			Code:     IssueQuoteUnverified,
			Severity: SeverityHigh,
			Detail:   fmt.Sprintf("quote %q not found in context", c.Quote),
		})
	}
	return 1 - float64(unverified)/float64(len(citations)), issues
}

func quoteMatches(quote string, passages []string) bool {
	for _, p := range passages {
		if strings.Contains(p, quote) {
			return true
		}
	}
	words := strings.Fields(quote)
	if len(words) == 0 {
		return false
	}
	for _, p := range passages {
		if wordCoverage(words, strings.Fields(p)) >= wordCoverageThreshold {
			return true
		}
	}
	return false
}

// wordCoverage returns the fraction of quote words that have some context
// word at or above the similarity threshold.
func wordCoverage(quoteWords, contextWords []string) float64 {
	if len(contextWords) == 0 {
		return 0
	}
	matched := 0
	for _, qw := range quoteWords {
		for _, cw := range contextWords {
			if wordSimilarity(qw, cw) >= wordSimilarityThreshold {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(quoteWords))
}

// detectContradictions scans the answer for antonym pairs whose negated form
// is not grounded in the context. Each hit adds contradictionStep, capped at 1.
func (v *Verifier) detectContradictions(answer string, passages []string) (float64, []Issue) {
	answerWords := wordSet(strings.Fields(Normalize(answer)))
	contextWords := make(map[string]bool)
	for _, p := range passages {
		for _, w := range strings.Fields(p) {
			contextWords[w] = true
		}
	}

	score := 0.0
	var issues []Issue
	for _, pair := range antonymPairs {
		if answerWords[pair[0]] && answerWords[pair[1]] && !contextWords[pair[1]] {
			score += contradictionStep
			issues = append(issues, Issue{
				Code:     IssueContradiction,
				Severity: SeverityMedium,
				Detail:   fmt.Sprintf("answer uses both %q and ungrounded %q", pair[0], pair[1]),
			})
		}
	}
	if score > 1 {
		score = 1
	}
	return score, issues
}

// validateStructure flags shape-level anomalies. The returned structureScore
// is 1 - min(structurePenalty * high_severity_count, 1).
func (v *Verifier) validateStructure(resp *models.GenerationResponse) (float64, []Issue) {
	var issues []Issue
	highCount := 0

	if claimsNoInformation(resp.Answer) && len(resp.Citations) > 0 {
		highCount++
		issues = append(issues, Issue{
			Code:     IssueNoInfoContradicted,
			Severity: SeverityHigh,
			Detail:   "answer claims no information exists yet cites sources",
		})
	}
	if len(resp.Answer) < shortAnswerChars && len(resp.Citations) > maxPlausibleCites {
		issues = append(issues, Issue{
			Code:     IssueCitationPadding,
			Severity: SeverityMedium,
			Detail:   fmt.Sprintf("%d citations for a %d-character answer", len(resp.Citations), len(resp.Answer)),
		})
	}
	if len(resp.Answer) > tangentChars {
		issues = append(issues, Issue{
			Code:     IssueAnswerTangent,
			Severity: SeverityLow,
			Detail:   fmt.Sprintf("answer is %d characters long", len(resp.Answer)),
		})
	}

	penalty := structurePenalty * float64(highCount)
	if penalty > 1 {
		penalty = 1
	}
	return 1 - penalty, issues
}

// calibrateConfidence flags confidence inflation: a High self-report with a
// failing quote verification score.
func (v *Verifier) calibrateConfidence(confidence models.Confidence, quoteScore float64) (float64, []Issue) {
	mismatches := 0
	var issues []Issue
	if confidence == models.ConfidenceHigh && quoteScore < 0.5 {
		mismatches++
		issues = append(issues, Issue{
			Code:     IssueConfidenceMismatch,
			Severity: SeverityHigh,
			Detail:   fmt.Sprintf("High confidence with quote verification at %.2f", quoteScore),
		})
	}
	score := calibrationStep * float64(mismatches)
	if score > 1 {
		score = 1
	}
	return score, issues
}

func claimsNoInformation(answer string) bool {
	norm := Normalize(answer)
	for _, marker := range noInfoMarkers {
		if strings.Contains(norm, marker) {
			return true
		}
	}
	return false
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Normalize lowercases, strips punctuation, and collapses whitespace so quote
// and context compare on content rather than formatting.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
