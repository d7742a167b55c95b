// Package integrity scores generated answers against the retrieved evidence,
// producing a composite hallucination score and verdict.
package integrity

// Severity grades an issue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue codes.
const (
	IssueQuoteUnverified    = "quote_unverified"
	IssueContradiction      = "contradiction"
	IssueNoInfoContradicted = "noinfo_with_citations"
	IssueCitationPadding    = "citation_padding"
	IssueAnswerTangent      = "answer_tangent"
	IssueConfidenceMismatch = "confidence_mismatch"
	IssueDegraded           = "integrity_degraded"
)

// Issue is one finding from an analyzer.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail,omitempty"`
}

// Verdict is the overall disposition of an answer.
type Verdict string

const (
	VerdictSafe    Verdict = "safe"
	VerdictCaution Verdict = "caution"
	VerdictReject  Verdict = "reject"
)

// Details holds the per-analyzer scores feeding the composite.
type Details struct {
	QuoteVerificationScore     float64 `json:"quote_verification_score"`
	ContradictionScore         float64 `json:"contradiction_score"`
	StructureScore             float64 `json:"structure_score"`
	ConfidenceCalibrationScore float64 `json:"confidence_calibration_score"`
}

// Analysis is the verifier output for one answer. Higher Score means more
// likely hallucinated.
type Analysis struct {
	Score   float64 `json:"score"`
	Verdict Verdict `json:"verdict"`
	Issues  []Issue `json:"issues,omitempty"`
	Details Details `json:"details"`
}
