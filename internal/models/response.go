package models

// Confidence is the generator's self-reported answer confidence.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// ContextChunk is one redacted, length-capped passage handed to the generator.
type ContextChunk struct {
	SourceTitle string `json:"source_title"`
	Text        string `json:"text"`
}

// Citation is a quote the generator attributes to a source passage.
type Citation struct {
	SourceTitle string `json:"source_title"`
	Quote       string `json:"quote"`
	Relevance   string `json:"relevance,omitempty"`
}

// GenerationResponse is the structured answer parsed from the generation provider.
type GenerationResponse struct {
	Answer             string     `json:"answer"`
	Confidence         Confidence `json:"confidence"`
	Citations          []Citation `json:"citations"`
	MissingInformation string     `json:"missing_information,omitempty"`
}

// Usage reports per-query resource accounting.
type Usage struct {
	RetrievedCount int   `json:"retrieved_count"`
	ContextChars   int   `json:"context_chars"`
	DurationMillis int64 `json:"duration_ms"`
}

// IntegritySummary is the verifier outcome attached to the final response.
type IntegritySummary struct {
	Score      float64    `json:"score"`
	Verdict    string     `json:"verdict"`
	Confidence Confidence `json:"confidence"`
	Issues     []string   `json:"issues,omitempty"`
}

// QueryResponse is the answer returned to the surrounding application.
type QueryResponse struct {
	Answer    string           `json:"answer"`
	Sources   []Source         `json:"sources"`
	Integrity IntegritySummary `json:"integrity"`
	Usage     Usage            `json:"usage"`
}
