package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// ParseResponse parses raw provider output into a GenerationResponse.
// Providers often wrap JSON in markdown fences or preamble text, so the
// parser extracts the outermost JSON object before unmarshalling.
func ParseResponse(raw string) (*models.GenerationResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in provider output")
	}
	var resp models.GenerationResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("parse provider output: %w", err)
	}
	if strings.TrimSpace(resp.Answer) == "" {
		return nil, fmt.Errorf("provider output has empty answer")
	}
	switch resp.Confidence {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		resp.Confidence = models.ConfidenceLow
	}
	return &resp, nil
}
