package integrity

import (
	"math"
	"testing"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"leave", "leeve", 1},
		{"flaw", "lawn", 2},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q)=%d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestWordSimilarity(t *testing.T) {
	if got := wordSimilarity("policy", "policy"); got != 1 {
		t.Errorf("identical words: %v", got)
	}
	if got := wordSimilarity("", ""); got != 1 {
		t.Errorf("empty words: %v", got)
	}
	// One edit over ten runes: 1 - 1/10.
	if got := wordSimilarity("guidelines", "guideliness"); math.Abs(got-(1-1.0/11)) > 1e-9 {
		t.Errorf("near match: %v", got)
	}
	if got := wordSimilarity("abc", "xyz"); got != 0 {
		t.Errorf("disjoint words: %v", got)
	}
}
