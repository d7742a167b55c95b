// Package vector provides the access-filtered vector store and similarity search.
package vector

import "math"

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Dimension mismatch or a zero-norm operand yields 0 rather than an error,
// so a degenerate vector simply never ranks.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	na := L2Norm(a)
	nb := L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}

// L2Norm returns the L2 norm of x.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
