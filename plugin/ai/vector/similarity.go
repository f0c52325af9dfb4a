// Package vector provides the similarity math used by semantic retrieval.
package vector

import "math"

// CosineSimilarity calculates cosine similarity between two vectors.
// Vectors of different length are incomparable and score 0, as do empty or
// zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))

	// Rounding can push parallel vectors a hair past the bounds.
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// IsValid reports whether v can take part in a similarity comparison of the
// given dimension. A dimension of 0 accepts any non-empty vector.
func IsValid(v []float32, dimensions int) bool {
	if len(v) == 0 {
		return false
	}
	if dimensions > 0 && len(v) != dimensions {
		return false
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}
