// Package semantic holds the vector similarity measures shared by the
// similarity backends.
package semantic

import "math"

// Float is a vector element type.
type Float interface {
	~float32 | ~float64
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Vectors of
// different length, empty vectors and zero vectors score 0.
func Cosine[F Float](a, b []F) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	denominator := math.Sqrt(normA) * math.Sqrt(normB)
	if denominator == 0 {
		return 0
	}
	return dot / denominator
}

// Matrix returns the symmetric pairwise cosine matrix of vecs. The
// diagonal is 1 for non-zero vectors and 0 for zero or empty ones.
func Matrix[F Float](vecs [][]F) [][]float64 {
	n := len(vecs)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		m[i][i] = Cosine(vecs[i], vecs[i])
		for j := i + 1; j < n; j++ {
			s := Cosine(vecs[i], vecs[j])
			m[i][j], m[j][i] = s, s
		}
	}
	return m
}

// Normalize scales v to unit length in place; zero vectors are unchanged.
func Normalize(v []float64) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
}
