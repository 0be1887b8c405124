// Package mathutil provides the small vector math kernel shared by the
// index implementations.
package mathutil

import "math"

// Dot computes the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm computes the L2 norm of a vector.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// Normalize returns a unit-length copy of v. The zero vector is returned
// unchanged.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] / n
	}
	return out
}

// CosineDistance converts inner-product similarity into a distance.
// Embeddings are assumed unit-length, so the inner product equals cosine
// similarity: 0 means identical direction, 2 means opposite.
func CosineDistance(a, b []float32) float32 {
	return 1 - Dot(a, b)
}
