package embed

import "math"

// norm is the Euclidean length of v.
func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

// dot is the inner product of two equal-length vectors. For the unit vectors
// the embedders return it equals cosine similarity.
func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
