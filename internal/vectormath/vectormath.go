// Package vectormath provides the basic vector operations the similarity
// kernel is built from: L2 normalization, inner products, and cosine
// similarity mapped onto [0,1].
package vectormath

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// NormEpsilon guards divisions by the vector norm. Vectors with a norm
// below this are treated as degenerate (zero) embeddings.
const NormEpsilon = 1e-10

// ErrDimensionMismatch is the sentinel wrapped by DimensionError.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// DimensionError reports two vectors (or a vector and a configured
// dimension) that disagree in length.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// Norm returns the Euclidean norm of v.
func Norm(v []float64) float64 {
	return floats.Norm(v, 2)
}

// IsDegenerate reports whether v has near-zero norm and therefore carries
// no usable direction.
func IsDegenerate(v []float64) bool {
	return Norm(v) < NormEpsilon
}

// Normalize returns v scaled to unit length. The zero vector is returned
// as a copy, unchanged.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	n := Norm(v)
	if n < NormEpsilon {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Want: len(a), Got: len(b)}
	}
	if len(a) == 0 {
		return 0, nil
	}
	return floats.Dot(a, b), nil
}

// Cosine01 computes the cosine similarity of a and b remapped from
// [-1,1] to [0,1]. Degenerate inputs score 0 against anything.
func Cosine01(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Want: len(a), Got: len(b)}
	}
	na, nb := Norm(a), Norm(b)
	if na < NormEpsilon || nb < NormEpsilon {
		return 0, nil
	}
	dot := floats.Dot(a, b) / (na * nb)
	return Clamp01((dot + 1) / 2), nil
}

// Clamp01 clamps x to [0,1]. NaN clamps to 0 so a single bad component
// cannot poison a blended score.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
