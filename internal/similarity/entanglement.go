package similarity

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aeqip/imgsim/internal/vectormath"
)

// entEpsilon stabilizes the entropy computation against zero singular
// values.
const entEpsilon = 1e-10

// entanglementMeasure computes the entanglement-entropy analog between
// two normalized vectors: the Shannon entropy of the normalized singular
// value spectrum of their outer product, scaled by the maximum entropy
// ln(D).
//
// The outer product of two vectors has rank one, so the spectrum is
// dominated by a single Schmidt coefficient and the measure stays near
// zero; it only separates pairs through the numerical tail. The SVD is
// O(D^3), which is why this term is opt-in and never on the ranking hot
// path.
func entanglementMeasure(v1, v2 []float64) float64 {
	d := len(v1)
	if d == 0 {
		return 0
	}

	outer := mat.NewDense(d, d, nil)
	outer.Outer(1, mat.NewVecDense(d, v1), mat.NewVecDense(d, v2))

	var svd mat.SVD
	if ok := svd.Factorize(outer, mat.SVDNone); !ok {
		return 0
	}
	vals := svd.Values(nil)

	sum := floats.Sum(vals) + entEpsilon
	var entropy float64
	for _, s := range vals {
		p := s / sum
		entropy -= p * math.Log(p+entEpsilon)
	}

	maxEntropy := math.Log(float64(d))
	return vectormath.Clamp01(entropy / (maxEntropy + entEpsilon))
}
