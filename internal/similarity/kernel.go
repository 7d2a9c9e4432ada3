/*
Package similarity implements the quantum-inspired similarity kernel: a
blended scoring function that turns two embedding vectors into one bounded
score in [0,1].

The "quantum" terms are deterministic classical transforms modeled on
quantum-state overlap formulas. Two blending schemes exist upstream and
both are kept here as named strategies:

  - SchemeFull: 70% classical cosine + 20% fidelity + 10% phase coherence,
    refined by an amplitude-estimation pass (80/20). Produces the full
    component breakdown.
  - SchemeFast: 90% clamped cosine + 10% of the same cosine raised to
    0.95. No complex-state construction; for latency-sensitive paths
    where only the scalar matters.
*/
package similarity

import (
	"math"

	"github.com/aeqip/imgsim/internal/vectormath"
)

// Scheme names a blending formula.
type Scheme string

const (
	// SchemeFull is the three-term blend with amplitude estimation.
	SchemeFull Scheme = "full"
	// SchemeFast is the lightweight two-term cosine blend.
	SchemeFast Scheme = "fast"
)

// phaseFactor scales the imaginary component of the constructed
// quantum-state vectors.
const phaseFactor = 0.1

// DefaultPrecisionBits is the amplitude-estimation precision exponent
// used when none is configured.
const DefaultPrecisionBits = 7

// Options configures a Kernel.
type Options struct {
	Scheme             Scheme
	PrecisionBits      int
	EnableEntanglement bool
}

// Breakdown is the output of one pairwise comparison: the overall score
// plus its named component sub-scores. All values lie in [0,1].
type Breakdown struct {
	Similarity         float64  `json:"similarity"`
	Classical          float64  `json:"classical"`
	Fidelity           float64  `json:"quantum_fidelity"`
	Coherence          float64  `json:"phase_coherence"`
	AmplitudeEstimated float64  `json:"amplitude_estimated"`
	Combined           float64  `json:"combined"`
	Entanglement       *float64 `json:"entanglement,omitempty"`
}

// Kernel computes blended similarity scores. It is stateless after
// construction and safe for concurrent use.
type Kernel struct {
	scheme             Scheme
	precision          float64 // 2^PrecisionBits
	enableEntanglement bool
}

// New creates a Kernel. Zero-value options fall back to SchemeFull with
// DefaultPrecisionBits and the entanglement term disabled.
func New(opts Options) *Kernel {
	scheme := opts.Scheme
	if scheme == "" {
		scheme = SchemeFull
	}
	bits := opts.PrecisionBits
	if bits <= 0 {
		bits = DefaultPrecisionBits
	}
	return &Kernel{
		scheme:             scheme,
		precision:          math.Pow(2, float64(bits)),
		enableEntanglement: opts.EnableEntanglement,
	}
}

// Scheme returns the configured blending scheme.
func (k *Kernel) Scheme() Scheme { return k.scheme }

// Score returns the blended similarity of a and b under the configured
// scheme. Degenerate (near-zero norm) inputs score 0 without error;
// mismatched lengths fail with a *vectormath.DimensionError.
func (k *Kernel) Score(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &vectormath.DimensionError{Want: len(a), Got: len(b)}
	}
	if vectormath.IsDegenerate(a) || vectormath.IsDegenerate(b) {
		return 0, nil
	}
	if k.scheme == SchemeFast {
		return fastSimilarity(a, b), nil
	}
	bd := k.breakdown(a, b)
	return bd.Similarity, nil
}

// ScoreBreakdown returns the full component breakdown for a and b. The
// breakdown is always computed with the full blend, regardless of the
// configured scheme; the fast scheme has no meaningful components.
func (k *Kernel) ScoreBreakdown(a, b []float64) (*Breakdown, error) {
	if len(a) != len(b) {
		return nil, &vectormath.DimensionError{Want: len(a), Got: len(b)}
	}
	if vectormath.IsDegenerate(a) || vectormath.IsDegenerate(b) {
		return &Breakdown{}, nil
	}
	bd := k.breakdown(a, b)
	return bd, nil
}

// breakdown computes the SchemeFull blend. Inputs must be non-degenerate
// and equal length.
func (k *Kernel) breakdown(a, b []float64) *Breakdown {
	v1 := vectormath.Normalize(a)
	v2 := vectormath.Normalize(b)

	// One pass over the dimensions covers all three cheap terms: the
	// classical dot product, the complex-state overlap for fidelity, and
	// the running sum of phase-difference cosines for coherence.
	var dot float64
	var overlapRe, overlapIm float64
	var phaseCosSum float64
	for i := range v1 {
		x, y := v1[i], v2[i]
		dot += x * y

		// Quantum-state construction: real part is the component, the
		// imaginary part fills the remaining amplitude scaled by the
		// phase factor.
		ix := math.Sqrt(math.Max(0, 1-x*x)) * phaseFactor
		iy := math.Sqrt(math.Max(0, 1-y*y)) * phaseFactor

		// conj(q1[i]) * q2[i]
		overlapRe += x*y + ix*iy
		overlapIm += x*iy - ix*y

		phaseCosSum += math.Cos(math.Atan2(iy, y) - math.Atan2(ix, x))
	}
	n := float64(len(v1))

	classical := vectormath.Clamp01((dot + 1) / 2)
	fidelity := vectormath.Clamp01(overlapRe*overlapRe + overlapIm*overlapIm)
	coherence := vectormath.Clamp01((phaseCosSum/n + 1) / 2)

	ae := k.estimateAmplitude(classical, fidelity)

	combined := 0.70*classical + 0.20*fidelity + 0.10*coherence
	final := vectormath.Clamp01(0.8*combined + 0.2*ae)

	bd := &Breakdown{
		Similarity:         final,
		Classical:          classical,
		Fidelity:           fidelity,
		Coherence:          coherence,
		AmplitudeEstimated: ae,
		Combined:           combined,
	}
	if k.enableEntanglement {
		ent := entanglementMeasure(v1, v2)
		bd.Entanglement = &ent
	}
	return bd
}

// estimateAmplitude applies the amplitude-estimation refinement: the
// combined classical/fidelity signal is mapped to a rotation angle,
// boosted by the precision factor 1/2^P, and mapped back.
func (k *Kernel) estimateAmplitude(classical, fidelity float64) float64 {
	combined := (classical + fidelity) / 2
	theta := math.Asin(math.Sqrt(vectormath.Clamp01(combined)))
	enhanced := theta * (1 + 1/k.precision)
	s := math.Sin(enhanced)
	return vectormath.Clamp01(s * s)
}

// fastSimilarity is the SchemeFast path: clamped cosine with a mild
// non-linearity that amplifies high similarities. Inputs must be
// non-degenerate and equal length.
func fastSimilarity(a, b []float64) float64 {
	v1 := vectormath.Normalize(a)
	v2 := vectormath.Normalize(b)

	var dot float64
	for i := range v1 {
		dot += v1[i] * v2[i]
	}
	// Image embeddings are non-negative in practice, so the raw cosine is
	// clamped rather than remapped here. This matches the production fast
	// path; the full scheme remaps (x+1)/2 instead.
	classical := vectormath.Clamp01(dot)
	boosted := math.Pow(classical, 0.95)

	return vectormath.Clamp01(0.90*classical + 0.10*boosted)
}
