package search

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/aeqip/imgsim/internal/similarity"
	"github.com/aeqip/imgsim/internal/vectormath"
)

// parallelThreshold is the candidate count above which scoring fans out
// to a worker pool. Below it the goroutine overhead outweighs the win.
const parallelThreshold = 256

// scoreWorkers bounds the scoring pool.
const scoreWorkers = 8

// Ranker applies the similarity kernel across a candidate set and
// produces a filtered, ordered top-K. Stateless and safe for concurrent
// use.
type Ranker struct {
	kernel    *similarity.Kernel
	dimension int
}

// NewRanker creates a Ranker. dimension is the configured feature
// dimension every query vector must match; 0 disables the query check.
func NewRanker(kernel *similarity.Kernel, dimension int) *Ranker {
	return &Ranker{kernel: kernel, dimension: dimension}
}

// Rank scores every candidate against query, filters by category and
// minimum score, sorts descending (stable, so ties keep candidate-set
// order) and truncates to TopK.
//
// A malformed query fails the whole call with *vectormath.DimensionError.
// A malformed stored candidate is logged and skipped; one bad record must
// not abort the search.
func (r *Ranker) Rank(query []float64, candidates []Candidate, opts Options) ([]RankedResult, error) {
	if r.dimension > 0 && len(query) != r.dimension {
		return nil, &vectormath.DimensionError{Want: r.dimension, Got: len(query)}
	}

	filtered := candidates
	if opts.Category != "" || opts.ExcludeID != "" {
		filtered = make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if opts.Category != "" && c.Category != opts.Category {
				continue
			}
			if opts.ExcludeID != "" && c.ID == opts.ExcludeID {
				continue
			}
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return []RankedResult{}, nil
	}

	scores := r.scoreAll(query, filtered)

	results := make([]RankedResult, 0, len(filtered))
	for i, c := range filtered {
		s := scores[i]
		if s.skip || s.value < opts.MinScore {
			continue
		}
		results = append(results, RankedResult{
			ID:          c.ID,
			Filename:    c.Filename,
			Category:    c.Category,
			StoragePath: c.StoragePath,
			Score:       s.value,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

// Breakdown computes the full component breakdown for two query vectors.
// Both must match the configured dimension.
func (r *Ranker) Breakdown(a, b []float64) (*similarity.Breakdown, error) {
	if r.dimension > 0 {
		if len(a) != r.dimension {
			return nil, &vectormath.DimensionError{Want: r.dimension, Got: len(a)}
		}
		if len(b) != r.dimension {
			return nil, &vectormath.DimensionError{Want: r.dimension, Got: len(b)}
		}
	}
	return r.kernel.ScoreBreakdown(a, b)
}

type candidateScore struct {
	value float64
	skip  bool
}

// scoreAll computes scores index-aligned with candidates, fanning out to
// a bounded worker pool for large sets. Order is preserved by indexed
// writes, so the stable sort downstream still breaks ties by original
// candidate order.
func (r *Ranker) scoreAll(query []float64, candidates []Candidate) []candidateScore {
	scores := make([]candidateScore, len(candidates))

	if len(candidates) < parallelThreshold {
		for i := range candidates {
			scores[i] = r.scoreOne(query, &candidates[i])
		}
		return scores
	}

	var wg sync.WaitGroup
	chunk := (len(candidates) + scoreWorkers - 1) / scoreWorkers
	for start := 0; start < len(candidates); start += chunk {
		end := start + chunk
		if end > len(candidates) {
			end = len(candidates)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				scores[i] = r.scoreOne(query, &candidates[i])
			}
		}(start, end)
	}
	wg.Wait()
	return scores
}

func (r *Ranker) scoreOne(query []float64, c *Candidate) candidateScore {
	score, err := r.kernel.Score(query, c.Vector)
	if err != nil {
		if errors.Is(err, vectormath.ErrDimensionMismatch) {
			slog.Warn("skipping candidate with mismatched vector",
				"id", c.ID,
				"filename", c.Filename,
				"dimension", len(c.Vector),
				"query_dimension", len(query))
		} else {
			slog.Warn("skipping candidate after scoring failure",
				"id", c.ID,
				"error", err)
		}
		return candidateScore{skip: true}
	}
	return candidateScore{value: score}
}
