package search

import (
	"fmt"

	"github.com/aeqip/imgsim/types"
)

// Status labels the confidence of a ranked result set.
type Status string

const (
	StatusNotFound       Status = "not_found"
	StatusExactMatch     Status = "exact_match"
	StatusHighConfidence Status = "high_confidence"
	StatusLowConfidence  Status = "low_confidence"
)

// Classification is the outcome of bucketing a ranked result set against
// the configured thresholds. Purely derived; no side effects.
type Classification struct {
	Status              Status        `json:"status"`
	Message             string        `json:"message"`
	ExactMatch          *RankedResult `json:"exact_match,omitempty"`
	HighConfidenceCount int           `json:"high_confidence_results"`
}

// Classify buckets results (ordered descending by score) into exactly one
// status. Exact match takes priority over high confidence when both
// conditions hold.
func Classify(results []RankedResult, th types.ThresholdConfig) Classification {
	if len(results) == 0 {
		return Classification{
			Status:  StatusNotFound,
			Message: "No similar images found in database",
		}
	}

	highCount := 0
	for _, r := range results {
		if r.Score >= th.HighConfidence {
			highCount++
		}
	}

	if results[0].Score >= th.ExactMatch {
		top := results[0]
		return Classification{
			Status:              StatusExactMatch,
			Message:             fmt.Sprintf("Found exact match: %s", top.Filename),
			ExactMatch:          &top,
			HighConfidenceCount: highCount,
		}
	}

	if highCount > 0 {
		return Classification{
			Status:              StatusHighConfidence,
			Message:             fmt.Sprintf("Found %d high confidence matches", highCount),
			HighConfidenceCount: highCount,
		}
	}

	return Classification{
		Status:  StatusLowConfidence,
		Message: "Found some matches but with low confidence",
	}
}
