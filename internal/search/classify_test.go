package search

import (
	"testing"

	"github.com/aeqip/imgsim/types"
)

func testThresholds() types.ThresholdConfig {
	return types.ThresholdConfig{
		GoodConfidence: 0.85,
		HighConfidence: 0.95,
		ExactMatch:     0.98,
	}
}

func resultsWithScores(scores ...float64) []RankedResult {
	out := make([]RankedResult, len(scores))
	for i, s := range scores {
		out[i] = RankedResult{ID: "id", Filename: "img.jpg", Score: s}
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		scores     []float64
		wantStatus Status
		wantHigh   int
	}{
		{
			name:       "exact match",
			scores:     []float64{0.99, 0.80, 0.5},
			wantStatus: StatusExactMatch,
			wantHigh:   1,
		},
		{
			name:       "high confidence",
			scores:     []float64{0.96, 0.80},
			wantStatus: StatusHighConfidence,
			wantHigh:   1,
		},
		{
			name:       "low confidence",
			scores:     []float64{0.70},
			wantStatus: StatusLowConfidence,
			wantHigh:   0,
		},
		{
			name:       "not found",
			scores:     nil,
			wantStatus: StatusNotFound,
			wantHigh:   0,
		},
		{
			name:       "exact takes priority over high",
			scores:     []float64{0.99, 0.97},
			wantStatus: StatusExactMatch,
			wantHigh:   2,
		},
		{
			name:       "boundary exactly at exact threshold",
			scores:     []float64{0.98},
			wantStatus: StatusExactMatch,
			wantHigh:   1,
		},
		{
			name:       "boundary exactly at high threshold",
			scores:     []float64{0.95},
			wantStatus: StatusHighConfidence,
			wantHigh:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(resultsWithScores(tt.scores...), testThresholds())
			if got.Status != tt.wantStatus {
				t.Errorf("Classify() status = %v, want %v", got.Status, tt.wantStatus)
			}
			if got.HighConfidenceCount != tt.wantHigh {
				t.Errorf("Classify() high count = %d, want %d", got.HighConfidenceCount, tt.wantHigh)
			}
			if got.Message == "" {
				t.Error("Classify() message is empty")
			}
			if tt.wantStatus == StatusExactMatch && got.ExactMatch == nil {
				t.Error("Classify() exact match result missing")
			}
			if tt.wantStatus != StatusExactMatch && got.ExactMatch != nil {
				t.Error("Classify() unexpected exact match result")
			}
		})
	}
}
