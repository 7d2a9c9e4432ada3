package server

import (
	"github.com/aeqip/imgsim/internal/search"
	"github.com/aeqip/imgsim/internal/similarity"
)

// SearchResponse is the payload for /api/search and /api/upload
type SearchResponse struct {
	Success             bool                  `json:"success"`
	Status              search.Status         `json:"status"`
	Message             string                `json:"message"`
	QueryImage          string                `json:"query_image"`
	ImageID             string                `json:"image_id,omitempty"`
	TotalResults        int                   `json:"total_results"`
	HighConfidenceCount int                   `json:"high_confidence_results"`
	ExactMatch          *search.RankedResult  `json:"exact_match"`
	Results             []search.RankedResult `json:"results"`
}

// CompareResponse is the payload for /api/compare
type CompareResponse struct {
	Success   bool                  `json:"success"`
	Breakdown *similarity.Breakdown `json:"breakdown"`
}

// StatsResponse is the payload for /api/stats
type StatsResponse struct {
	TotalImages      int            `json:"total_images"`
	Categories       map[string]int `json:"categories"`
	Scheme           string         `json:"similarity_scheme"`
	FeatureDimension int            `json:"feature_dimension"`
}
