// Package search ranks stored candidates against a query embedding and
// classifies the confidence of the outcome.
package search

// Candidate is one stored image record as supplied by the candidate
// store. The ranker treats it as read-only input.
type Candidate struct {
	ID          string
	Vector      []float64
	Filename    string
	Category    string
	StoragePath string
}

// RankedResult is a candidate augmented with its similarity score,
// ordered descending by score. Constructed fresh per query, never
// persisted. The JSON field names match the API payload.
type RankedResult struct {
	ID          string  `json:"image_id"`
	Filename    string  `json:"filename"`
	Category    string  `json:"category"`
	StoragePath string  `json:"storage_path"`
	Score       float64 `json:"similarity"`
}

// Options controls one ranking pass.
type Options struct {
	// TopK truncates the result list; 0 means no limit.
	TopK int
	// Category, when set, restricts ranking to candidates with that
	// category label.
	Category string
	// MinScore drops candidates scoring below it. 0 disables threshold
	// filtering entirely; that is intentional and used by callers that
	// want every candidate back.
	MinScore float64
	// ExcludeID suppresses one candidate ID from the results. Used by
	// insert-and-search flows so a freshly stored image does not match
	// itself.
	ExcludeID string
}
