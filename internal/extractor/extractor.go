// Package extractor provides the feature-extraction client: image bytes
// in, fixed-length embedding vector out. The model itself runs in a
// separate inference server; this package only speaks its HTTP API.
package extractor

import "context"

// Extractor turns an image into an embedding vector. Implementations
// must be deterministic for a given image and model version; the ranking
// pipeline relies on identical images producing identical vectors.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float64, error)
	Close() error
}
