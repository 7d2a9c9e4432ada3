package cmd

import (
	"fmt"
	"time"

	"github.com/aeqip/imgsim/internal/extractor"
	"github.com/aeqip/imgsim/internal/search"
	"github.com/aeqip/imgsim/internal/similarity"
	"github.com/aeqip/imgsim/internal/store"
)

// openStore opens the sqlite store rooted at the configured data
// directory.
func openStore() (*store.Store, error) {
	cfg := GetConfig()
	st, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.Storage.DataDir, err)
	}
	return st, nil
}

// newExtractor builds the HTTP client for the feature extraction server.
func newExtractor() (*extractor.HTTPExtractor, error) {
	cfg := GetConfig()
	return extractor.NewHTTPExtractor(&extractor.Config{
		BaseURL:   cfg.Extractor.BaseURL,
		Model:     cfg.Extractor.Model,
		Dimension: cfg.Feature.Dimension,
		Timeout:   time.Duration(cfg.Extractor.TimeoutSeconds) * time.Second,
	})
}

// newRanker wires the configured similarity kernel into a ranker.
func newRanker() *search.Ranker {
	cfg := GetConfig()
	kernel := similarity.New(similarity.Options{
		Scheme:             similarity.Scheme(cfg.Similarity.Scheme),
		PrecisionBits:      cfg.Similarity.PrecisionBits,
		EnableEntanglement: cfg.Similarity.EnableEntanglement,
	})
	return search.NewRanker(kernel, cfg.Feature.Dimension)
}
