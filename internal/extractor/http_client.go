// HTTP client for a self-hosted feature-extraction server (ResNet/ViT
// behind an inference endpoint). Supports a JSON endpoint and a raw-bytes
// fallback so both common server layouts work.
package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aeqip/imgsim/internal/vectormath"
)

// Config holds configuration for the HTTP extractor client.
type Config struct {
	// BaseURL is the inference server URL (e.g. "http://localhost:9090")
	BaseURL string

	// Model is the model name (optional, servers with a single loaded
	// model ignore it)
	Model string

	// Dimension, when nonzero, is validated against every response.
	Dimension int

	// Timeout for HTTP requests (default: 30s)
	Timeout time.Duration
}

// HTTPExtractor implements Extractor against an inference server.
type HTTPExtractor struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// featuresRequest is the request payload for /v1/features
type featuresRequest struct {
	Image string `json:"image"` // base64-encoded image bytes
	Model string `json:"model,omitempty"`
}

// featuresResponse is the response from /v1/features
type featuresResponse struct {
	Features []float64 `json:"features"`
	Dim      int       `json:"dim"`
	Model    string    `json:"model"`
}

// NewHTTPExtractor creates a new extractor client.
func NewHTTPExtractor(cfg *Config) (*HTTPExtractor, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("extractor base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPExtractor{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Extract sends the image to the inference server and returns its
// embedding vector. A response with the wrong dimension fails with a
// *vectormath.DimensionError.
func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) ([]float64, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	features, err := e.extractViaJSON(ctx, image)
	if err != nil {
		// Fallback to the raw-bytes endpoint
		features, err = e.extractViaRaw(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("feature extraction failed: %w", err)
		}
	}

	if e.dimension > 0 && len(features) != e.dimension {
		return nil, &vectormath.DimensionError{Want: e.dimension, Got: len(features)}
	}
	return features, nil
}

// extractViaJSON uses the JSON /v1/features endpoint.
func (e *HTTPExtractor) extractViaJSON(ctx context.Context, image []byte) ([]float64, error) {
	reqBody := featuresRequest{
		Image: base64.StdEncoding.EncodeToString(image),
		Model: e.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := e.baseURL + "/v1/features"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("extractor returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var fr featuresResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(fr.Features) == 0 {
		return nil, fmt.Errorf("empty feature vector returned")
	}
	return fr.Features, nil
}

// extractViaRaw uses the raw-bytes /extract endpoint, which returns a
// bare JSON array.
func (e *HTTPExtractor) extractViaRaw(ctx context.Context, image []byte) ([]float64, error) {
	url := e.baseURL + "/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("extractor returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var features []float64
	if err := json.NewDecoder(resp.Body).Decode(&features); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("empty feature vector returned")
	}
	return features, nil
}

// GetDimension returns the embedding dimension reported by the server
// for a probe image. Useful for validating configuration at startup.
func (e *HTTPExtractor) GetDimension(ctx context.Context, probe []byte) (int, error) {
	features, err := e.Extract(ctx, probe)
	if err != nil {
		return 0, fmt.Errorf("probe extraction: %w", err)
	}
	return len(features), nil
}

// Close releases any resources held by the client.
func (e *HTTPExtractor) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// Verify interface compliance at compile time
var _ Extractor = (*HTTPExtractor)(nil)
