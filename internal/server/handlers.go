package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/aeqip/imgsim/internal/search"
	"github.com/aeqip/imgsim/internal/store"
	"github.com/aeqip/imgsim/internal/vectormath"
)

// maxUploadBytes caps multipart uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// defaultTopK is used when the caller doesn't specify one.
const defaultTopK = 10

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeAPIJSON(w, map[string]any{
		"message": "Image Similarity Retrieval API",
		"version": Version,
		"endpoints": map[string]string{
			"search":  "/api/search",
			"upload":  "/api/upload",
			"compare": "/api/compare",
			"image":   "/api/image/{id}",
			"stats":   "/api/stats",
			"health":  "/api/health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeAPIJSON(w, map[string]string{"status": "healthy"})
}

// handleSearch extracts features from the uploaded image and returns the
// most similar stored images without persisting anything.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	filename, image, ok := readImageFile(w, r)
	if !ok {
		return
	}

	features, err := s.extractor.Extract(r.Context(), image)
	if err != nil {
		http.Error(w, "feature extraction failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	resp, ok := s.searchSimilar(w, r, features, "")
	if !ok {
		return
	}
	resp.QueryImage = filename
	writeAPIJSON(w, resp)
}

// handleUpload extracts features, persists the image with them, then
// searches the pre-existing records. The fresh record is excluded from
// its own result set.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	filename, image, ok := readImageFile(w, r)
	if !ok {
		return
	}
	category := r.FormValue("category")
	if category == "" {
		http.Error(w, "category is required", http.StatusBadRequest)
		return
	}

	features, err := s.extractor.Extract(r.Context(), image)
	if err != nil {
		http.Error(w, "feature extraction failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	rec := &store.ImageRecord{
		ID:       uuid.NewString(),
		Filename: filename,
		Category: category,
		Features: features,
	}
	if err := s.store.Insert(rec, image); err != nil {
		http.Error(w, "store image: "+err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("image stored", "id", rec.ID, "filename", filename, "category", category)

	resp, ok := s.searchSimilar(w, r, features, rec.ID)
	if !ok {
		return
	}
	resp.QueryImage = filename
	resp.ImageID = rec.ID
	writeAPIJSON(w, resp)
}

// handleCompare scores two uploaded images against each other and
// returns the full component breakdown. Diagnostic endpoint; always uses
// the full scheme.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	var vectors [2][]float64
	for i, field := range []string{"file1", "file2"} {
		f, _, err := r.FormFile(field)
		if err != nil {
			http.Error(w, field+" is required", http.StatusBadRequest)
			return
		}
		image, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			http.Error(w, "read "+field, http.StatusBadRequest)
			return
		}
		vectors[i], err = s.extractor.Extract(r.Context(), image)
		if err != nil {
			http.Error(w, "feature extraction failed: "+err.Error(), http.StatusBadGateway)
			return
		}
	}

	bd, err := s.ranker.Breakdown(vectors[0], vectors[1])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeAPIJSON(w, CompareResponse{Success: true, Breakdown: bd})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	data, err := s.store.ReadImage(id)
	if err != nil {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeAPIJSON(w, StatsResponse{
		TotalImages:      stats.TotalImages,
		Categories:       stats.Categories,
		Scheme:           s.scheme,
		FeatureDimension: s.dimension,
	})
}

// searchSimilar runs the rank-and-classify pipeline for a query vector.
// Writes the HTTP error itself and returns ok=false on failure.
func (s *Server) searchSimilar(w http.ResponseWriter, r *http.Request, features []float64, excludeID string) (*SearchResponse, bool) {
	topK := defaultTopK
	if v := r.FormValue("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid top_k", http.StatusBadRequest)
			return nil, false
		}
		topK = n
	}
	category := r.FormValue("category")

	minScore := s.thresholds.GoodConfidence
	if v := r.FormValue("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			http.Error(w, "invalid min_score", http.StatusBadRequest)
			return nil, false
		}
		minScore = f
	}

	records, err := s.store.List(category)
	if err != nil {
		http.Error(w, "list candidates: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}

	candidates := make([]search.Candidate, len(records))
	for i, rec := range records {
		candidates[i] = search.Candidate{
			ID:          rec.ID,
			Vector:      rec.Features,
			Filename:    rec.Filename,
			Category:    rec.Category,
			StoragePath: rec.StoragePath,
		}
	}

	results, err := s.ranker.Rank(features, candidates, search.Options{
		TopK:      topK,
		MinScore:  minScore,
		ExcludeID: excludeID,
	})
	if err != nil {
		if errors.Is(err, vectormath.ErrDimensionMismatch) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return nil, false
	}

	cls := search.Classify(results, s.thresholds)
	return &SearchResponse{
		Success:             true,
		Status:              cls.Status,
		Message:             cls.Message,
		TotalResults:        len(results),
		HighConfidenceCount: cls.HighConfidenceCount,
		ExactMatch:          cls.ExactMatch,
		Results:             results,
	}, true
}

// readImageFile pulls the "file" part out of a multipart request.
// Writes the HTTP error itself and returns ok=false on failure.
func readImageFile(w http.ResponseWriter, r *http.Request) (filename string, image []byte, ok bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return "", nil, false
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return "", nil, false
	}
	defer func() { _ = f.Close() }()

	image, err = io.ReadAll(f)
	if err != nil || len(image) == 0 {
		http.Error(w, "empty image upload", http.StatusBadRequest)
		return "", nil, false
	}
	return header.Filename, image, true
}

func writeAPIJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode response", "error", err)
	}
}
