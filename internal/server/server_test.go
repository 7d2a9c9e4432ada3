package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"

	"github.com/aeqip/imgsim/internal/search"
	"github.com/aeqip/imgsim/internal/similarity"
	"github.com/aeqip/imgsim/internal/store"
	"github.com/aeqip/imgsim/types"
)

const testDim = 4

// fakeExtractor maps image bytes to fixed vectors so handler tests run
// without an inference server.
type fakeExtractor struct {
	vectors map[string][]float64
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte) ([]float64, error) {
	if v, ok := f.vectors[string(image)]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("unknown image")
}

func (f *fakeExtractor) Close() error { return nil }

func newTestServer(t *testing.T, ext *fakeExtractor) (*Server, *store.Store) {
	t.Helper()
	st, err := store.NewWithFs(":memory:", afero.NewMemMapFs())
	if err != nil {
		t.Fatalf("store.NewWithFs() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	kernel := similarity.New(similarity.Options{Scheme: similarity.SchemeFast})
	s, err := New(Config{
		Port:      0,
		Store:     st,
		Extractor: ext,
		Ranker:    search.NewRanker(kernel, testDim),
		Thresholds: types.ThresholdConfig{
			GoodConfidence: 0.0,
			HighConfidence: 0.95,
			ExactMatch:     0.98,
		},
		Dimension: testDim,
		Scheme:    string(similarity.SchemeFast),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, st
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".jpg")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doRequest(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeExtractor{})
	rr := doRequest(t, s, http.MethodGet, "/api/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rr.Code)
	}
}

func TestUploadThenSearchFindsExactMatch(t *testing.T) {
	ext := &fakeExtractor{vectors: map[string][]float64{
		"cat-image": {1, 0, 0, 0},
		"dog-image": {0, 1, 0, 0},
	}}
	s, _ := newTestServer(t, ext)

	// Store the cat image.
	body, ct := multipartBody(t, map[string]string{"category": "healthcare"}, map[string][]byte{"file": []byte("cat-image")})
	rr := doRequest(t, s, http.MethodPost, "/api/upload", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rr.Code, rr.Body.String())
	}
	var uploadResp SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &uploadResp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if uploadResp.ImageID == "" {
		t.Fatal("upload response missing image_id")
	}
	// The freshly stored image must not match itself.
	if uploadResp.Status != search.StatusNotFound {
		t.Errorf("first upload status = %v, want not_found (empty store after self-exclusion)", uploadResp.Status)
	}
	for _, res := range uploadResp.Results {
		if res.ID == uploadResp.ImageID {
			t.Error("upload result set contains the uploaded image itself")
		}
	}

	// Search with the identical image finds it as an exact match.
	body, ct = multipartBody(t, nil, map[string][]byte{"file": []byte("cat-image")})
	rr = doRequest(t, s, http.MethodPost, "/api/search", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rr.Code, rr.Body.String())
	}
	var searchResp SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &searchResp); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if searchResp.Status != search.StatusExactMatch {
		t.Errorf("search status = %v, want exact_match", searchResp.Status)
	}
	if searchResp.ExactMatch == nil || searchResp.ExactMatch.ID != uploadResp.ImageID {
		t.Errorf("exact match = %+v, want stored image %s", searchResp.ExactMatch, uploadResp.ImageID)
	}

	// A dissimilar image stays low confidence or empty.
	body, ct = multipartBody(t, nil, map[string][]byte{"file": []byte("dog-image")})
	rr = doRequest(t, s, http.MethodPost, "/api/search", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("search status = %d", rr.Code)
	}
	var dogResp SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &dogResp); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if dogResp.Status == search.StatusExactMatch || dogResp.Status == search.StatusHighConfidence {
		t.Errorf("dissimilar search status = %v, want low confidence or not found", dogResp.Status)
	}
}

func TestSearchCategoryFilter(t *testing.T) {
	ext := &fakeExtractor{vectors: map[string][]float64{
		"a": {1, 0, 0, 0},
		"b": {1, 0, 0, 0},
		"q": {1, 0, 0, 0},
	}}
	s, st := newTestServer(t, ext)

	seed := []struct {
		id, category, image string
	}{
		{"img-a", "healthcare", "a"},
		{"img-b", "satellite", "b"},
	}
	for _, c := range seed {
		err := st.Insert(&store.ImageRecord{
			ID:       c.id,
			Filename: c.id + ".jpg",
			Category: c.category,
			Features: ext.vectors[c.image],
		}, nil)
		if err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}

	body, ct := multipartBody(t, map[string]string{"category": "healthcare"}, map[string][]byte{"file": []byte("q")})
	rr := doRequest(t, s, http.MethodPost, "/api/search", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "img-a" {
		t.Errorf("category-filtered results = %+v, want only img-a", resp.Results)
	}
}

func TestSearchRequiresFile(t *testing.T) {
	s, _ := newTestServer(t, &fakeExtractor{})
	body, ct := multipartBody(t, map[string]string{"top_k": "5"}, nil)
	rr := doRequest(t, s, http.MethodPost, "/api/search", body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("search without file status = %d, want 400", rr.Code)
	}
}

func TestUploadRequiresCategory(t *testing.T) {
	ext := &fakeExtractor{vectors: map[string][]float64{"x": {1, 0, 0, 0}}}
	s, _ := newTestServer(t, ext)
	body, ct := multipartBody(t, nil, map[string][]byte{"file": []byte("x")})
	rr := doRequest(t, s, http.MethodPost, "/api/upload", body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("upload without category status = %d, want 400", rr.Code)
	}
}

func TestGetImageRoundtrip(t *testing.T) {
	ext := &fakeExtractor{vectors: map[string][]float64{"pic": {0, 0, 1, 0}}}
	s, _ := newTestServer(t, ext)

	body, ct := multipartBody(t, map[string]string{"category": "satellite"}, map[string][]byte{"file": []byte("pic")})
	rr := doRequest(t, s, http.MethodPost, "/api/upload", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rr.Code)
	}
	var resp SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/image/"+resp.ImageID, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get image status = %d", rr.Code)
	}
	if rr.Body.String() != "pic" {
		t.Errorf("get image body = %q, want stored bytes", rr.Body.String())
	}

	rr = doRequest(t, s, http.MethodGet, "/api/image/does-not-exist", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing image status = %d, want 404", rr.Code)
	}
}

func TestCompareBreakdown(t *testing.T) {
	ext := &fakeExtractor{vectors: map[string][]float64{
		"one": {1, 0, 0, 0},
		"two": {1, 0, 0, 0},
	}}
	s, _ := newTestServer(t, ext)

	body, ct := multipartBody(t, nil, map[string][]byte{
		"file1": []byte("one"),
		"file2": []byte("two"),
	})
	rr := doRequest(t, s, http.MethodPost, "/api/compare", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("compare status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp CompareResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Breakdown == nil {
		t.Fatal("compare response missing breakdown")
	}
	if resp.Breakdown.Similarity < 0.999 {
		t.Errorf("identical images similarity = %v, want ~1", resp.Breakdown.Similarity)
	}
}

func TestStats(t *testing.T) {
	ext := &fakeExtractor{vectors: map[string][]float64{"x": {1, 0, 0, 0}}}
	s, st := newTestServer(t, ext)

	for i := 0; i < 3; i++ {
		err := st.Insert(&store.ImageRecord{
			ID:       fmt.Sprintf("id-%d", i),
			Filename: "f.jpg",
			Category: "healthcare",
			Features: []float64{1, 0, 0, 0},
		}, nil)
		if err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}

	rr := doRequest(t, s, http.MethodGet, "/api/stats", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rr.Code)
	}
	var resp StatsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalImages != 3 || resp.Categories["healthcare"] != 3 {
		t.Errorf("stats = %+v, want 3 healthcare images", resp)
	}
	if resp.FeatureDimension != testDim {
		t.Errorf("stats dimension = %d, want %d", resp.FeatureDimension, testDim)
	}
}
