// Package server exposes the similarity search pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/aeqip/imgsim/internal/extractor"
	"github.com/aeqip/imgsim/internal/search"
	"github.com/aeqip/imgsim/internal/store"
	"github.com/aeqip/imgsim/types"
)

// Version reported by the root endpoint.
const Version = "1.0.0"

// ImageStore abstracts the persistence the handlers need.
type ImageStore interface {
	Insert(rec *store.ImageRecord, image []byte) error
	List(category string) ([]store.ImageRecord, error)
	ReadImage(id string) ([]byte, error)
	GetStats() (*store.Stats, error)
	Close() error
}

type Server struct {
	store      ImageStore
	extractor  extractor.Extractor
	ranker     *search.Ranker
	thresholds types.ThresholdConfig
	dimension  int
	scheme     string
	origins    map[string]struct{}
	server     *http.Server
}

// Config wires the server's collaborators. All fields are required
// except AllowedOrigins, which defaults to allowing any origin.
type Config struct {
	Host           string
	Port           int
	Store          ImageStore
	Extractor      extractor.Extractor
	Ranker         *search.Ranker
	Thresholds     types.ThresholdConfig
	Dimension      int
	Scheme         string
	AllowedOrigins []string
}

func New(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Extractor == nil || cfg.Ranker == nil {
		return nil, fmt.Errorf("server requires store, extractor and ranker")
	}

	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[o] = struct{}{}
	}

	s := &Server{
		store:      cfg.Store,
		extractor:  cfg.Extractor,
		ranker:     cfg.Ranker,
		thresholds: cfg.Thresholds,
		dimension:  cfg.Dimension,
		scheme:     cfg.Scheme,
		origins:    origins,
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.registerRoutes(),
	}

	return s, nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/image/{id}", s.handleGetImage)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	return s.corsMiddleware(mux)
}

// Handler returns the full HTTP handler; used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { _ = s.store.Close() }()

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
