// Package store persists image records and their embedding vectors in
// SQLite, with image bytes written through an afero filesystem so tests
// can run fully in memory.
package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite"
)

// ImageRecord is one stored image with its embedding and metadata.
type ImageRecord struct {
	ID          string
	Filename    string
	Category    string
	StoragePath string
	FeatureDim  int
	Features    []float64
	CreatedAt   time.Time
}

// Stats summarizes the store contents.
type Stats struct {
	TotalImages int            `json:"total_images"`
	Categories  map[string]int `json:"categories"`
}

// Store is a SQLite-backed image store.
type Store struct {
	db      *sql.DB
	fs      afero.Fs
	dataDir string
}

// New opens (or creates) a store rooted at dataDir on the OS filesystem.
// dataDir ":memory:" keeps the database in memory and is intended for
// tests together with NewWithFs.
func New(dataDir string) (*Store, error) {
	return NewWithFs(dataDir, afero.NewOsFs())
}

// NewWithFs opens a store with an explicit filesystem for image blobs.
func NewWithFs(dataDir string, fs afero.Fs) (*Store, error) {
	var dbPath string
	if dataDir == ":memory:" {
		dbPath = ":memory:"
	} else {
		if err := fs.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dbPath = filepath.Join(dataDir, "images.db")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, fs: fs, dataDir: dataDir}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		category TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		feature_dim INTEGER NOT NULL,
		features BLOB NOT NULL,           -- Embedding vector for similarity search
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_images_category ON images(category);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Insert stores an image record and, when image bytes are provided,
// writes them under the data directory. The record's StoragePath is
// populated from its ID.
func (s *Store) Insert(rec *ImageRecord, image []byte) error {
	if rec.ID == "" {
		return fmt.Errorf("image record requires an id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.FeatureDim = len(rec.Features)
	if rec.StoragePath == "" {
		rec.StoragePath = path.Join("images", rec.ID+filepath.Ext(rec.Filename))
	}

	if len(image) > 0 {
		full := filepath.Join(s.dataDir, rec.StoragePath)
		if err := s.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create image directory: %w", err)
		}
		if err := afero.WriteFile(s.fs, full, image, 0o644); err != nil {
			return fmt.Errorf("write image file: %w", err)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO images (id, filename, category, storage_path, feature_dim, features, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.Category, rec.StoragePath,
		rec.FeatureDim, float64SliceToBytes(rec.Features),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// List returns all records, optionally restricted to one category.
// Insertion order is preserved so ranking ties stay deterministic.
func (s *Store) List(category string) ([]ImageRecord, error) {
	query := `SELECT id, filename, category, storage_path, feature_dim, features, created_at
		FROM images`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ImageRecord
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return records, nil
}

// Get returns one record by ID, or sql.ErrNoRows when absent.
func (s *Store) Get(id string) (*ImageRecord, error) {
	row := s.db.QueryRow(`SELECT id, filename, category, storage_path, feature_dim, features, created_at
		FROM images WHERE id = ?`, id)
	return scanImage(row)
}

// ReadImage returns the stored image bytes for the given record ID.
func (s *Store) ReadImage(id string) ([]byte, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dataDir, rec.StoragePath))
	if err != nil {
		return nil, fmt.Errorf("read image file: %w", err)
	}
	return data, nil
}

// Delete removes a record and its stored image bytes.
func (s *Store) Delete(id string) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if err := s.fs.Remove(filepath.Join(s.dataDir, rec.StoragePath)); err != nil {
		// The row is already gone; a missing blob is not worth failing
		// the call.
		return nil
	}
	return nil
}

// GetStats returns totals and per-category counts.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{Categories: make(map[string]int)}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM images`).Scan(&stats.TotalImages); err != nil {
		return nil, fmt.Errorf("count images: %w", err)
	}

	rows, err := s.db.Query(`SELECT category, COUNT(*) FROM images GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		stats.Categories[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return stats, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*ImageRecord, error) {
	var rec ImageRecord
	var featureBytes []byte
	var createdAt string

	err := row.Scan(&rec.ID, &rec.Filename, &rec.Category, &rec.StoragePath,
		&rec.FeatureDim, &featureBytes, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.Features = bytesToFloat64Slice(featureBytes)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

// === Embedding Helpers ===

func float64SliceToBytes(floats []float64) []byte {
	buf := make([]byte, len(floats)*8)
	for i, f := range floats {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func bytesToFloat64Slice(buf []byte) []float64 {
	floats := make([]float64, len(buf)/8)
	for i := range floats {
		floats[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return floats
}
