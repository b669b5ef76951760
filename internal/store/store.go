// Package store persists processed units and their embeddings in a
// SQLite database with the sqlite-vec extension. One database exists per
// (repository fingerprint, granularity) pair; it is built once and never
// incrementally updated.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Meta keys recorded at build time and validated at load time.
const (
	MetaEmbeddingModel = "embedding_model"
	MetaDimension      = "dimension"
	MetaGranularity    = "granularity"
)

// Store provides persistence and similarity search over processed units.
type Store interface {
	// InsertUnits stores units with their embeddings, in order.
	InsertUnits(units []Unit, embeddings [][]float32) error
	// Search finds the top-k units closest to the query embedding.
	Search(queryEmbedding []float32, k int) ([]SearchResult, error)
	// Count returns the number of stored units.
	Count() (int, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db  *sql.DB
	dim int
}

// Create initializes a fresh database at dbPath for embeddings of the
// given dimension, creating parent directories as needed.
func Create(dbPath string, dim int) (*SQLiteStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	// A fresh build replaces whatever was there, including a corrupt
	// database left behind by an interrupted run.
	for _, stale := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale index: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(ddl, dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	s := &SQLiteStore{db: db, dim: dim}
	if err := s.SetMeta(MetaDimension, strconv.Itoa(dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("record dimension: %w", err)
	}
	return s, nil
}

// Open loads an existing database and validates that its schema is
// usable: the metadata table must record the embedding dimension set at
// build time.
func Open(dbPath string) (*SQLiteStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("index database: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &SQLiteStore{db: db}
	dimStr, err := s.GetMeta(MetaDimension)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read dimension: %w", err)
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil || dim <= 0 {
		db.Close()
		return nil, fmt.Errorf("index has invalid dimension %q", dimStr)
	}
	s.dim = dim
	return s, nil
}

// Dimension returns the embedding dimension the index was built with.
func (s *SQLiteStore) Dimension() int { return s.dim }

func (s *SQLiteStore) InsertUnits(units []Unit, embeddings [][]float32) error {
	if len(units) != len(embeddings) {
		return fmt.Errorf("mismatched units (%d) and embeddings (%d)", len(units), len(embeddings))
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	unitStmt, err := tx.Prepare(
		"INSERT INTO units (source, extension, seq, content, original_content) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer unitStmt.Close()

	vecStmt, err := tx.Prepare("INSERT INTO vec_units (unit_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for i, u := range units {
		res, err := unitStmt.Exec(u.Source, u.Ext, u.Seq, u.Content, u.Original)
		if err != nil {
			return fmt.Errorf("insert unit %s#%d: %w", u.Source, u.Seq, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for %s#%d: %w", u.Source, u.Seq, err)
		}
		if _, err := vecStmt.Exec(id, blob); err != nil {
			return fmt.Errorf("insert embedding for %s#%d: %w", u.Source, u.Seq, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Search(queryEmbedding []float32, k int) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.Query(`
		SELECT v.distance, u.source, u.extension, u.seq, u.content, u.original_content
		FROM vec_units v
		JOIN units u ON u.id = v.unit_id
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		err := rows.Scan(&r.Distance, &r.Unit.Source, &r.Unit.Ext, &r.Unit.Seq,
			&r.Unit.Content, &r.Unit.Original)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM units").Scan(&n)
	return n, err
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
