package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/pocsync/innhook/pipeline"
)

// SQLiteStore persists pipeline definitions in a SQLite database. Each
// pipeline is stored as one JSON row keyed by id, reusing the wire codec,
// so the schema never drifts from the pipeline model.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pipelines (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	definition TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pipelines_name ON pipelines(name);
`

// OpenSQLiteStore opens (creating if needed) a SQLite-backed directory at
// the given path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open pipeline db %q: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init pipeline db %q: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListPipelines returns all stored pipelines ordered by name.
func (s *SQLiteStore) ListPipelines() ([]pipeline.Pipeline, error) {
	rows, err := s.db.Query(`SELECT definition FROM pipelines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []pipeline.Pipeline
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("list pipelines: scan: %w", err)
		}
		p, err := pipeline.Decode([]byte(definition))
		if err != nil {
			return nil, fmt.Errorf("list pipelines: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	return out, nil
}

// GetPipeline returns one pipeline by id.
func (s *SQLiteStore) GetPipeline(id string) (pipeline.Pipeline, error) {
	var definition string
	err := s.db.QueryRow(`SELECT definition FROM pipelines WHERE id = ?`, id).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Pipeline{}, ErrNotFound
	}
	if err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("get pipeline %q: %w", id, err)
	}
	return pipeline.Decode([]byte(definition))
}

// SavePipeline inserts or replaces a pipeline by id.
func (s *SQLiteStore) SavePipeline(p pipeline.Pipeline) error {
	definition, err := pipeline.Encode(p)
	if err != nil {
		return fmt.Errorf("save pipeline %q: %w", p.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO pipelines (id, name, status, definition, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			definition = excluded.definition,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, string(p.Status), string(definition), p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	if err != nil {
		return fmt.Errorf("save pipeline %q: %w", p.ID, err)
	}
	return nil
}

// DeletePipeline removes a pipeline by id.
func (s *SQLiteStore) DeletePipeline(id string) error {
	res, err := s.db.Exec(`DELETE FROM pipelines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pipeline %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pipeline %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
