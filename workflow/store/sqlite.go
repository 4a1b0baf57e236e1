package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/certo-ventures/loom/workflow/wdl"
)

// SQLiteStore is a SQLite-backed Store, grounded on the teacher's
// graph/store/sqlite.go single-file WAL-mode pattern: one connection, WAL
// journal mode, a busy timeout, and auto-migration of its one table on
// first use.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (and migrates) a SQLite database at path. Use
// ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("workflow/store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("workflow/store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS workflow_versions (
	workflow_id  TEXT NOT NULL,
	version      TEXT NOT NULL,
	definition   TEXT NOT NULL,
	metadata     TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	PRIMARY KEY (workflow_id, version)
);
CREATE INDEX IF NOT EXISTS idx_workflow_versions_seq ON workflow_versions(workflow_id, seq);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, id string, def wdl.Definition, meta wdl.VersionMetadata) (wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_versions WHERE workflow_id = ?`, id).Scan(&count); err != nil {
		return wdl.Version{}, err
	}
	if count > 0 {
		return wdl.Version{}, ErrAlreadyExists
	}

	meta.ID = id
	meta.Version = "1.0.0"
	v := wdl.Version{Metadata: meta, Definition: def}
	if err := s.insert(ctx, id, v, 0); err != nil {
		return wdl.Version{}, err
	}
	return v, nil
}

func (s *SQLiteStore) Publish(ctx context.Context, id string, def wdl.Definition, bump Bump) (wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, seq, err := s.latest(ctx, id)
	if err != nil {
		return wdl.Version{}, err
	}
	nextVersion, err := BumpVersion(latest.Metadata.Version, bump)
	if err != nil {
		return wdl.Version{}, err
	}
	meta := latest.Metadata
	meta.Version = nextVersion
	v := wdl.Version{Metadata: meta, Definition: def}
	if err := s.insert(ctx, id, v, seq+1); err != nil {
		return wdl.Version{}, err
	}
	return v, nil
}

func (s *SQLiteStore) insert(ctx context.Context, id string, v wdl.Version, seq int) error {
	defRaw, err := json.Marshal(v.Definition)
	if err != nil {
		return err
	}
	metaRaw, err := json.Marshal(v.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_versions (workflow_id, version, definition, metadata, seq) VALUES (?, ?, ?, ?, ?)`,
		id, v.Metadata.Version, string(defRaw), string(metaRaw), seq)
	return err
}

func (s *SQLiteStore) latest(ctx context.Context, id string) (wdl.Version, int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT definition, metadata, seq FROM workflow_versions WHERE workflow_id = ? ORDER BY seq DESC LIMIT 1`, id)
	var defRaw, metaRaw string
	var seq int
	if err := row.Scan(&defRaw, &metaRaw, &seq); err != nil {
		if err == sql.ErrNoRows {
			return wdl.Version{}, 0, ErrNotFound
		}
		return wdl.Version{}, 0, err
	}
	v, err := decodeVersion(defRaw, metaRaw)
	return v, seq, err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _, err := s.latest(ctx, id)
	return v, err
}

func (s *SQLiteStore) GetVersion(ctx context.Context, id, version string) (wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT definition, metadata FROM workflow_versions WHERE workflow_id = ? AND version = ?`, id, version)
	var defRaw, metaRaw string
	if err := row.Scan(&defRaw, &metaRaw); err != nil {
		if err == sql.ErrNoRows {
			return wdl.Version{}, ErrNotFound
		}
		return wdl.Version{}, err
	}
	return decodeVersion(defRaw, metaRaw)
}

func (s *SQLiteStore) ListVersions(ctx context.Context, id string) ([]wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT definition, metadata FROM workflow_versions WHERE workflow_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wdl.Version
	for rows.Next() {
		var defRaw, metaRaw string
		if err := rows.Scan(&defRaw, &metaRaw); err != nil {
			return nil, err
		}
		v, err := decodeVersion(defRaw, metaRaw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func decodeVersion(defRaw, metaRaw string) (wdl.Version, error) {
	var v wdl.Version
	if err := json.Unmarshal([]byte(defRaw), &v.Definition); err != nil {
		return wdl.Version{}, err
	}
	if err := json.Unmarshal([]byte(metaRaw), &v.Metadata); err != nil {
		return wdl.Version{}, err
	}
	return v, nil
}
