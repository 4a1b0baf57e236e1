package secrets

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL-backed Store, grounded on the teacher's
// graph/store/mysql.go connection-pool/migration pattern.
type MySQLStore struct {
	db     *sql.DB
	cipher *Cipher // optional at-rest encryption, see crypto.go
}

// NewMySQLStore opens (and migrates) a MySQL database at dsn. cipher may be
// nil to store values in plaintext.
func NewMySQLStore(dsn string, cipher *Cipher) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("secrets: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("secrets: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db, cipher: cipher}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS secret_versions (
	name         VARCHAR(255) NOT NULL,
	version      VARCHAR(64) NOT NULL,
	value        TEXT NOT NULL,
	enabled      BOOLEAN NOT NULL DEFAULT TRUE,
	expires_on   DATETIME NULL,
	content_type VARCHAR(255) NULL,
	tags         TEXT NULL,
	created_at   DATETIME NOT NULL,
	seq          INT NOT NULL,
	PRIMARY KEY (name, version)
)`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close releases the underlying database handle.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) encode(value string) (string, error) {
	if s.cipher == nil {
		return value, nil
	}
	return s.cipher.Encrypt(value)
}

func (s *MySQLStore) decode(value string) (string, error) {
	if s.cipher == nil {
		return value, nil
	}
	return s.cipher.Decrypt(value)
}

func (s *MySQLStore) GetSecret(ctx context.Context, name, version string) (Secret, error) {
	var row *sql.Row
	if version != "" {
		row = s.db.QueryRowContext(ctx,
			`SELECT version, value, enabled, expires_on, content_type, created_at FROM secret_versions WHERE name = ? AND version = ?`,
			name, version)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT version, value, enabled, expires_on, content_type, created_at FROM secret_versions
			 WHERE name = ? AND enabled = TRUE AND (expires_on IS NULL OR expires_on > ?)
			 ORDER BY seq DESC LIMIT 1`, name, time.Now())
	}

	var v, value string
	var enabled bool
	var expiresOn sql.NullTime
	var contentType sql.NullString
	var createdAt time.Time
	if err := row.Scan(&v, &value, &enabled, &expiresOn, &contentType, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Secret{}, ErrNotFound
		}
		return Secret{}, err
	}
	plain, err := s.decode(value)
	if err != nil {
		return Secret{}, err
	}
	props := Properties{Name: name, Version: v, Enabled: enabled, ContentType: contentType.String, CreatedAt: createdAt}
	if expiresOn.Valid {
		props.ExpiresOn = &expiresOn.Time
	}
	return Secret{Properties: props, Value: plain}, nil
}

func (s *MySQLStore) SetSecret(ctx context.Context, name, value string, opts SetOptions) (Properties, error) {
	var seq int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM secret_versions WHERE name = ?`, name).Scan(&seq)
	if err != nil {
		return Properties{}, err
	}
	version := fmt.Sprintf("v%d", seq)
	stored, err := s.encode(value)
	if err != nil {
		return Properties{}, err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO secret_versions (name, version, value, enabled, expires_on, content_type, created_at, seq) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name, version, stored, opts.Enabled, opts.ExpiresOn, opts.ContentType, now, seq)
	if err != nil {
		return Properties{}, err
	}
	return Properties{Name: name, Version: version, Enabled: opts.Enabled, ExpiresOn: opts.ExpiresOn, ContentType: opts.ContentType, Tags: opts.Tags, CreatedAt: now}, nil
}

func (s *MySQLStore) DeleteSecret(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE secret_versions SET enabled = FALSE WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) ListSecrets(ctx context.Context) ([]Properties, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sv.name, sv.version, sv.enabled, sv.expires_on, sv.content_type, sv.created_at
		FROM secret_versions sv
		INNER JOIN (
			SELECT name, MAX(seq) AS max_seq FROM secret_versions
			WHERE enabled = TRUE AND (expires_on IS NULL OR expires_on > ?)
			GROUP BY name
		) latest ON sv.name = latest.name AND sv.seq = latest.max_seq
		ORDER BY sv.name`, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Properties
	for rows.Next() {
		var p Properties
		var expiresOn sql.NullTime
		var contentType sql.NullString
		if err := rows.Scan(&p.Name, &p.Version, &p.Enabled, &expiresOn, &contentType, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ContentType = contentType.String
		if expiresOn.Valid {
			p.ExpiresOn = &expiresOn.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
