package export

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is stored in PRAGMA user_version.
//
//	0: tables from schema.sql only
//	1: index on bundles(source, session_id) for ListBySource
const currentSchemaVersion = 1

// Store archives bundles in SQLite.
// Uses WAL mode so listings can run while a label session writes.
type Store struct {
	db *sql.DB
}

// OpenStore creates or opens a SQLite archive at path.
// The connection runs in WAL mode with NORMAL sync, a 5s busy timeout and
// foreign keys on; the schema is created and migrated before returning.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open bundle store %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open bundle store %s: %w", path, err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("bundle store pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("bundle store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates missing tables, then migrates. Safe to rerun.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// runMigrations upgrades from the recorded user_version to
// currentSchemaVersion.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bundles_source
		ON bundles(source, session_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// Write inserts b. Uses ON CONFLICT(session_id) DO NOTHING for idempotency:
// rewriting an identical bundle succeeds, while a different bundle under the
// same session ID fails with ErrConflict. The returned key is the session ID.
func (s *Store) Write(ctx context.Context, b *Bundle) (string, error) {
	payload, err := Encode(b)
	if err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write bundle: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bundles
		(session_id, source, width, height, depth, capacity, digest, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`,
		b.SessionID,
		b.Source,
		b.Width,
		b.Height,
		b.Depth,
		b.Capacity,
		b.Digest,
		payload,
	)
	if err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("write bundle: rows affected: %w", err)
	}

	if n == 0 {
		var digest string
		if err := tx.QueryRowContext(ctx,
			`SELECT digest FROM bundles WHERE session_id = ?`, b.SessionID,
		).Scan(&digest); err != nil {
			return "", fmt.Errorf("write bundle: lookup existing: %w", err)
		}
		if digest != b.Digest {
			return "", fmt.Errorf("write bundle %s: %w", b.SessionID, ErrConflict)
		}
		return b.SessionID, nil
	}

	for i, name := range b.Joints {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bundle_joints (session_id, position, name)
			VALUES (?, ?, ?)
		`, b.SessionID, i, name); err != nil {
			return "", fmt.Errorf("write bundle: joint %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write bundle: commit: %w", err)
	}
	return b.SessionID, nil
}

// Read loads and verifies the bundle for sessionID.
func (s *Store) Read(ctx context.Context, sessionID string) (*Bundle, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM bundles WHERE session_id = ?`, sessionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read bundle %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", sessionID, err)
	}
	return DecodeBundle(payload)
}

// List returns all bundles ordered by session ID (binary collation), which
// for UUIDv7 IDs is creation order.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	return s.list(ctx, `
		SELECT session_id, source, depth, capacity, digest
		FROM bundles
		ORDER BY session_id COLLATE BINARY ASC
	`)
}

// ListBySource returns the bundles labelled from source.
func (s *Store) ListBySource(ctx context.Context, source string) ([]Summary, error) {
	return s.list(ctx, `
		SELECT session_id, source, depth, capacity, digest
		FROM bundles
		WHERE source = ?
		ORDER BY session_id COLLATE BINARY ASC
	`, source)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.SessionID, &sum.Source, &sum.Depth, &sum.Capacity, &sum.Digest); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundles: %w", err)
	}
	return out, nil
}

// Joints returns the joint names stored for sessionID, in position order.
func (s *Store) Joints(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM bundle_joints
		WHERE session_id = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query joints: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan joint: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
