// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/gainview/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed-width so stored timestamps sort in time order as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a state key has no value.
var ErrNotFound = errors.New("not found")

// Store wraps SQLite access for client state and upload history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS client_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS uploads (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			size INTEGER NOT NULL,
			uploaded_at TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetState returns the value stored under key.
func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// PutState stores value under key, replacing any previous value.
func (s *Store) PutState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(timeLayout))
	return err
}

// DeleteState removes key. Missing keys are not an error.
func (s *Store) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key)
	return err
}

// InsertUpload records an upload attempt.
func (s *Store) InsertUpload(ctx context.Context, rec model.UploadRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, filename, size, uploaded_at, status, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Filename,
		rec.Size,
		rec.UploadedAt.UTC().Format(timeLayout),
		rec.Status,
		rec.Error,
	)
	return err
}

// ListUploads returns the most recent uploads, newest first. limit <= 0 returns all.
func (s *Store) ListUploads(ctx context.Context, limit int) ([]model.UploadRecord, error) {
	query := `SELECT id, filename, size, uploaded_at, status, error
		FROM uploads
		ORDER BY uploaded_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.UploadRecord
	for rows.Next() {
		var rec model.UploadRecord
		var uploadedAt string
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Size, &uploadedAt, &rec.Status, &rec.Error); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, uploadedAt)
		if err != nil {
			return nil, err
		}
		rec.UploadedAt = parsed
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
