package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists definitions in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would otherwise see its own
	// empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS timers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		duration INTEGER NOT NULL CHECK (duration > 0),
		sound_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_timers_created_at ON timers(created_at);
	`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectDefinition = `SELECT id, name, duration, sound_id, created_at, updated_at FROM timers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (Definition, error) {
	var (
		d     Definition
		sound sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Duration, &sound, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Definition{}, err
	}
	if sound.Valid {
		d.SoundID = sound.String
	}
	return d, nil
}

// List returns all definitions ordered by creation time.
func (s *SQLiteStore) List(ctx context.Context) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, selectDefinition+` ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := []Definition{}
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// Get returns one definition.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Definition, error) {
	d, err := scanDefinition(s.db.QueryRowContext(ctx, selectDefinition+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, ErrNotFound
	}
	return d, err
}

// Create inserts a new definition with a generated id.
func (s *SQLiteStore) Create(ctx context.Context, in DefinitionInput) (Definition, error) {
	if err := in.Validate(); err != nil {
		return Definition{}, err
	}

	now := time.Now().UTC()
	d := Definition{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Duration:  in.Duration,
		SoundID:   in.SoundID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timers (id, name, duration, sound_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.Name, d.Duration, nullString(d.SoundID), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return Definition{}, err
	}
	return d, nil
}

// Update replaces the writable fields of a definition.
func (s *SQLiteStore) Update(ctx context.Context, id string, in DefinitionInput) (Definition, error) {
	if err := in.Validate(); err != nil {
		return Definition{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE timers SET name = ?, duration = ?, sound_id = ?, updated_at = ?
		WHERE id = ?
	`, in.Name, in.Duration, nullString(in.SoundID), time.Now().UTC(), id)
	if err := affectedOne(res, err); err != nil {
		return Definition{}, err
	}
	return s.Get(ctx, id)
}

// UpdateDuration changes only the duration.
func (s *SQLiteStore) UpdateDuration(ctx context.Context, id string, seconds int) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE timers SET duration = ?, updated_at = ? WHERE id = ?
	`, seconds, time.Now().UTC(), id)
	return affectedOne(res, err)
}

// Delete removes a definition.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM timers WHERE id = ?`, id)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*SQLiteStore)(nil)
