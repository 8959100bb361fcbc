// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit persists finished conversions and their failed attempts in
// a local SQLite database.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// DefaultLimit is the number of records Recent returns when limit <= 0.
const DefaultLimit = 20

// ErrNotFound reports an unknown conversion ID.
var ErrNotFound = errors.New("conversion not found")

// Store manages the audit database. Writes are serialized through a single
// connection, so a Store is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the audit database at path and its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			status TEXT NOT NULL,
			strategy TEXT,
			pages INTEGER,
			bytes INTEGER,
			started_at TEXT NOT NULL,
			duration_ns INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			conversion_id TEXT NOT NULL REFERENCES conversions(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT,
			duration_ns INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_started_at ON conversions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_conversion_id ON attempts(conversion_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores rec and its attempts in one transaction.
func (s *Store) Record(ctx context.Context, rec types.ConversionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversions (id, filename, status, strategy, pages, bytes, started_at, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, string(rec.Status), rec.Strategy, rec.Pages, rec.Bytes,
		rec.StartedAt.UTC().Format(time.RFC3339Nano), int64(rec.Duration),
	)
	if err != nil {
		return fmt.Errorf("inserting conversion %s: %w", rec.ID, err)
	}

	if len(rec.Attempts) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO attempts (conversion_id, position, strategy, kind, detail, duration_ns)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, a := range rec.Attempts {
			if _, err := stmt.ExecContext(ctx, rec.ID, i, a.Strategy, string(a.Kind), a.Detail, int64(a.Duration)); err != nil {
				return fmt.Errorf("inserting attempt %d of %s: %w", i, rec.ID, err)
			}
		}
	}

	return tx.Commit()
}

const selectConversions = `SELECT id, filename, status, strategy, pages, bytes, started_at, duration_ns FROM conversions`

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]types.ConversionRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		selectConversions+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversions: %w", err)
	}

	var records []types.ConversionRecord
	for rows.Next() {
		rec, err := scanConversion(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating conversions: %w", err)
	}
	// The single connection must be free before attempts are loaded.
	rows.Close()

	for i := range records {
		if records[i].Attempts, err = s.attempts(ctx, records[i].ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (types.ConversionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectConversions+` WHERE id = ?`, id)
	rec, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ConversionRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.ConversionRecord{}, err
	}
	if rec.Attempts, err = s.attempts(ctx, id); err != nil {
		return types.ConversionRecord{}, err
	}
	return rec, nil
}

// Summary counts conversions per status.
type Summary struct {
	Converted int `json:"converted" yaml:"converted"`
	Failed    int `json:"failed" yaml:"failed"`
	Rejected  int `json:"rejected" yaml:"rejected"`
}

// Total returns the number of recorded conversions.
func (s Summary) Total() int {
	return s.Converted + s.Failed + s.Rejected
}

// Summarize counts every recorded conversion by status.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM conversions GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("querying summary: %w", err)
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Summary{}, fmt.Errorf("scanning summary: %w", err)
		}
		switch types.ConversionStatus(status) {
		case types.ConversionDone:
			sum.Converted = n
		case types.ConversionFailed:
			sum.Failed = n
		case types.ConversionInvalid:
			sum.Rejected = n
		}
	}
	return sum, rows.Err()
}

func (s *Store) attempts(ctx context.Context, id string) ([]types.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT strategy, kind, detail, duration_ns FROM attempts WHERE conversion_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying attempts of %s: %w", id, err)
	}
	defer rows.Close()

	var out []types.Attempt
	for rows.Next() {
		var a types.Attempt
		var kind string
		var detail sql.NullString
		var dur sql.NullInt64
		if err := rows.Scan(&a.Strategy, &kind, &detail, &dur); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Kind = types.ErrorKind(kind)
		a.Detail = detail.String
		a.Duration = time.Duration(dur.Int64)
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(sc scanner) (types.ConversionRecord, error) {
	var rec types.ConversionRecord
	var status, startedAt string
	var strategy sql.NullString
	var pages, bytes, dur sql.NullInt64
	if err := sc.Scan(&rec.ID, &rec.Filename, &status, &strategy, &pages, &bytes, &startedAt, &dur); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scanning conversion: %w", err)
	}
	rec.Status = types.ConversionStatus(status)
	rec.Strategy = strategy.String
	rec.Pages = int(pages.Int64)
	rec.Bytes = bytes.Int64
	rec.Duration = time.Duration(dur.Int64)
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		rec.StartedAt = t
	}
	return rec, nil
}
