package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const busyTimeoutMs = 5000

var _ Store = &SQLite{}

// SQLite is a Store that persists state in a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens, and creates if necessary, the database at file. A file of
// ":memory:" opens a private in-memory database.
func OpenSQLite(file string) (*SQLite, error) {
	connStr := ":memory:"
	if file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
		connStr = fmt.Sprintf("file:%s", filepath.Clean(file))
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMs)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS donation_states (
		contract TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		sweep_pending INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Load(ctx context.Context, contract string) (Record, error) {
	r, err := load(ctx, s.db, contract)
	if err != nil {
		return Record{}, fmt.Errorf("loading %s: %w", contract, err)
	}
	return r, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func load(ctx context.Context, q queryRower, contract string) (Record, error) {
	var text string
	var sweepPending bool
	err := q.QueryRowContext(ctx, `SELECT state, sweep_pending FROM donation_states WHERE contract = ?`, contract).Scan(&text, &sweepPending)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	r := Record{SweepPending: sweepPending}
	if err := r.State.UnmarshalText([]byte(text)); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *SQLite) Save(ctx context.Context, contract string, r Record) error {
	if err := r.validate(); err != nil {
		return fmt.Errorf("saving %s: %w", contract, err)
	}
	text, err := r.State.MarshalText()
	if err != nil {
		return fmt.Errorf("saving %s: %w", contract, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving %s: beginning tx: %w", contract, err)
	}
	defer tx.Rollback()

	prev, err := load(ctx, tx, contract)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("saving %s: reading previous record: %w", contract, err)
	default:
		if err := checkTransition(prev, r); err != nil {
			return fmt.Errorf("saving %s: %w", contract, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO donation_states (contract, state, sweep_pending) VALUES (?, ?, ?)
		ON CONFLICT(contract) DO UPDATE SET state = excluded.state, sweep_pending = excluded.sweep_pending`,
		contract, string(text), r.SweepPending)
	if err != nil {
		return fmt.Errorf("saving %s: %w", contract, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving %s: committing: %w", contract, err)
	}
	return nil
}
