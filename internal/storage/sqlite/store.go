// Package sqlite persists settings and the Groq usage counter in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/settings"
	"github.com/mukti-ai/studycore/internal/usage"
)

// Store keeps a single settings document and a single usage row.
type Store struct {
	db       *sql.DB
	defaults domain.Settings
}

var (
	_ settings.Store = (*Store)(nil)
	_ usage.Sink     = (*Store)(nil)
)

// New opens the database at dbPath and creates the schema. Get returns
// defaults until settings are first saved.
func New(dbPath string, defaults domain.Settings) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, defaults: defaults}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS groq_usage (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			tokens INTEGER NOT NULL,
			threshold INTEGER NOT NULL,
			resets INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Get implements settings.Source.
func (s *Store) Get(ctx context.Context) (domain.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaults, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	out := s.defaults
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return out, nil
}

// Save implements settings.Store.
func (s *Store) Save(ctx context.Context, st domain.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `INSERT INTO settings (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// SaveUsage implements usage.Sink.
func (s *Store) SaveUsage(ctx context.Context, snap domain.UsageSnapshot) error {
	query := `INSERT INTO groq_usage (id, tokens, threshold, resets, updated_at) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET tokens = excluded.tokens, threshold = excluded.threshold,
			resets = excluded.resets, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, snap.Tokens, snap.Threshold, snap.Resets, snap.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save usage: %w", err)
	}
	return nil
}

// LoadUsage returns the persisted counter. ok is false when nothing has been
// recorded yet.
func (s *Store) LoadUsage(ctx context.Context) (snap domain.UsageSnapshot, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT tokens, threshold, resets, updated_at FROM groq_usage WHERE id = 1`,
	).Scan(&snap.Tokens, &snap.Threshold, &snap.Resets, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UsageSnapshot{}, false, nil
	}
	if err != nil {
		return domain.UsageSnapshot{}, false, fmt.Errorf("failed to read usage: %w", err)
	}
	return snap, true, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
