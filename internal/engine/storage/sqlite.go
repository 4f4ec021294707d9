package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// Store persists campaigns, leads, the last search configuration and run history.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes write transactions
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.EnsureDefaultCampaign(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		niche TEXT NOT NULL DEFAULT '',
		locations TEXT NOT NULL DEFAULT '[]',
		goal INTEGER NOT NULL DEFAULT 0,
		min_rating REAL NOT NULL DEFAULT 0,
		only_with_phone INTEGER NOT NULL DEFAULT 0,
		exclude_keywords TEXT NOT NULL DEFAULT '',
		budget REAL NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		rating REAL,
		reviews INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		facebook TEXT NOT NULL DEFAULT '',
		instagram TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leads_campaign ON leads(campaign_id);
	CREATE INDEX IF NOT EXISTS idx_leads_name ON leads(name);
	CREATE INDEX IF NOT EXISTS idx_leads_created ON leads(created_at);
	CREATE TABLE IF NOT EXISTS search_config (
		key TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		state TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		found INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		spend REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in a write transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
