// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists the four append-only records a review needs:
// the criteria version chain, the screening decision log, the PRISMA flow
// snapshot chain, and the audit event log. Implements: prd001-screening-model,
// prd002-decision-ledger, prd004-prisma-flow, prd005-audit;
//
//	docs/ARCHITECTURE § Ledgers.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/screening-engine/pkg/types"
)

const (
	indexDir   = "index"
	exportsDir = "exports"
	dbFile     = "screening.db"
)

const defaultBusyTimeout = 5 * time.Second

// Store manages the screening ledger SQLite database. All state-changing
// operations are single transactions; history tables are append-only and
// never updated in place.
type Store struct {
	db        *sql.DB
	reviewDir string
}

// NewStore opens or creates the ledger database at
// reviewDir/index/screening.db and creates the schema if it does not
// exist. Write transactions take the database lock up front (_txlock=immediate)
// so concurrent writers queue instead of failing mid-transaction.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.ReviewDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	dbPath := filepath.Join(dbDir, dbFile)
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=%d",
		dbPath, busy.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:        db,
		reviewDir: cfg.ReviewDir,
	}

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
		`CREATE TABLE IF NOT EXISTS research_questions (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			criteria_version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS criteria_versions (
			review_id TEXT NOT NULL REFERENCES research_questions(id),
			version INTEGER NOT NULL,
			criteria TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (review_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			srid TEXT NOT NULL REFERENCES research_questions(id),
			docid TEXT NOT NULL,
			result TEXT NOT NULL,
			confidence REAL NOT NULL,
			reasons TEXT NOT NULL,
			model_id TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_srid_docid ON decisions(srid, docid)`,
		`CREATE TABLE IF NOT EXISTS flow_snapshots (
			review_id TEXT NOT NULL REFERENCES research_questions(id),
			version INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			state TEXT NOT NULL,
			PRIMARY KEY (review_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			review_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			payload TEXT NOT NULL,
			payload_digest TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_review ON events(review_id, timestamp, seq)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	return nil
}

// timeFormat is RFC 3339 with fixed-width nanoseconds. Trailing zeros
// are kept so the stored strings sort lexicographically in time order;
// SQLite compares them as text in ORDER BY and range queries.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// timestamp formats t the way every table stores times: fixed-width
// RFC 3339 nanoseconds, UTC.
func timestamp(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTimestamp reads a stored timestamp back.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
