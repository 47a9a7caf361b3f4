// Package journal keeps a local history of session and sandbox events in
// SQLite so the presentation layer can show what happened while it was not
// attached.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/hackerai-desktop/internal/events"
	"github.com/codefionn/hackerai-desktop/internal/logger"
)

// Entry is one recorded event. Secrets never reach the journal.
type Entry struct {
	ID     int64       `json:"id"`
	Kind   events.Kind `json:"kind"`
	Time   time.Time   `json:"time"`
	Reason string      `json:"reason,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// Journal handles SQLite operations for the event history
type Journal struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the journal at dbPath.
func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, dbPath: dbPath}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		occurred_at DATETIME NOT NULL,
		reason TEXT,
		detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record stores ev.
func (j *Journal) Record(ev events.Event) error {
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}

	_, err := j.db.Exec(
		`INSERT INTO events (kind, occurred_at, reason, detail) VALUES (?, ?, ?, ?)`,
		string(ev.Kind), at.UTC(), ev.Reason, detail(ev),
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.Query(
		`SELECT id, kind, occurred_at, COALESCE(reason, ''), COALESCE(detail, '')
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Time, &e.Reason, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Kind = events.Kind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries recorded before cutoff and returns how many went.
func (j *Journal) Prune(cutoff time.Time) (int64, error) {
	res, err := j.db.Exec(`DELETE FROM events WHERE occurred_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

// Follow records every event from ch until it is closed.
func (j *Journal) Follow(ch <-chan events.Event) {
	for ev := range ch {
		if err := j.Record(ev); err != nil {
			logger.Warn("journal: %v", err)
		}
	}
}

func detail(ev events.Event) string {
	switch {
	case ev.Credential != nil:
		return "access_token=" + logger.Redact(ev.Credential.AccessToken)
	case ev.Sandbox != nil:
		return fmt.Sprintf("pid=%d name=%s image=%s", ev.Sandbox.PID, ev.Sandbox.Name, ev.Sandbox.Image)
	default:
		return ""
	}
}
