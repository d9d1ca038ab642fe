package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mattjoyce/crispbridge/internal/events"
)

// journalTimeLayout is fixed-width so created_at sorts lexically.
const journalTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal records published events in SQLite so operators can inspect
// recent webhook traffic. It implements events.Sink.
type Journal struct {
	db *sql.DB
}

// Entry is one journaled event.
type Entry struct {
	UUID      string          `json:"uuid"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	WebsiteID string          `json:"website_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	At        time.Time       `json:"at"`
}

// OpenJournal opens the journal database at path.
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// NewJournal wraps an already bootstrapped database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Emit stores e. Duplicate event UUIDs are ignored.
func (j *Journal) Emit(ctx context.Context, e events.Event) error {
	data := e.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	websiteID := gjson.GetBytes(data, "website_id").String()

	_, err := j.db.ExecContext(ctx, `
INSERT OR IGNORE INTO event_journal(id, seq, type, website_id, data, created_at)
VALUES(?, ?, ?, ?, ?, ?);`,
		e.UUID, e.ID, e.Type, nullIfEmpty(websiteID), string(data), e.At.UTC().Format(journalTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("journal event %s: %w", e.UUID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, seq, type, COALESCE(website_id, ''), data, created_at
FROM event_journal
ORDER BY created_at DESC, seq DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			data    string
			created string
		)
		if err := rows.Scan(&e.UUID, &e.Seq, &e.Type, &e.WebsiteID, &data, &created); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.Data = json.RawMessage(data)
		if t, err := time.Parse(journalTimeLayout, created); err == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than before and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM event_journal WHERE created_at < ?;`,
		before.UTC().Format(journalTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Ping reports whether the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
