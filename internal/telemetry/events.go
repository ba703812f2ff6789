package telemetry

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EventLog is the daemon's bounded, queryable record of dispatcher
// events: an in-memory SQLite database (schema applied via
// golang-migrate) backing the `get_recent_events` RPC method with real
// SQL filtering instead of a Go-side linear scan over a ring buffer.
type EventLog struct {
	db  *sql.DB
	cap int
}

// NewEventLog opens an in-memory SQLite database, applies the event-log
// schema, and returns an EventLog retaining at most capacity rows.
//
// The DSN uses a shared cache so every pooled connection sees the same
// in-memory database rather than each getting its own empty one, and the
// pool is pinned to a single connection: SQLite serializes writers
// regardless, and a second connection would otherwise risk opening a
// second, disconnected shared-cache instance once the first goes briefly
// idle and its page cache is freed.
func NewEventLog(ctx context.Context, capacity int) (*EventLog, error) {
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("telemetry: opening event log database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &EventLog{db: db, cap: capacity}, nil
}

func applyMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("telemetry: sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("telemetry: reading embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("telemetry: constructing migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("telemetry: applying event log schema: %w", err)
	}
	return nil
}

// Record appends an event and trims the log back down to capacity.
func (e *EventLog) Record(ctx context.Context, kind string, detail map[string]any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("telemetry: marshaling event detail: %w", err)
	}
	_, err = e.db.ExecContext(ctx,
		`INSERT INTO events (timestamp, kind, detail) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), kind, string(payload))
	if err != nil {
		return fmt.Errorf("telemetry: inserting event: %w", err)
	}
	_, err = e.db.ExecContext(ctx, `
		DELETE FROM events WHERE id NOT IN (
			SELECT id FROM events ORDER BY id DESC LIMIT ?
		)`, e.cap)
	if err != nil {
		return fmt.Errorf("telemetry: trimming event log: %w", err)
	}
	return nil
}

// Event is the JSON-friendly view of one stored row.
type Event struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      string         `json:"kind"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Filter narrows Recent's result set. Zero-value fields are unfiltered.
type Filter struct {
	Kind  string
	Since time.Time
	Limit int
}

// Recent returns events matching f, most recent first.
func (e *EventLog) Recent(ctx context.Context, f Filter) ([]Event, error) {
	query := `SELECT id, timestamp, kind, detail FROM events WHERE 1=1`
	var args []any
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if !f.Since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY id DESC`
	limit := f.Limit
	if limit <= 0 || limit > e.cap {
		limit = e.cap
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: querying events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev     Event
			ts     string
			detail string
		)
		if err := rows.Scan(&ev.ID, &ts, &ev.Kind, &detail); err != nil {
			return nil, fmt.Errorf("telemetry: scanning event row: %w", err)
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if detail != "" && detail != "{}" {
			_ = json.Unmarshal([]byte(detail), &ev.Detail)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// DB returns the underlying database handle for components (the window
// tracer) that share this EventLog's schema.
func (e *EventLog) DB() *sql.DB { return e.db }

// Close closes the event log's database connection.
func (e *EventLog) Close() error { return e.db.Close() }
