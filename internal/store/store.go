package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrUnavailable wraps persistence failures the pipeline treats as
// non-fatal: the event is dropped and processing continues with the next
// frame.
var ErrUnavailable = errors.New("store unavailable")

// EventType is a door transition direction.
type EventType string

const (
	EventIn  EventType = "in"
	EventOut EventType = "out"
)

// Opposite returns the other transition direction.
func (t EventType) Opposite() EventType {
	if t == EventIn {
		return EventOut
	}
	return EventIn
}

// Event is one immutable door transition. The log is append-only; events
// are never updated or deleted.
type Event struct {
	ID   int64
	Type EventType
	Time int64 // unix seconds, UTC
	Img  string
}

// Store is the durable event log. It keeps one pooled database handle;
// every operation borrows a connection for the duration of the call only,
// so the processor and on-demand query commands can call concurrently.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes writes; sqlite allows one writer at a time
}

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

// Init creates the schema. Idempotent; safe on every startup, never touches
// existing rows.
func (s *Store) Init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			time INTEGER NOT NULL,
			img TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_time ON events(type, time)`,
		`CREATE INDEX IF NOT EXISTS idx_events_time ON events(time)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records a new transition and returns its id.
func (s *Store) Append(typ EventType, occurredAt int64, img string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO events (type, time, img) VALUES (?, ?, ?)`,
		string(typ), occurredAt, img,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: append event: %v", ErrUnavailable, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: append event id: %v", ErrUnavailable, err)
	}
	return id, nil
}

// Last returns the most recent event of the given type, or nil if none
// exists.
func (s *Store) Last(typ EventType) (*Event, error) {
	row := s.db.QueryRow(
		`SELECT id, type, time, img FROM events WHERE type = ? ORDER BY time DESC, id DESC LIMIT 1`,
		string(typ),
	)
	return scanEvent(row)
}

// LastAny returns the most recent event of either type, or nil on an empty
// log.
func (s *Store) LastAny() (*Event, error) {
	row := s.db.QueryRow(
		`SELECT id, type, time, img FROM events ORDER BY time DESC, id DESC LIMIT 1`,
	)
	return scanEvent(row)
}

// PreviousOpposite returns the most recent event of the opposite type
// strictly earlier than before. A nil result means no prior segment, which
// is not an error.
func (s *Store) PreviousOpposite(typ EventType, before int64) (*Event, error) {
	row := s.db.QueryRow(
		`SELECT id, type, time, img FROM events WHERE type = ? AND time < ? ORDER BY time DESC, id DESC LIMIT 1`,
		string(typ.Opposite()), before,
	)
	return scanEvent(row)
}

// CountSince counts events of a type at or after the given time. Used by
// the daily digest.
func (s *Store) CountSince(typ EventType, since int64) (int, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE type = ? AND time >= ?`,
		string(typ), since,
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Recent returns up to limit events ordered newest first.
func (s *Store) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, type, time, img FROM events ORDER BY time DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.Time, &e.Img); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func scanEvent(row *sql.Row) (*Event, error) {
	var e Event
	var typ string
	if err := row.Scan(&e.ID, &typ, &e.Time, &e.Img); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.Type = EventType(typ)
	return &e, nil
}
