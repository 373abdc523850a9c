// Package devstore persists ingested signals in a local SQLite file for the
// development receiver.
package devstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/polisai/hawkeye-go/pkg/domain"
)

// Store is a SQLite-backed signal store. Signals are unique by idempotency
// key; re-delivered batches are counted as duplicates and not stored twice.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. Use ":memory:" only in single
// connection setups; every pooled connection gets its own memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	// WAL + busy timeout to avoid "database is locked"
	dsn += "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS events(
	  id              INTEGER PRIMARY KEY,
	  idempotency_key TEXT UNIQUE,
	  api_key         TEXT    NOT NULL,
	  session_id      TEXT    NOT NULL,
	  event_type      TEXT    NOT NULL,
	  route           TEXT    NOT NULL,
	  ts              TEXT    NOT NULL,
	  environment     TEXT,
	  target_json     TEXT    NOT NULL CHECK (json_valid(target_json)),
	  metadata_json   TEXT    NOT NULL CHECK (json_valid(metadata_json)),
	  received_at     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_type    ON events(event_type);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores events in one transaction. Events whose idempotency key is
// already present are skipped and reported as duplicates.
func (s *Store) Insert(ctx context.Context, apiKey string, events []domain.Signal) (inserted, duplicates int, err error) {
	if len(events) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO events(idempotency_key, api_key, session_id, event_type, route, ts, environment, target_json, metadata_json, received_at)
	VALUES(?,?,?,?,?,?,?,json(?),json(?),?)
	ON CONFLICT(idempotency_key) DO NOTHING`)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, ev := range events {
		target, err := json.Marshal(ev.Target)
		if err != nil {
			return 0, 0, fmt.Errorf("marshal target: %w", err)
		}
		meta := ev.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		metadata, err := json.Marshal(meta)
		if err != nil {
			return 0, 0, fmt.Errorf("marshal metadata: %w", err)
		}

		var key sql.NullString
		if ev.IdempotencyKey != "" {
			key = sql.NullString{String: ev.IdempotencyKey, Valid: true}
		}

		res, err := stmt.ExecContext(ctx, key, apiKey, ev.SessionID, ev.EventType, ev.Route, ev.Timestamp, ev.Environment, string(target), string(metadata), now)
		if err != nil {
			return 0, 0, fmt.Errorf("insert event: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			duplicates++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit transaction: %w", err)
	}
	return inserted, duplicates, nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// BySession returns the stored events of one session in arrival order.
func (s *Store) BySession(ctx context.Context, sessionID string) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT idempotency_key, session_id, event_type, route, ts, environment, target_json, metadata_json
	FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.Signal
	for rows.Next() {
		var (
			ev          domain.Signal
			key, env    sql.NullString
			target, raw string
		)
		if err := rows.Scan(&key, &ev.SessionID, &ev.EventType, &ev.Route, &ev.Timestamp, &env, &target, &raw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.IdempotencyKey = key.String
		ev.Environment = env.String
		if err := json.Unmarshal([]byte(target), &ev.Target); err != nil {
			return nil, fmt.Errorf("decode target: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &ev.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
