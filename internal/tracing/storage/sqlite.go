// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/tracebridge/pkg/bridge"
)

// ErrNotFound is returned when a span does not exist.
var ErrNotFound = errors.New("span not found")

// SQLiteStore provides SQLite-backed storage for exported spans.
type SQLiteStore struct {
	db  *sql.DB
	key *EncryptionKey
}

// Config contains SQLite storage configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string `yaml:"path" envconfig:"PATH"`

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`

	// EncryptionKey, when set, encrypts stored attributes with AES-256-GCM.
	// It is a base64 32 byte key or a passphrase.
	EncryptionKey string `yaml:"-" envconfig:"TRACE_KEY"`

	// Retention is how long spans are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention" envconfig:"RETENTION"`
}

// New creates a new SQLite storage backend.
func New(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	connStr := cfg.Path
	maxConns := cfg.MaxOpenConns
	if cfg.Path == ":memory:" {
		// Each connection to :memory: is a separate database.
		maxConns = 1
	} else {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
		if maxConns == 0 {
			maxConns = 5
		}
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if cfg.EncryptionKey != "" {
		salt, err := store.salt(ctx)
		if err != nil {
			db.Close()
			return nil, err
		}
		key, err := ParseEncryptionKey(cfg.EncryptionKey, salt)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load encryption key: %w", err)
		}
		store.key = key
	}

	return store, nil
}

// salt returns the database's passphrase salt, creating it on first use.
func (s *SQLiteStore) salt(ctx context.Context) ([]byte, error) {
	fresh := make([]byte, saltLength)
	if _, err := rand.Read(fresh); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('salt', ?)`, fresh); err != nil {
		return nil, fmt.Errorf("failed to store salt: %w", err)
	}
	var salt []byte
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'salt'`).Scan(&salt); err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}
	return salt, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS spans (
			trace_id TEXT NOT NULL,
			span_id TEXT NOT NULL,
			parent_id TEXT,
			name TEXT NOT NULL,
			target TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			level_rank INTEGER NOT NULL DEFAULT -1,
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			status_code INTEGER NOT NULL,
			status_message TEXT,
			attributes BLOB,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (trace_id, span_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_trace_id ON spans(trace_id)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_target ON spans(target)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_start_time ON spans(start_time)`,

		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			span_id TEXT NOT NULL,
			name TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			attributes BLOB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_span ON events(trace_id, span_id)`,

		`CREATE TABLE IF NOT EXISTS traces (
			trace_id TEXT PRIMARY KEY,
			root_span_id TEXT,
			name TEXT,
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			span_count INTEGER DEFAULT 0,
			error_count INTEGER DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_start_time ON traces(start_time)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// StoreSpan stores a span and its events. Storing the same span twice
// replaces the earlier copy.
func (s *SQLiteStore) StoreSpan(ctx context.Context, span *Span) error {
	if span == nil {
		return fmt.Errorf("span is nil")
	}
	if span.TraceID == "" {
		return fmt.Errorf("span trace_id is required")
	}
	if span.SpanID == "" {
		return fmt.Errorf("span span_id is required")
	}

	attrs, err := s.encode(span.Attributes)
	if err != nil {
		return err
	}

	rank := -1
	if lvl, err := bridge.ParseLevel(span.Level); err == nil && span.Level != "" {
		rank = int(lvl)
	}

	var endTime *int64
	if !span.EndTime.IsZero() {
		et := span.EndTime.UnixNano()
		endTime = &et
	}
	var parentID *string
	if span.ParentID != "" {
		parentID = &span.ParentID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO spans (trace_id, span_id, parent_id, name, target, level, level_rank,
			start_time, end_time, status_code, status_message, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trace_id, span_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			target = excluded.target,
			level = excluded.level,
			level_rank = excluded.level_rank,
			end_time = excluded.end_time,
			status_code = excluded.status_code,
			status_message = excluded.status_message,
			attributes = excluded.attributes`,
		span.TraceID, span.SpanID, parentID, span.Name, span.Target, span.Level, rank,
		span.StartTime.UnixNano(), endTime, int(span.Status), span.StatusMessage,
		attrs, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store span: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM events WHERE trace_id = ? AND span_id = ?", span.TraceID, span.SpanID); err != nil {
		return fmt.Errorf("failed to replace events: %w", err)
	}
	for _, ev := range span.Events {
		evAttrs, err := s.encode(ev.Attributes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (trace_id, span_id, name, timestamp, attributes)
			VALUES (?, ?, ?, ?, ?)`,
			span.TraceID, span.SpanID, ev.Name, ev.Timestamp.UnixNano(), evAttrs,
		); err != nil {
			return fmt.Errorf("failed to store event: %w", err)
		}
	}

	if err := updateTraceSummary(ctx, tx, span.TraceID); err != nil {
		return err
	}

	return tx.Commit()
}

// updateTraceSummary recomputes the trace summary row from its spans.
func updateTraceSummary(ctx context.Context, tx *sql.Tx, traceID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO traces (trace_id, root_span_id, name, start_time, end_time,
			span_count, error_count, updated_at)
		SELECT
			?,
			(SELECT span_id FROM spans WHERE trace_id = ? AND parent_id IS NULL LIMIT 1),
			(SELECT name FROM spans WHERE trace_id = ? AND parent_id IS NULL LIMIT 1),
			MIN(start_time),
			MAX(end_time),
			COUNT(*),
			SUM(CASE WHEN status_code = 2 THEN 1 ELSE 0 END),
			?
		FROM spans WHERE trace_id = ?
		ON CONFLICT(trace_id) DO UPDATE SET
			root_span_id = excluded.root_span_id,
			name = excluded.name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			span_count = excluded.span_count,
			error_count = excluded.error_count,
			updated_at = excluded.updated_at`,
		traceID, traceID, traceID, time.Now().UnixNano(), traceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update trace summary: %w", err)
	}
	return nil
}

const spanColumns = `trace_id, span_id, parent_id, name, target, level, start_time, end_time,
	status_code, status_message, attributes`

// GetSpan retrieves a span by trace ID and span ID.
func (s *SQLiteStore) GetSpan(ctx context.Context, traceID, spanID string) (*Span, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+spanColumns+" FROM spans WHERE trace_id = ? AND span_id = ?", traceID, spanID)

	span, err := s.scanSpan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, traceID, spanID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadEvents(ctx, []*Span{span}); err != nil {
		return nil, err
	}
	return span, nil
}

// GetTraceSpans retrieves all spans for a trace in start order.
func (s *SQLiteStore) GetTraceSpans(ctx context.Context, traceID string) ([]*Span, error) {
	return s.querySpans(ctx,
		"SELECT "+spanColumns+" FROM spans WHERE trace_id = ? ORDER BY start_time ASC", traceID)
}

// SpanFilter selects spans for ListSpans.
type SpanFilter struct {
	// Target keeps spans whose target starts with this prefix.
	Target string

	// MinLevel keeps guest spans at or above this level. Host spans without
	// a level are excluded when set.
	MinLevel *bridge.Level

	// Name keeps spans with exactly this name.
	Name string

	// ErrorsOnly keeps spans with error status.
	ErrorsOnly bool

	// Since filters spans that started after this time
	Since *time.Time

	// Limit limits the number of results
	Limit int

	// Offset skips the first N results
	Offset int
}

// ListSpans lists spans matching the filter, newest first.
func (s *SQLiteStore) ListSpans(ctx context.Context, filter SpanFilter) ([]*Span, error) {
	var where []string
	var args []any

	if filter.Target != "" {
		where = append(where, "substr(target, 1, ?) = ?")
		args = append(args, len(filter.Target), filter.Target)
	}
	if filter.MinLevel != nil {
		where = append(where, "level_rank >= ?")
		args = append(args, int(*filter.MinLevel))
	}
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.ErrorsOnly {
		where = append(where, "status_code = ?")
		args = append(args, int(StatusError))
	}
	if filter.Since != nil {
		where = append(where, "start_time >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	query := "SELECT " + spanColumns + " FROM spans"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	return s.querySpans(ctx, query, args...)
}

// TraceSummary describes a stored trace.
type TraceSummary struct {
	TraceID    string
	RootSpanID string
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	SpanCount  int
	ErrorCount int
}

// ListTraces lists trace summaries, newest first. A limit of zero returns
// every trace.
func (s *SQLiteStore) ListTraces(ctx context.Context, limit int) ([]TraceSummary, error) {
	query := `SELECT trace_id, root_span_id, name, start_time, end_time, span_count, error_count
		FROM traces ORDER BY start_time DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	defer rows.Close()

	var out []TraceSummary
	for rows.Next() {
		var t TraceSummary
		var root, name sql.NullString
		var start int64
		var end sql.NullInt64
		if err := rows.Scan(&t.TraceID, &root, &name, &start, &end, &t.SpanCount, &t.ErrorCount); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		t.RootSpanID = root.String
		t.Name = name.String
		t.StartTime = time.Unix(0, start)
		if end.Valid {
			t.EndTime = time.Unix(0, end.Int64)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTracesOlderThan deletes traces that started before the given time.
// Returns the number of traces deleted.
func (s *SQLiteStore) DeleteTracesOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM traces WHERE start_time < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old traces: %w", err)
	}
	count, _ := result.RowsAffected()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM spans WHERE trace_id NOT IN (SELECT trace_id FROM traces)"); err != nil {
		return 0, fmt.Errorf("failed to delete orphaned spans: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM events WHERE trace_id NOT IN (SELECT trace_id FROM traces)"); err != nil {
		return 0, fmt.Errorf("failed to delete orphaned events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanSpan(row rowScanner) (*Span, error) {
	var span Span
	var parentID, statusMessage sql.NullString
	var start int64
	var end sql.NullInt64
	var status int
	var attrs []byte

	err := row.Scan(&span.TraceID, &span.SpanID, &parentID, &span.Name, &span.Target, &span.Level,
		&start, &end, &status, &statusMessage, &attrs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan span: %w", err)
	}

	span.ParentID = parentID.String
	span.StatusMessage = statusMessage.String
	span.Status = StatusCode(status)
	span.StartTime = time.Unix(0, start)
	if end.Valid {
		span.EndTime = time.Unix(0, end.Int64)
	}
	if span.Attributes, err = s.decode(attrs); err != nil {
		return nil, err
	}
	return &span, nil
}

func (s *SQLiteStore) querySpans(ctx context.Context, query string, args ...any) ([]*Span, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query spans: %w", err)
	}

	var spans []*Span
	for rows.Next() {
		span, err := s.scanSpan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		spans = append(spans, span)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate spans: %w", err)
	}
	// Close before loading events to free the connection.
	rows.Close()

	if err := s.loadEvents(ctx, spans); err != nil {
		return nil, err
	}
	return spans, nil
}

func (s *SQLiteStore) loadEvents(ctx context.Context, spans []*Span) error {
	for _, span := range spans {
		rows, err := s.db.QueryContext(ctx, `
			SELECT name, timestamp, attributes FROM events
			WHERE trace_id = ? AND span_id = ? ORDER BY timestamp ASC, id ASC`,
			span.TraceID, span.SpanID)
		if err != nil {
			return fmt.Errorf("failed to query events: %w", err)
		}

		for rows.Next() {
			var ev Event
			var ts int64
			var attrs []byte
			if err := rows.Scan(&ev.Name, &ts, &attrs); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan event: %w", err)
			}
			ev.Timestamp = time.Unix(0, ts)
			if ev.Attributes, err = s.decode(attrs); err != nil {
				rows.Close()
				return err
			}
			span.Events = append(span.Events, ev)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("failed to iterate events: %w", err)
		}
	}
	return nil
}

// encode serializes attributes, sealing them when encryption is enabled.
func (s *SQLiteStore) encode(attrs map[string]any) ([]byte, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	if s.key == nil {
		return data, nil
	}
	sealed, err := s.key.Seal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt attributes: %w", err)
	}
	return sealed, nil
}

func (s *SQLiteStore) decode(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if s.key != nil {
		var err error
		if data, err = s.key.Open(data); err != nil {
			return nil, fmt.Errorf("failed to decrypt attributes: %w", err)
		}
	}
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	return attrs, nil
}
