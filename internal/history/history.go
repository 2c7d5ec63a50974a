// Package history records each query run in SQLite so past invocations can
// be listed and compared by query fingerprint.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/xxh3"
)

// Run statuses.
const (
	StatusOK          = "ok"
	StatusEmpty       = "empty"
	StatusNetwork     = "network_error"
	StatusHTTP        = "http_error"
	StatusMalformed   = "malformed"
	StatusTemplate    = "template_error"
	StatusRenderError = "render_error"
	StatusError       = "error"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one recorded invocation.
type Run struct {
	ID          string
	RequestID   string
	Endpoint    string
	Method      string
	QueryHash   string
	QuerySource string
	Format      string
	Status      string
	HTTPStatus  int
	RowCount    int
	Bytes       int
	Duration    time.Duration
	Error       string
	StartedAt   time.Time
}

// Fingerprint returns a stable short hash of a query text.
func Fingerprint(query string) string {
	return strconv.FormatUint(xxh3.HashString(query), 16)
}

// Store persists runs.
type Store struct {
	db *sql.DB
}

// NewStore wraps a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts r, assigning an ID and start time when they are unset.
func (s *Store) Record(ctx context.Context, r *Run) error {
	if r.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if r.Status == "" {
		return fmt.Errorf("status is required")
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = ulid.MustNew(ulid.Timestamp(r.StartedAt), ulid.DefaultEntropy()).String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, request_id, endpoint, method, query_hash, query_source, format,
			status, http_status, row_count, bytes, duration_ms, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.RequestID, r.Endpoint, r.Method, r.QueryHash, r.QuerySource, r.Format,
		r.Status, r.HTTPStatus, r.RowCount, r.Bytes, r.Duration.Milliseconds(), r.Error,
		r.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Limit     int
	QueryHash string
	Status    string
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	q := `SELECT id, request_id, endpoint, method, query_hash, query_source, format,
		status, http_status, row_count, bytes, duration_ms, error, started_at
		FROM runs WHERE 1=1`
	var args []any
	if f.QueryHash != "" {
		q += ` AND query_hash = ?`
		args = append(args, f.QueryHash)
	}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, f.Status)
	}
	q += ` ORDER BY started_at DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			durationMS int64
			startedAt  string
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Endpoint, &r.Method, &r.QueryHash,
			&r.QuerySource, &r.Format, &r.Status, &r.HTTPStatus, &r.RowCount, &r.Bytes,
			&durationMS, &r.Error, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
