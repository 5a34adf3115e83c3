// Package postgres implements [history.Store] on PostgreSQL through a
// [pgxpool.Pool].
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxkey/pkg/history"
)

var _ history.Store = (*Store)(nil)

// Store is the PostgreSQL transcript log. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, checks the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Ping checks the database connection. It is used as a health check.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("history postgres: ping: %w", err)
	}
	return nil
}

// Record implements [history.Store].
func (s *Store) Record(ctx context.Context, e history.Entry) error {
	const q = `
		INSERT INTO transcripts
		    (session_id, variant, text, error_kind, started_at, duration_ns)
		VALUES ($1, $2, $3, $4, $5, $6)`

	started := e.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.pool.Exec(ctx, q,
		e.SessionID,
		e.Variant,
		e.Text,
		e.ErrorKind,
		started,
		e.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("history postgres: record: %w", err)
	}
	return nil
}

// Recent implements [history.Store].
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	const q = `
		SELECT id, session_id, variant, text, error_kind, started_at, duration_ns
		FROM   transcripts
		ORDER  BY started_at DESC, id DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, history.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("history postgres: recent: %w", err)
	}
	return collectEntries(rows)
}

// Search implements [history.Store]. A transcript matches when the full-text
// query matches its words, or when it contains query as a substring; the
// latter covers scripts without word boundaries.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]history.Entry, error) {
	const q = `
		SELECT id, session_id, variant, text, error_kind, started_at, duration_ns
		FROM   transcripts
		WHERE  error_kind = ''
		  AND  text <> ''
		  AND  (to_tsvector('simple', text) @@ plainto_tsquery('simple', $1)
		        OR text ILIKE '%' || $2 || '%')
		ORDER  BY started_at DESC, id DESC
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, query, escapeLike(query), history.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("history postgres: search: %w", err)
	}
	return collectEntries(rows)
}

// escapeLike quotes the LIKE wildcards in s with the default escape
// character.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func collectEntries(rows pgx.Rows) ([]history.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Entry, error) {
		var (
			e          history.Entry
			durationNS int64
		)
		if err := row.Scan(
			&e.ID,
			&e.SessionID,
			&e.Variant,
			&e.Text,
			&e.ErrorKind,
			&e.StartedAt,
			&durationNS,
		); err != nil {
			return history.Entry{}, err
		}
		e.Duration = time.Duration(durationNS)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history postgres: scan rows: %w", err)
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return entries, nil
}
