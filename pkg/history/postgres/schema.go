package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The text index uses the 'simple' configuration: transcripts come in many
// languages and must not be stemmed as English.
const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS transcripts (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    variant     TEXT         NOT NULL DEFAULT '',
    text        TEXT         NOT NULL DEFAULT '',
    error_kind  TEXT         NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration_ns BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transcripts_started_at
    ON transcripts (started_at DESC);

CREATE INDEX IF NOT EXISTS idx_transcripts_text_fts
    ON transcripts USING GIN (to_tsvector('simple', text));
`

// Migrate creates the transcripts table and its indexes. It is idempotent
// and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlTranscripts); err != nil {
		return fmt.Errorf("history postgres: migrate: %w", err)
	}
	return nil
}
