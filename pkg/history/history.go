// Package history defines the transcript log: one [Entry] per finished
// dictation session, written when the session reaches its terminal state.
//
// The interface is public so other backends can be supplied; the bundled
// implementation lives in the postgres subpackage. Every implementation must
// be safe for concurrent use.
package history

import (
	"context"
	"time"
)

// DefaultLimit caps Recent and Search when the caller passes a limit <= 0.
const DefaultLimit = 50

// Entry is the outcome of one session.
type Entry struct {
	// ID is assigned by the store on Record.
	ID int64 `json:"id"`

	// SessionID is the session's UUID.
	SessionID string `json:"session_id"`

	// Variant is the model variant the session decoded with.
	Variant string `json:"variant"`

	// Text is the final transcript after post-processing. Empty when the
	// session failed or heard nothing.
	Text string `json:"text"`

	// ErrorKind classifies a failed session ("audio_device",
	// "empty_result", ...). Empty on success.
	ErrorKind string `json:"error_kind,omitempty"`

	// StartedAt is when capture began.
	StartedAt time.Time `json:"started_at"`

	// Duration spans capture start to the terminal event.
	Duration time.Duration `json:"duration"`
}

// OK reports whether the session produced a transcript.
func (e Entry) OK() bool { return e.ErrorKind == "" && e.Text != "" }

// Store persists and queries session outcomes.
type Store interface {
	// Record appends e. The stored ID is not reported back.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Search returns up to limit successful entries whose text matches
	// query, newest first. The match semantics are backend-defined.
	Search(ctx context.Context, query string, limit int) ([]Entry, error)
}

// Limit normalises a caller-supplied limit.
func Limit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}
