package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxkey/pkg/history"
	"github.com/MrWong99/voxkey/pkg/history/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if VOXKEY_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOXKEY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOXKEY_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore returns a Store on a freshly created transcripts table.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS transcripts CASCADE"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	pool.Close()

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Microsecond)

	entries := []history.Entry{
		{SessionID: "a", Variant: "sense-voice", Text: "first words", StartedAt: base, Duration: 2 * time.Second},
		{SessionID: "b", Variant: "sense-voice", ErrorKind: "audio_device", StartedAt: base.Add(time.Minute)},
		{SessionID: "c", Variant: "whisper-base", Text: "third words", StartedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s): %v", e.SessionID, err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "c" || got[1].SessionID != "b" {
		t.Fatalf("Recent(2) = %+v, want c then b", got)
	}
	if got[0].ID == 0 || got[0].Variant != "whisper-base" || !got[0].StartedAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("entry c = %+v", got[0])
	}
	if got[1].ErrorKind != "audio_device" {
		t.Errorf("entry b error kind = %q", got[1].ErrorKind)
	}

	all, err := store.Recent(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("Recent(0) = %d entries, %v", len(all), err)
	}
	if all[2].Duration != 2*time.Second {
		t.Errorf("duration = %v, want 2s", all[2].Duration)
	}
}

func TestStore_Search(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, e := range []history.Entry{
		{SessionID: "en", Text: "Send the quarterly report", StartedAt: now.Add(-3 * time.Minute)},
		{SessionID: "zh", Text: "明天开会讨论报告", StartedAt: now.Add(-2 * time.Minute)},
		{SessionID: "pct", Text: "growth of 50% this year", StartedAt: now.Add(-time.Minute)},
		{SessionID: "failed", Text: "report", ErrorKind: "audio_device", StartedAt: now},
	} {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"quarterly report", []string{"en"}},
		{"报告", []string{"zh"}},
		{"50%", []string{"pct"}},
		{"report", []string{"en"}},
		{"nothing here", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := store.Search(ctx, tt.query, 10)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) = %+v, want sessions %v", tt.query, got, tt.want)
			}
			for i, id := range tt.want {
				if got[i].SessionID != id {
					t.Errorf("result %d = %q, want %q", i, got[i].SessionID, id)
				}
			}
		})
	}
}
