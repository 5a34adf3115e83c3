package history_test

import (
	"context"
	"testing"

	"github.com/MrWong99/voxkey/pkg/history"
	"github.com/MrWong99/voxkey/pkg/history/mock"
)

func TestLimit(t *testing.T) {
	for in, want := range map[int]int{-1: history.DefaultLimit, 0: history.DefaultLimit, 7: 7} {
		if got := history.Limit(in); got != want {
			t.Errorf("Limit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestEntry_OK(t *testing.T) {
	tests := []struct {
		e    history.Entry
		want bool
	}{
		{history.Entry{Text: "hi"}, true},
		{history.Entry{}, false},
		{history.Entry{Text: "partial", ErrorKind: "audio_device"}, false},
	}
	for _, tt := range tests {
		if got := tt.e.OK(); got != tt.want {
			t.Errorf("%+v.OK() = %v, want %v", tt.e, got, tt.want)
		}
	}
}

func TestMockStore(t *testing.T) {
	ctx := context.Background()
	store := &mock.Store{}
	for _, e := range []history.Entry{
		{SessionID: "1", Text: "Buy milk"},
		{SessionID: "2", ErrorKind: "empty_result"},
		{SessionID: "3", Text: "buy bread"},
	} {
		if err := store.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	recent, _ := store.Recent(ctx, 2)
	if len(recent) != 2 || recent[0].SessionID != "3" || recent[1].SessionID != "2" {
		t.Errorf("Recent(2) = %+v", recent)
	}
	found, _ := store.Search(ctx, "BUY", 0)
	if len(found) != 2 || found[0].SessionID != "3" || found[1].SessionID != "1" {
		t.Errorf("Search = %+v", found)
	}
	if got := store.Entries(); len(got) != 3 || got[0].ID != 1 {
		t.Errorf("Entries = %+v", got)
	}
}
