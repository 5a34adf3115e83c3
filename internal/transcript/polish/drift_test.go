package polish

import (
	"slices"
	"testing"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, world!", []string{"hello", "world"}},
		{"don't stop", []string{"don't", "stop"}},
		{"你好，世界。", []string{"你", "好", "世", "界"}},
		{"GPU 4090 ok", []string{"gpu", "4090", "ok"}},
		{"...", nil},
	}
	for _, tt := range tests {
		if got := tokens(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("tokens(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommonLen(t *testing.T) {
	tests := []struct {
		a, b []string
		want int
	}{
		{[]string{"a", "b", "c"}, []string{"a", "b", "c"}, 3},
		{[]string{"a", "b", "c", "d"}, []string{"a", "x", "c", "d"}, 3},
		{[]string{"he", "said", "hi"}, []string{"hi", "he", "said"}, 2},
		{[]string{"a"}, nil, 0},
	}
	for _, tt := range tests {
		if got := commonLen(tt.a, tt.b); got != tt.want {
			t.Errorf("commonLen(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOverlap(t *testing.T) {
	if got := overlap("um send it uh now", "Send it now."); got != 0.6 {
		t.Errorf("overlap = %v, want 0.6", got)
	}
	if got := overlap("", "anything"); got != 1 {
		t.Errorf("overlap of empty input = %v, want 1", got)
	}
}
