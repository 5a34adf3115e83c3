package resilience

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxkey/pkg/provider/llm"
	llmmock "github.com/MrWong99/voxkey/pkg/provider/llm/mock"
)

func reply(text string) *llmmock.Provider {
	return &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: text}}
}

func failing(msg string) *llmmock.Provider {
	return &llmmock.Provider{CompleteErr: errors.New(msg)}
}

func TestChain_Complete(t *testing.T) {
	tests := []struct {
		name      string
		first     *llmmock.Provider
		second    *llmmock.Provider
		want      string
		wantErr   error
		wantCalls [2]int
	}{
		{name: "first answers", first: reply("one"), second: reply("two"), want: "one", wantCalls: [2]int{1, 0}},
		{name: "falls through", first: failing("503"), second: reply("two"), want: "two", wantCalls: [2]int{1, 1}},
		{name: "nil response falls through", first: &llmmock.Provider{}, second: reply("two"), want: "two", wantCalls: [2]int{1, 1}},
		{name: "all fail", first: failing("503"), second: failing("429"), wantErr: ErrAllFailed, wantCalls: [2]int{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChain(CircuitBreakerConfig{MaxFailures: 3}, nil).
				Add("ollama/llama3", tt.first).
				Add("openai/gpt-4o-mini", tt.second)

			resp, err := c.Complete(context.Background(), llm.CompletionRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "um so the meeting is at noon"}},
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Complete: %v", err)
			} else if resp.Content != tt.want {
				t.Errorf("content = %q, want %q", resp.Content, tt.want)
			}
			got := [2]int{len(tt.first.Calls()), len(tt.second.Calls())}
			if got != tt.wantCalls {
				t.Errorf("calls = %v, want %v", got, tt.wantCalls)
			}
		})
	}
}

func TestChain_AllFailedNamesEveryBackend(t *testing.T) {
	c := NewChain(CircuitBreakerConfig{}, nil).
		Add("a", failing("refused")).
		Add("b", failing("quota"))
	_, err := c.Complete(context.Background(), llm.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"a: refused", "b: quota"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	_, err := NewChain(CircuitBreakerConfig{}, nil).Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}

func TestChain_OpenBreakerSkipsBackend(t *testing.T) {
	clock := newFakeClock()
	first := failing("down")
	second := reply("ok")
	c := NewChain(CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute, Now: clock.Now}, nil).
		Add("first", first).
		Add("second", second)

	for range 4 {
		if _, err := c.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	if got := len(first.Calls()); got != 2 {
		t.Errorf("first called %d times, want 2", got)
	}
	if st, ok := c.State("first"); !ok || st != StateOpen {
		t.Errorf("State(first) = %v, %v", st, ok)
	}

	clock.Advance(time.Minute)
	if st, _ := c.State("first"); st != StateHalfOpen {
		t.Errorf("after reset timeout State(first) = %v", st)
	}
	if _, err := c.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := len(first.Calls()); got != 3 {
		t.Errorf("first not probed after reset timeout, %d calls", got)
	}
}

func TestChain_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &llmmock.Provider{CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
		cancel()
		return nil, ctx.Err()
	}}
	second := reply("late")
	c := NewChain(CircuitBreakerConfig{}, nil).Add("first", first).Add("second", second)

	if _, err := c.Complete(ctx, llm.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(second.Calls()) != 0 {
		t.Error("second backend called after the context was done")
	}
	if st, _ := c.State("first"); st != StateClosed {
		t.Errorf("cancellation changed breaker state to %v", st)
	}
}

func TestChain_Backends(t *testing.T) {
	c := NewChain(CircuitBreakerConfig{}, nil).Add("x", reply("")).Add("y", reply(""))
	if got := c.Backends(); !slices.Equal(got, []string{"x", "y"}) {
		t.Errorf("Backends() = %v", got)
	}
	if _, ok := c.State("z"); ok {
		t.Error("State reported an unknown backend")
	}
}
