package anyllm

import (
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voxkey/internal/config"
	"github.com/MrWong99/voxkey/pkg/provider/llm"
)

func TestParams(t *testing.T) {
	p := &Provider{name: "anthropic", model: "claude-3-5-haiku-latest"}

	params := p.params(llm.CompletionRequest{
		SystemPrompt: "Fix punctuation only.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "so the uh meeting is moved"},
			{Role: llm.RoleAssistant, Content: "So the meeting is moved."},
		},
		Temperature: 0.2,
		MaxTokens:   128,
	})
	if params.Model != "claude-3-5-haiku-latest" {
		t.Errorf("Model = %q", params.Model)
	}
	roles := make([]string, len(params.Messages))
	for i, m := range params.Messages {
		roles[i] = m.Role
	}
	if want := []string{anyllmlib.RoleSystem, llm.RoleUser, llm.RoleAssistant}; !slices.Equal(roles, want) {
		t.Errorf("roles = %v, want %v", roles, want)
	}
	if got := params.Messages[1].ContentString(); got != "so the uh meeting is moved" {
		t.Errorf("user content = %q", got)
	}
	if params.Temperature == nil || *params.Temperature != 0.2 {
		t.Errorf("Temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 128 {
		t.Errorf("MaxTokens = %v", params.MaxTokens)
	}

	bare := p.params(llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if len(bare.Messages) != 1 || bare.Temperature != nil || bare.MaxTokens != nil {
		t.Errorf("bare params = %+v", bare)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		opts     []anyllmlib.Option
		wantErr  bool
	}{
		{name: "anthropic with key", provider: "anthropic", model: "claude-3-5-haiku-latest", opts: []anyllmlib.Option{anyllmlib.WithAPIKey("sk-ant-test")}},
		{name: "mixed case", provider: "Ollama", model: "llama3"},
		{name: "ollama without key", provider: "ollama", model: "llama3"},
		{name: "empty model", provider: "anthropic", model: "", wantErr: true},
		{name: "empty provider", provider: "", model: "m", wantErr: true},
		{name: "unknown provider", provider: "fakecloud", model: "m", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.provider, tt.model, tt.opts...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p.model != tt.model {
				t.Errorf("model = %q", p.model)
			}
		})
	}
}

func TestProviders_CoverConfig(t *testing.T) {
	got := Providers()
	if !slices.IsSorted(got) {
		t.Errorf("Providers() not sorted: %v", got)
	}
	for _, name := range config.ValidLLMProviders {
		if !slices.Contains(got, name) {
			t.Errorf("config accepts %q but anyllm cannot create it", name)
		}
	}
}
