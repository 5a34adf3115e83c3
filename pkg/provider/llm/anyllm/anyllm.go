// Package anyllm adapts github.com/mozilla-ai/any-llm-go to llm.Provider so
// transcripts can be polished by Anthropic, Gemini, Ollama and the other
// backends that library supports.
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/voxkey/pkg/provider/llm"
)

// ErrNoChoices is returned when a backend answers without any choice.
var ErrNoChoices = errors.New("anyllm: empty choices in response")

type factory func(...anyllmlib.Option) (anyllmlib.Provider, error)

func adapt[P anyllmlib.Provider](fn func(...anyllmlib.Option) (P, error)) factory {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return fn(opts...)
	}
}

var factories = map[string]factory{
	"anthropic": adapt(anthropic.New),
	"deepseek":  adapt(deepseek.New),
	"gemini":    adapt(gemini.New),
	"groq":      adapt(groq.New),
	"llamacpp":  adapt(llamacpp.New),
	"llamafile": adapt(llamafile.New),
	"mistral":   adapt(mistral.New),
	"ollama":    adapt(ollama.New),
	"openai":    adapt(anyllmoai.New),
}

// Providers returns the accepted backend names, sorted.
func Providers() []string {
	return slices.Sorted(maps.Keys(factories))
}

// Provider sends completions through one any-llm-go backend.
type Provider struct {
	name    string
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Provider for backend name, case-insensitive.
//
// opts are passed to the backend unchanged; anyllmlib.WithAPIKey and
// anyllmlib.WithBaseURL are the usual ones. Without an API key the backend
// reads its own environment variable, e.g. ANTHROPIC_API_KEY.
func New(name, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("anyllm: model must not be empty")
	}
	name = strings.ToLower(name)
	mk, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported provider %q; supported: %s", name, strings.Join(Providers(), ", "))
	}
	backend, err := mk(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %s backend: %w", name, err)
	}
	return &Provider{name: name, backend: backend, model: model}, nil
}

// Name returns the lower-cased backend name.
func (p *Provider) Name() string { return p.name }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.params(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	choice := resp.Choices[0]
	out := &llm.CompletionResponse{
		Content:   choice.Message.ContentString(),
		Truncated: string(choice.FinishReason) == llm.FinishLength,
	}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

func (p *Provider) params(req llm.CompletionRequest) anyllmlib.CompletionParams {
	msgs := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: msgs}
	if req.Temperature != 0 {
		params.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = &req.MaxTokens
	}
	return params
}
