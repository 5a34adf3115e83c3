// Package openai provides an llm.Provider for the OpenAI Chat Completions API
// and the local servers that imitate it (vLLM, llama.cpp server, LM Studio).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/voxkey/pkg/provider/llm"
)

// ErrEmptyChoices is returned when the backend replies without a choice.
var ErrEmptyChoices = errors.New("openai: empty choices in response")

// Provider implements llm.Provider with the openai-go client.
type Provider struct {
	client oai.Client
	model  string
}

var _ llm.Provider = (*Provider)(nil)

// Option adjusts the underlying client.
type Option func(*[]option.RequestOption)

func add(o option.RequestOption) Option {
	return func(opts *[]option.RequestOption) { *opts = append(*opts, o) }
}

// WithBaseURL points the client at another server, e.g.
// "http://localhost:8080/v1" for llama.cpp.
func WithBaseURL(url string) Option { return add(option.WithBaseURL(url)) }

// WithOrganization sets the OpenAI organization ID.
func WithOrganization(org string) Option { return add(option.WithOrganization(org)) }

// WithMaxRetries sets how often a failed request is retried.
func WithMaxRetries(n int) Option { return add(option.WithMaxRetries(n)) }

// WithTimeout bounds each HTTP request. It replaces any earlier
// WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return add(option.WithHTTPClient(&http.Client{Timeout: d}))
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return add(option.WithHTTPClient(hc)) }

// New constructs a Provider for model. apiKey may be empty for local servers.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Model returns the configured model name.
func (p *Provider) Model() string { return p.model }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyChoices
	}
	choice := resp.Choices[0]
	return &llm.CompletionResponse{
		Content:   choice.Message.Content,
		Truncated: string(choice.FinishReason) == llm.FinishLength,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *Provider) params(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return oai.ChatCompletionNewParams{}, errors.New("no messages")
	}
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			msgs = append(msgs, oai.SystemMessage(m.Content))
		case llm.RoleUser:
			msgs = append(msgs, oai.UserMessage(m.Content))
		case llm.RoleAssistant:
			msgs = append(msgs, oai.AssistantMessage(m.Content))
		default:
			return oai.ChatCompletionNewParams{}, fmt.Errorf("unsupported role %q", m.Role)
		}
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: msgs,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params, nil
}
