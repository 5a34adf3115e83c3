// Package mock provides a recording llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxkey/pkg/provider/llm"
)

// Provider answers every Complete with CompleteFunc, or else with
// CompleteResponse and CompleteErr, and records each request.
type Provider struct {
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error
	CompleteFunc     func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	mu   sync.Mutex
	reqs []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	fn, resp, err := p.CompleteFunc, p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return resp, err
}

// Calls returns the recorded requests in call order.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.reqs...)
}

// Inputs returns the content of the last user message of every request,
// which is the transcript the polisher sent.
func (p *Provider) Inputs() []string {
	var out []string
	for _, req := range p.Calls() {
		text := ""
		for _, m := range req.Messages {
			if m.Role == llm.RoleUser {
				text = m.Content
			}
		}
		out = append(out, text)
	}
	return out
}
