package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voxkey/pkg/provider/llm"
)

// ErrAllFailed is returned by [Chain.Complete] when no backend produced a
// completion.
var ErrAllFailed = errors.New("resilience: all backends failed")

// Chain implements [llm.Provider] on top of an ordered list of completion
// backends. Each backend sits behind its own [CircuitBreaker]; a request goes
// to the first backend whose breaker lets it through and moves down the list
// on failure. A single-backend Chain still stops calling a backend that keeps
// failing.
//
// Backends must be added before the Chain is shared between goroutines.
type Chain struct {
	breaker  CircuitBreakerConfig
	backends []chainBackend
	log      *slog.Logger
}

type chainBackend struct {
	name string
	p    llm.Provider
	cb   *CircuitBreaker
}

var _ llm.Provider = (*Chain)(nil)

// NewChain returns an empty Chain. Every backend gets a breaker built from
// cfg, named after the backend. A nil logger means slog.Default().
func NewChain(cfg CircuitBreakerConfig, log *slog.Logger) *Chain {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = log
	}
	return &Chain{breaker: cfg, log: log}
}

// Add appends a backend tried after all earlier ones and returns c.
func (c *Chain) Add(name string, p llm.Provider) *Chain {
	cfg := c.breaker
	cfg.Name = name
	c.backends = append(c.backends, chainBackend{name: name, p: p, cb: NewCircuitBreaker(cfg)})
	return c
}

// Backends returns the backend names in try order.
func (c *Chain) Backends() []string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.name
	}
	return names
}

// State returns the breaker state of the named backend.
func (c *Chain) State(name string) (State, bool) {
	for _, b := range c.backends {
		if b.name == name {
			return b.cb.State(), true
		}
	}
	return 0, false
}

// Complete sends req down the chain. Once ctx is done the walk stops and the
// context error is returned, so a polish timeout is never spent twice.
func (c *Chain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var errs []error
	for _, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var resp *llm.CompletionResponse
		err := b.cb.Execute(func() error {
			var err error
			resp, err = b.p.Complete(ctx, req)
			if err == nil && resp == nil {
				err = errors.New("nil response")
			}
			return err
		})
		switch {
		case err == nil:
			return resp, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, ErrCircuitOpen):
			c.log.Debug("resilience: backend skipped, circuit open", "backend", b.name)
		default:
			c.log.Warn("resilience: backend failed", "backend", b.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no backends", ErrAllFailed)
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
