// Package polish rewrites final transcripts through a chat model: it fixes
// punctuation, casing and obvious recognition slips without changing the
// meaning.
//
// The model reply is cleaned of markdown fences and wrapping quotes. A reply
// that is empty, much longer than the input, or that keeps too few of the
// input words in order (the model answered or rewrote instead of editing) is
// rejected and the caller keeps the original text.
package polish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voxkey/internal/observe"
	"github.com/MrWong99/voxkey/internal/transcript"
	"github.com/MrWong99/voxkey/pkg/provider/llm"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultTemperature = 0.1
	defaultMaxGrowth   = 2.0
	defaultMinOverlap  = 0.5
)

// DefaultPrompt is the system prompt used when none is configured.
const DefaultPrompt = `You are a dictation editor. The user message is a raw speech-recognition transcript.

Rules:
- Fix punctuation, capitalisation and obvious misrecognised words.
- Keep the language of the transcript; never translate.
- Do not add, remove or reorder content. Do not answer questions in the text.
- Remove filler words (um, uh, 嗯, 呃) only when they carry no meaning.

Reply with the corrected transcript only, no commentary, no quotes, no markdown.`

var (
	// ErrEmptyReply is returned when the model produced no usable text.
	ErrEmptyReply = errors.New("polish: empty reply")

	// ErrRunaway is returned when the reply is implausibly longer than the
	// input or was cut off at the token limit.
	ErrRunaway = errors.New("polish: reply much longer than input")

	// ErrDrift is returned when the reply kept too little of the input.
	ErrDrift = errors.New("polish: reply drifted from input")
)

// Option configures a [Polisher].
type Option func(*Polisher)

// WithPrompt replaces [DefaultPrompt]. An empty prompt is ignored.
func WithPrompt(prompt string) Option {
	return func(p *Polisher) {
		if strings.TrimSpace(prompt) != "" {
			p.prompt = prompt
		}
	}
}

// WithTimeout bounds one polishing call. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(p *Polisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(t float64) Option {
	return func(p *Polisher) {
		p.temperature = t
	}
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Polisher) {
		p.metrics = m
	}
}

// WithVocabulary lists domain terms the model should spell exactly.
func WithVocabulary(terms []string) Option {
	return func(p *Polisher) {
		p.vocabulary = append([]string(nil), terms...)
	}
}

// WithMaxGrowth sets the largest accepted ratio of reply length to input
// length, in runes. Default: 2.
func WithMaxGrowth(ratio float64) Option {
	return func(p *Polisher) {
		if ratio > 1 {
			p.maxGrowth = ratio
		}
	}
}

// WithMinOverlap sets the smallest share of input words, or CJK
// characters, that must survive in order in the reply. Zero disables the
// check. Default: 0.5.
func WithMinOverlap(ratio float64) Option {
	return func(p *Polisher) {
		if ratio >= 0 && ratio <= 1 {
			p.minOverlap = ratio
		}
	}
}

// Polisher is a [transcript.Processor] backed by an [llm.Provider]. It is
// safe for concurrent use.
type Polisher struct {
	provider    llm.Provider
	prompt      string
	timeout     time.Duration
	temperature float64
	vocabulary  []string
	maxGrowth   float64
	minOverlap  float64
	metrics     *observe.Metrics
}

var _ transcript.Processor = (*Polisher)(nil)

// New returns a Polisher sending requests to provider. provider is usually
// a resilience.Chain so a failing backend is skipped quickly.
func New(provider llm.Provider, opts ...Option) *Polisher {
	p := &Polisher{
		provider:    provider,
		prompt:      DefaultPrompt,
		timeout:     defaultTimeout,
		temperature: defaultTemperature,
		maxGrowth:   defaultMaxGrowth,
		minOverlap:  defaultMinOverlap,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// WithTerms returns a copy of p that also protects terms. The copy shares
// the provider.
func (p *Polisher) WithTerms(terms []string) *Polisher {
	cp := *p
	cp.vocabulary = append([]string(nil), terms...)
	return &cp
}

// Process implements [transcript.Processor].
func (p *Polisher) Process(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx, span := observe.StartSpan(ctx, "transcript.polish", attribute.Int("text.length", len(text)))
	defer span.End()

	start := time.Now()
	out, err := p.complete(ctx, text)
	p.metrics.RecordPolish(ctx, outcome(err), time.Since(start))
	if err != nil {
		observe.Fail(span, err)
		return text, err
	}
	return out, nil
}

// outcome labels a polishing result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyReply):
		return "empty"
	case errors.Is(err, ErrRunaway):
		return "runaway"
	case errors.Is(err, ErrDrift):
		return "drift"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// complete asks the model and validates its reply against text.
func (p *Polisher) complete(ctx context.Context, text string) (string, error) {
	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: p.systemPrompt(),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature:  p.temperature,
		MaxTokens:    maxTokensFor(text),
	})
	if err != nil {
		return "", fmt.Errorf("polish: complete: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyReply
	}
	if resp.Truncated {
		return "", ErrRunaway
	}

	out := clean(resp.Content)
	switch {
	case out == "":
		return "", ErrEmptyReply
	case float64(utf8.RuneCountInString(out)) > p.maxGrowth*float64(utf8.RuneCountInString(text))+16:
		return "", ErrRunaway
	case p.minOverlap > 0 && overlap(text, out) < p.minOverlap:
		return "", ErrDrift
	}
	return out, nil
}

func (p *Polisher) systemPrompt() string {
	if len(p.vocabulary) == 0 {
		return p.prompt
	}
	var sb strings.Builder
	sb.WriteString(p.prompt)
	sb.WriteString("\n\nSpell these terms exactly as listed:\n")
	for _, term := range p.vocabulary {
		sb.WriteString("- ")
		sb.WriteString(term)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// maxTokensFor allows roughly twice the input length plus headroom; CJK text
// needs about one token per character.
func maxTokensFor(text string) int {
	return 2*utf8.RuneCountInString(text) + 64
}

// clean strips markdown code fences, surrounding whitespace and a single
// pair of wrapping quotes.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"「", "」"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			inner := s[len(q[0]) : len(s)-len(q[1])]
			if !strings.Contains(inner, q[0]) {
				s = strings.TrimSpace(inner)
			}
			break
		}
	}
	return s
}
