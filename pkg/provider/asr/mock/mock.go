// Package mock provides call-recording test doubles for the asr package.
//
// Loader hands out Engine values, Engine hands out Stream values; every
// object records what was done to it so tests can assert on load counts,
// the exact samples a stream received and how often it was decoded.
//
// Example:
//
//	ld := &mock.Loader{TextFn: func(s []float32) string { return "hello" }}
//	mgr := model.New(asr.BackendSenseVoice, ld.Load)
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/voxkey/pkg/provider/asr"
)

// ErrClosed is returned by Decode after Close.
var ErrClosed = errors.New("mock: stream is closed")

// Loader is a mock [asr.Loader] source.
type Loader struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by every Load call.
	Err error

	// Gate, if non-nil, blocks every Load call until a value is received or
	// the channel is closed.
	Gate chan struct{}

	// TextFn is copied into every created Engine.
	TextFn func(samples []float32) string

	// DecodeDelay is copied into every created Engine.
	DecodeDelay time.Duration

	// Calls records the config of every Load call in order.
	Calls []asr.ModelConfig

	// Engines records every Engine created, in order.
	Engines []*Engine

	// Started is signalled (non-blocking) whenever Load is entered.
	Started chan struct{}
}

// Load implements [asr.Loader].
func (l *Loader) Load(ctx context.Context, cfg asr.ModelConfig) (asr.Engine, error) {
	l.mu.Lock()
	l.Calls = append(l.Calls, cfg.Clone())
	gate, started := l.Gate, l.Started
	l.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	e := &Engine{TextFn: l.TextFn, DecodeDelay: l.DecodeDelay}
	l.Engines = append(l.Engines, e)
	return e, nil
}

// LoadCount returns the number of Load calls. Thread-safe.
func (l *Loader) LoadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Calls)
}

// EngineCount returns the number of created engines. Thread-safe.
func (l *Loader) EngineCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Engines)
}

// Engine returns the i-th created engine. Thread-safe.
func (l *Loader) Engine(i int) *Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Engines[i]
}

// Engine is a mock implementation of [asr.Engine].
type Engine struct {
	mu sync.Mutex

	// TextFn computes a stream's text from all samples accepted so far.
	TextFn func(samples []float32) string

	// DecodeDelay is copied into every created Stream.
	DecodeDelay time.Duration

	// NewStreamErr, if non-nil, is returned by NewStream.
	NewStreamErr error

	// Streams records every Stream created, in order.
	Streams []*Stream

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewStream implements [asr.Engine].
func (e *Engine) NewStream() (asr.Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.NewStreamErr != nil {
		return nil, e.NewStreamErr
	}
	s := &Stream{TextFn: e.TextFn, DecodeDelay: e.DecodeDelay}
	e.Streams = append(e.Streams, s)
	return s, nil
}

// Close implements [asr.Engine].
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCallCount++
	return nil
}

// Closed reports whether Close was called. Thread-safe.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.CloseCallCount > 0
}

// Stream returns the i-th created stream. Thread-safe.
func (e *Engine) Stream(i int) *Stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Streams[i]
}

// StreamCount returns the number of created streams. Thread-safe.
func (e *Engine) StreamCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Streams)
}

var _ asr.Engine = (*Engine)(nil)

// Stream is a mock implementation of [asr.Stream]. It is ready whenever it
// holds samples that were not decoded yet, or always when AlwaysReady is set.
type Stream struct {
	mu sync.Mutex

	// TextFn computes the text from all samples accepted so far.
	TextFn func(samples []float32) string

	// DecodeErr, if non-nil, is returned by every Decode call.
	DecodeErr error

	// AlwaysReady makes IsReady return true until Close.
	AlwaysReady bool

	// DecodeDelay makes every Decode call sleep first, like a slow model.
	DecodeDelay time.Duration

	// Samples holds every sample accepted, in order.
	Samples []float32

	// Finished reports whether InputFinished was called.
	Finished bool

	// DecodeCallCount is the number of Decode calls.
	DecodeCallCount int

	// CloseCallCount is the number of Close calls.
	CloseCallCount int

	pending bool
	text    string
}

// AcceptWaveform implements [asr.Stream].
func (s *Stream) AcceptWaveform(_ int, samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Samples = append(s.Samples, samples...)
	s.pending = len(samples) > 0 || s.pending
}

// InputFinished implements [asr.Stream].
func (s *Stream) InputFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Finished = true
}

// IsReady implements [asr.Stream].
func (s *Stream) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CloseCallCount > 0 {
		return false
	}
	return s.AlwaysReady || s.pending
}

// Decode implements [asr.Stream].
func (s *Stream) Decode() error {
	s.mu.Lock()
	delay := s.DecodeDelay
	s.mu.Unlock()
	time.Sleep(delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.DecodeCallCount++
	if s.CloseCallCount > 0 {
		return ErrClosed
	}
	s.pending = false
	if s.DecodeErr != nil {
		return s.DecodeErr
	}
	if s.TextFn != nil {
		s.text = s.TextFn(s.Samples)
	}
	return nil
}

// Text implements [asr.Stream].
func (s *Stream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Close implements [asr.Stream].
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return nil
}

// Snapshot returns a copy of the accepted samples, the finished flag, and
// the decode and close counts. Thread-safe.
func (s *Stream) Snapshot() (samples []float32, finished bool, decodes, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.Samples...), s.Finished, s.DecodeCallCount, s.CloseCallCount
}

var _ asr.Stream = (*Stream)(nil)

// Punctuator appends Suffix to every text.
type Punctuator struct {
	Suffix string
}

// AddPunctuation implements [asr.Punctuator].
func (p Punctuator) AddPunctuation(text string) string {
	if text == "" {
		return text
	}
	return text + p.Suffix
}
