// Package mock provides scripted vad.Engine and vad.SessionHandle doubles.
package mock

import (
	"sync"

	"github.com/MrWong99/voxkey/pkg/provider/vad"
)

// Engine hands out Session, or a fresh empty Session when it is nil, and
// records the config of every NewSession call.
type Engine struct {
	Session       vad.SessionHandle
	NewSessionErr error

	mu      sync.Mutex
	configs []vad.Config
}

var _ vad.Engine = (*Engine)(nil)

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs = append(e.configs, cfg)
	switch {
	case e.NewSessionErr != nil:
		return nil, e.NewSessionErr
	case e.Session != nil:
		return e.Session, nil
	}
	return &Session{}, nil
}

// Configs returns the configs passed to NewSession, in order.
func (e *Engine) Configs() []vad.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]vad.Config(nil), e.configs...)
}

// Step is one scripted classification.
type Step struct {
	Speech bool
	Err    error
}

// Pattern builds a script from a string: 'S' is a speech frame, any other
// rune a silent one. Pattern("SS...") is two speech frames then three silent.
func Pattern(p string) []Step {
	steps := make([]Step, 0, len(p))
	for _, r := range p {
		steps = append(steps, Step{Speech: r == 'S'})
	}
	return steps
}

// Session classifies frames by consuming Script one step per frame. Once the
// script runs out every frame gets EventResult and ProcessFrameErr.
type Session struct {
	Script          []Step
	EventResult     vad.VADEvent
	ProcessFrameErr error
	CloseErr        error

	mu        sync.Mutex
	frames    int
	resets    int
	closes    int
	wasSpeech bool
}

var _ vad.SessionHandle = (*Session)(nil)

// ProcessFrame implements vad.SessionHandle.
func (s *Session) ProcessFrame([]byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if len(s.Script) == 0 {
		return s.EventResult, s.ProcessFrameErr
	}
	step := s.Script[0]
	s.Script = s.Script[1:]
	if step.Err != nil {
		return vad.VADEvent{Type: vad.VADSilence}, step.Err
	}
	ev := vad.VADEvent{Type: vad.Transition(s.wasSpeech, step.Speech)}
	if step.Speech {
		ev.Probability = 1
	}
	s.wasSpeech = step.Speech
	return ev, nil
}

// Reset implements vad.SessionHandle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.wasSpeech = false
}

// Close implements vad.SessionHandle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.CloseErr
}

// FrameCount returns the number of classified frames.
func (s *Session) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// ResetCalls returns how often Reset was called.
func (s *Session) ResetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// CloseCalls returns how often Close was called.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
