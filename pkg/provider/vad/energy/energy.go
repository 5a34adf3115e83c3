// Package energy provides a dependency-free VAD engine that classifies frames
// by their root-mean-square energy.
//
// It is far less robust than a neural classifier but needs no model file,
// which makes it the default for development setups and the fallback when the
// Silero model is missing. The speech probability is the frame RMS divided by
// twice the reference level, clamped to [0, 1]; with the default reference of
// 500 PCM units a SpeechThreshold of 0.5 gates at RMS 500.
package energy

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/voxkey/pkg/audio"
	"github.com/MrWong99/voxkey/pkg/provider/vad"
)

const defaultReferenceRMS = 500.0

var errClosed = errors.New("energy: session is closed")

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithReferenceRMS sets the RMS level (in 16-bit PCM units) that maps to a
// speech probability of 0.5. Defaults to 500.
func WithReferenceRMS(rms float64) Option {
	return func(e *Engine) {
		if rms > 0 {
			e.referenceRMS = rms
		}
	}
}

// Engine creates energy-gated VAD sessions. It is safe for concurrent use.
type Engine struct {
	referenceRMS float64
}

// New returns an [Engine] configured with the supplied options.
func New(opts ...Option) *Engine {
	e := &Engine{referenceRMS: defaultReferenceRMS}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SpeechThreshold < 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy: speech threshold %.2f out of range [0, 1]", cfg.SpeechThreshold)
	}
	return &session{threshold: cfg.SpeechThreshold, referenceRMS: e.referenceRMS}, nil
}

var _ vad.Engine = (*Engine)(nil)

type session struct {
	threshold    float64
	referenceRMS float64

	mu        sync.Mutex
	wasSpeech bool
	closed    bool
}

func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.VADEvent{}, errClosed
	}
	if len(frame)%2 != 0 {
		return vad.VADEvent{}, fmt.Errorf("energy: odd frame length %d", len(frame))
	}
	p := math.Min(1, audio.RMS(frame)/(2*s.referenceRMS))
	speech := p >= s.threshold
	ev := vad.VADEvent{Type: vad.Transition(s.wasSpeech, speech), Probability: p}
	s.wasSpeech = speech
	return ev, nil
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wasSpeech = false
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
