// Package sherpa provides a Silero VAD engine backed by the sherpa-onnx Go
// bindings (CGO). The ONNX model is loaded once per session; the session
// keeps the recurrent model state across utterances until Reset is called.
package sherpa

import (
	"errors"
	"fmt"
	"sync"

	so "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/MrWong99/voxkey/pkg/audio"
	"github.com/MrWong99/voxkey/pkg/provider/vad"
)

const (
	// sileroWindowSize is the native Silero window at 16 kHz.
	sileroWindowSize = 512

	defaultMinSpeechDuration = 0.25
	defaultBufferSeconds     = 30
)

var errClosed = errors.New("sherpa vad: session is closed")

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithNumThreads sets the ONNX runtime thread count. Defaults to 1.
func WithNumThreads(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.numThreads = n
		}
	}
}

// WithProvider selects the ONNX execution provider ("cpu", "cuda", ...).
// Defaults to "cpu".
func WithProvider(p string) Option {
	return func(e *Engine) {
		if p != "" {
			e.provider = p
		}
	}
}

// Engine creates Silero VAD sessions from a model file.
type Engine struct {
	modelPath  string
	numThreads int
	provider   string
}

// New returns an [Engine] for the Silero model at modelPath.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("sherpa vad: modelPath must not be empty")
	}
	e := &Engine{modelPath: modelPath, numThreads: 1, provider: "cpu"}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = audio.SampleRate
	}
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold >= 1 {
		return nil, fmt.Errorf("sherpa vad: speech threshold %.2f out of range (0, 1)", cfg.SpeechThreshold)
	}

	c := so.VadModelConfig{}
	c.SileroVad.Model = e.modelPath
	c.SileroVad.Threshold = float32(cfg.SpeechThreshold)
	c.SileroVad.MinSilenceDuration = float32(cfg.MinSilenceDuration.Seconds())
	c.SileroVad.MinSpeechDuration = defaultMinSpeechDuration
	c.SileroVad.WindowSize = sileroWindowSize
	c.SampleRate = sr
	c.NumThreads = e.numThreads
	c.Provider = e.provider

	detector := so.NewVoiceActivityDetector(&c, defaultBufferSeconds)
	if detector == nil {
		return nil, fmt.Errorf("sherpa vad: load model %q failed", e.modelPath)
	}
	return &session{detector: detector}, nil
}

var _ vad.Engine = (*Engine)(nil)

type session struct {
	mu        sync.Mutex
	detector  *so.VoiceActivityDetector
	wasSpeech bool
}

// ProcessFrame feeds the frame to Silero and reports its current decision.
// Completed speech segments are discarded; only the live decision matters
// to the caller.
func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector == nil {
		return vad.VADEvent{}, errClosed
	}
	s.detector.AcceptWaveform(audio.ToFloat32(frame))
	for !s.detector.IsEmpty() {
		s.detector.Pop()
	}
	speech := s.detector.IsSpeech()
	ev := vad.VADEvent{Type: vad.Transition(s.wasSpeech, speech)}
	if speech {
		ev.Probability = 1
	}
	s.wasSpeech = speech
	return ev, nil
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector != nil {
		s.detector.Reset()
	}
	s.wasSpeech = false
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector != nil {
		so.DeleteVoiceActivityDetector(s.detector)
		s.detector = nil
	}
	return nil
}
