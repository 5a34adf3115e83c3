// Package sherpa provides decoder engines backed by the sherpa-onnx Go
// bindings (CGO).
//
// SenseVoice, Paraformer and TeleSpeech are offline (non-streaming) models:
// their streams buffer the utterance and re-decode it through
// [asr.OfflineStream]. Zipformer is a streaming transducer and decodes
// incrementally on a native online stream.
package sherpa

import (
	"context"
	"fmt"
	"sync"
	"time"

	so "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/MrWong99/voxkey/pkg/audio"
	"github.com/MrWong99/voxkey/pkg/provider/asr"
)

const (
	featureDim     = 80
	decodingMethod = "greedy_search"
	defaultThreads = 2
)

// Option is a functional option applied to the engines created by [Loader].
type Option func(*options)

type options struct {
	minDecodeInterval time.Duration
}

// WithMinDecodeInterval sets how much new audio an offline stream collects
// before it re-decodes. Defaults to [asr.DefaultMinDecodeInterval].
func WithMinDecodeInterval(d time.Duration) Option {
	return func(o *options) { o.minDecodeInterval = d }
}

// Loader returns an [asr.Loader] for the sherpa-onnx backend families.
func Loader(opts ...Option) asr.Loader {
	o := &options{minDecodeInterval: asr.DefaultMinDecodeInterval}
	for _, fn := range opts {
		fn(o)
	}
	return func(ctx context.Context, cfg asr.ModelConfig) (asr.Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := validate(cfg); err != nil {
			return nil, err
		}
		if cfg.Backend == asr.BackendZipformer {
			return newOnlineEngine(cfg)
		}
		return newOfflineEngine(cfg, o.minDecodeInterval)
	}
}

func validate(cfg asr.ModelConfig) error {
	want := 1
	switch cfg.Backend {
	case asr.BackendSenseVoice, asr.BackendParaformer, asr.BackendTeleSpeech:
	case asr.BackendZipformer:
		want = 3
	default:
		return fmt.Errorf("sherpa: unsupported backend %q", cfg.Backend)
	}
	if len(cfg.ModelPaths) != want {
		return fmt.Errorf("sherpa: %s needs %d model file(s), got %d", cfg.Backend, want, len(cfg.ModelPaths))
	}
	if cfg.TokensPath == "" {
		return fmt.Errorf("sherpa: %s needs a tokens file: %w", cfg.Backend, asr.ErrModelFiles)
	}
	paths := append([]string{cfg.TokensPath, cfg.ITNRulePath}, cfg.ModelPaths...)
	if err := asr.CheckFiles(paths...); err != nil {
		return fmt.Errorf("sherpa: %w", err)
	}
	return nil
}

func threads(cfg asr.ModelConfig) int {
	if cfg.NumThreads > 0 {
		return cfg.NumThreads
	}
	return defaultThreads
}

func provider(cfg asr.ModelConfig) string {
	if cfg.Provider != "" {
		return cfg.Provider
	}
	return "cpu"
}

// ---- offline ----------------------------------------------------------------

type offlineEngine struct {
	// Decode is not documented as re-entrant; one utterance at a time.
	mu          sync.Mutex
	rec         *so.OfflineRecognizer
	minInterval time.Duration
}

func newOfflineEngine(cfg asr.ModelConfig, minInterval time.Duration) (*offlineEngine, error) {
	c := so.OfflineRecognizerConfig{}
	c.FeatConfig = so.FeatureConfig{SampleRate: audio.SampleRate, FeatureDim: featureDim}
	c.ModelConfig.Tokens = cfg.TokensPath
	c.ModelConfig.NumThreads = threads(cfg)
	c.ModelConfig.Provider = provider(cfg)
	c.DecodingMethod = decodingMethod
	c.RuleFsts = cfg.ITNRulePath

	model := cfg.ModelPaths[0]
	switch cfg.Backend {
	case asr.BackendSenseVoice:
		lang := cfg.Language
		if lang == "" {
			lang = "auto"
		}
		c.ModelConfig.SenseVoice.Model = model
		c.ModelConfig.SenseVoice.Language = lang
		c.ModelConfig.SenseVoice.UseInverseTextNormalization = 1
	case asr.BackendParaformer:
		c.ModelConfig.Paraformer.Model = model
	case asr.BackendTeleSpeech:
		c.ModelConfig.TeleSpeechCtc = model
	}

	rec := so.NewOfflineRecognizer(&c)
	if rec == nil {
		return nil, fmt.Errorf("sherpa: create %s recognizer from %q failed", cfg.Backend, model)
	}
	return &offlineEngine{rec: rec, minInterval: minInterval}, nil
}

func (e *offlineEngine) NewStream() (asr.Stream, error) {
	return asr.NewOfflineStream(e.decode, e.minInterval, nil), nil
}

func (e *offlineEngine) decode(samples []float32) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec == nil {
		return "", fmt.Errorf("sherpa: recognizer released")
	}
	st := so.NewOfflineStream(e.rec)
	defer so.DeleteOfflineStream(st)
	st.AcceptWaveform(audio.SampleRate, samples)
	e.rec.Decode(st)
	return st.GetResult().Text, nil
}

func (e *offlineEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		so.DeleteOfflineRecognizer(e.rec)
		e.rec = nil
	}
	return nil
}

// ---- online -----------------------------------------------------------------

type onlineEngine struct {
	rec *so.OnlineRecognizer
}

func newOnlineEngine(cfg asr.ModelConfig) (*onlineEngine, error) {
	c := so.OnlineRecognizerConfig{}
	c.FeatConfig = so.FeatureConfig{SampleRate: audio.SampleRate, FeatureDim: featureDim}
	c.ModelConfig.Transducer.Encoder = cfg.ModelPaths[0]
	c.ModelConfig.Transducer.Decoder = cfg.ModelPaths[1]
	c.ModelConfig.Transducer.Joiner = cfg.ModelPaths[2]
	c.ModelConfig.Tokens = cfg.TokensPath
	c.ModelConfig.NumThreads = threads(cfg)
	c.ModelConfig.Provider = provider(cfg)
	c.DecodingMethod = decodingMethod
	// Endpointing is driven by the session's VAD.
	c.EnableEndpoint = 0

	rec := so.NewOnlineRecognizer(&c)
	if rec == nil {
		return nil, fmt.Errorf("sherpa: create zipformer recognizer from %q failed", cfg.ModelPaths[0])
	}
	return &onlineEngine{rec: rec}, nil
}

func (e *onlineEngine) NewStream() (asr.Stream, error) {
	st := so.NewOnlineStream(e.rec)
	if st == nil {
		return nil, fmt.Errorf("sherpa: create online stream failed")
	}
	return &onlineStream{rec: e.rec, st: st}, nil
}

func (e *onlineEngine) Close() error {
	if e.rec != nil {
		so.DeleteOnlineRecognizer(e.rec)
		e.rec = nil
	}
	return nil
}

type onlineStream struct {
	rec *so.OnlineRecognizer
	st  *so.OnlineStream
}

func (s *onlineStream) AcceptWaveform(sampleRate int, samples []float32) {
	if s.st != nil {
		s.st.AcceptWaveform(sampleRate, samples)
	}
}

func (s *onlineStream) InputFinished() {
	if s.st != nil {
		s.st.InputFinished()
	}
}

func (s *onlineStream) IsReady() bool {
	return s.st != nil && s.rec.IsReady(s.st)
}

func (s *onlineStream) Decode() error {
	if s.st == nil {
		return fmt.Errorf("sherpa: stream is closed")
	}
	s.rec.Decode(s.st)
	return nil
}

func (s *onlineStream) Text() string {
	if s.st == nil {
		return ""
	}
	return s.rec.GetResult(s.st).Text
}

func (s *onlineStream) Close() error {
	if s.st != nil {
		so.DeleteOnlineStream(s.st)
		s.st = nil
	}
	return nil
}

var (
	_ asr.Engine = (*offlineEngine)(nil)
	_ asr.Engine = (*onlineEngine)(nil)
	_ asr.Stream = (*onlineStream)(nil)
)
