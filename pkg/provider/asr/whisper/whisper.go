// Package whisper provides a decoder engine backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// Whisper has no streaming mode, so streams buffer the utterance and
// re-decode it through [asr.OfflineStream].
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voxkey/pkg/provider/asr"
)

const defaultLanguage = "en"

var _ asr.Engine = (*Engine)(nil)

// Engine implements [asr.Engine]. The model is shared; every decode creates
// its own whisper context since contexts are not thread-safe.
type Engine struct {
	model       whisperlib.Model
	language    string
	minInterval time.Duration
}

// Option is a functional option for [New] and [Loader].
type Option func(*Engine)

// WithLanguage sets the default language used when the model config has
// none. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// WithMinDecodeInterval sets how much new audio a stream collects before it
// re-decodes.
func WithMinDecodeInterval(d time.Duration) Option {
	return func(e *Engine) { e.minInterval = d }
}

// New loads the ggml model at modelPath. The caller must Close the engine.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	if err := asr.CheckFiles(modelPath); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	e := &Engine{
		model:       model,
		language:    defaultLanguage,
		minInterval: asr.DefaultMinDecodeInterval,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Loader returns an [asr.Loader] for [asr.BackendWhisper]. The first model
// path is the ggml model; the tokens path is unused.
func Loader(opts ...Option) asr.Loader {
	return func(ctx context.Context, cfg asr.ModelConfig) (asr.Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cfg.Backend != asr.BackendWhisper {
			return nil, fmt.Errorf("whisper: unsupported backend %q", cfg.Backend)
		}
		if len(cfg.ModelPaths) != 1 {
			return nil, fmt.Errorf("whisper: need exactly one model file, got %d", len(cfg.ModelPaths))
		}
		o := opts
		if cfg.Language != "" {
			o = append(append([]Option(nil), opts...), WithLanguage(cfg.Language))
		}
		return New(cfg.ModelPaths[0], o...)
	}
}

// NewStream implements [asr.Engine].
func (e *Engine) NewStream() (asr.Stream, error) {
	if e.model == nil {
		return nil, errors.New("whisper: engine is closed")
	}
	return asr.NewOfflineStream(e.infer, e.minInterval, nil), nil
}

// Close releases the model.
func (e *Engine) Close() error {
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}

func (e *Engine) infer(samples []float32) (string, error) {
	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", e.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
