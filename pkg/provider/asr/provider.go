// Package asr defines the decoder capability used by the recognition session.
//
// An [Engine] wraps one loaded recognition model (hundreds of MB, expensive to
// construct) and hands out per-utterance [Stream] handles. Audio is pushed into
// a Stream incrementally; the caller drives decoding with a bounded
// IsReady/Decode loop and reads the interim text after each iteration.
//
// Backends are a closed set selected by [Backend]; each backend package
// registers a [Loader] with the service registry. There is no runtime lookup
// by class name.
package asr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
)

// Backend selects a decoder family. At most one model per family is loaded
// at any time.
type Backend string

const (
	BackendSenseVoice Backend = "sensevoice"
	BackendParaformer Backend = "paraformer"
	BackendTeleSpeech Backend = "telespeech"
	BackendZipformer  Backend = "zipformer"
	BackendWhisper    Backend = "whisper"
)

// Backends lists every supported family in a stable order.
var Backends = []Backend{BackendSenseVoice, BackendParaformer, BackendTeleSpeech, BackendZipformer, BackendWhisper}

// IsValid reports whether b is a recognised backend.
func (b Backend) IsValid() bool {
	return slices.Contains(Backends, b)
}

// ModelConfig describes one loadable model. It is used as the cache key of
// the model manager: two equal configs share one loaded engine.
type ModelConfig struct {
	// Backend is the decoder family.
	Backend Backend

	// TokensPath is the absolute path of the tokens file. Whisper models carry
	// their vocabulary and leave it empty.
	TokensPath string

	// ModelPaths holds the model component files in backend order: a single
	// model for SenseVoice, Paraformer, TeleSpeech and Whisper;
	// encoder, decoder and joiner for Zipformer.
	ModelPaths []string

	// Language is the recognition language ("auto", "zh", "en", ...).
	Language string

	// Provider is the execution provider ("cpu", "cuda", "nnapi", ...).
	Provider string

	// NumThreads is the decoder thread count.
	NumThreads int

	// ITNRulePath is an optional inverse-text-normalization rule FST.
	ITNRulePath string

	// Vocabulary holds optional domain words. Backends with hotword support
	// bias decoding towards them; the session's vocabulary corrector uses
	// them for every backend.
	Vocabulary []string
}

// Equal reports whether c and o describe the same model.
func (c ModelConfig) Equal(o ModelConfig) bool {
	return c.Backend == o.Backend &&
		c.TokensPath == o.TokensPath &&
		slices.Equal(c.ModelPaths, o.ModelPaths) &&
		c.Language == o.Language &&
		c.Provider == o.Provider &&
		c.NumThreads == o.NumThreads &&
		c.ITNRulePath == o.ITNRulePath &&
		slices.Equal(c.Vocabulary, o.Vocabulary)
}

// Clone returns a deep copy of c so cached configs cannot be mutated by the
// caller.
func (c ModelConfig) Clone() ModelConfig {
	c.ModelPaths = slices.Clone(c.ModelPaths)
	c.Vocabulary = slices.Clone(c.Vocabulary)
	return c
}

// Stream is the per-utterance decoder handle. A Stream is not safe for
// concurrent use; the session serialises all access.
type Stream interface {
	// AcceptWaveform appends float32 mono samples at sampleRate.
	AcceptWaveform(sampleRate int, samples []float32)

	// InputFinished signals that no more audio will follow.
	InputFinished()

	// IsReady reports whether a Decode call would make progress.
	IsReady() bool

	// Decode runs one decoding step.
	Decode() error

	// Text returns the current transcript of the utterance.
	Text() string

	// Close releases the stream. Safe to call more than once.
	Close() error
}

// Engine is one loaded model.
type Engine interface {
	// NewStream creates a fresh per-utterance stream.
	NewStream() (Stream, error)

	// Close releases the model. No stream may be in use when Close is called.
	Close() error
}

// Loader constructs an Engine from cfg. Loading is expensive (file I/O and
// graph initialisation) and may take seconds.
type Loader func(ctx context.Context, cfg ModelConfig) (Engine, error)

// Punctuator restores punctuation in a finished transcript.
type Punctuator interface {
	AddPunctuation(text string) string
}

// ErrModelFiles is wrapped by loaders when a configured model file is
// missing or unreadable.
var ErrModelFiles = errors.New("asr: model files missing")

// CheckFiles verifies that every non-empty path names a regular file.
func CheckFiles(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrModelFiles, err))
			continue
		}
		if info.IsDir() {
			errs = append(errs, fmt.Errorf("%w: %q is a directory", ErrModelFiles, p))
		}
	}
	return errors.Join(errs...)
}
