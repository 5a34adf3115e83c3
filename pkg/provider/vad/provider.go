// Package vad abstracts frame-level speech classifiers (Silero through
// sherpa-onnx, or a plain energy gate).
//
// A classifier runs as a per-stream [SessionHandle] whose model state
// survives across utterances. The stop-on-silence debounce that dictation
// needs lives above it, in internal/vad. ProcessFrame is synchronous and
// cheap enough to run inside the capture loop.
package vad

import "time"

// Config parameterises a classifier session.
type Config struct {
	// SampleRate of the frames passed to ProcessFrame, in Hz. Always 16000
	// in voxkey.
	SampleRate int

	// SpeechThreshold in [0, 1]: frames scoring above it count as speech.
	SpeechThreshold float64

	// MinSilenceDuration is the silence the model itself requires before it
	// reports the end of a speech segment. Engines without internal segment
	// smoothing ignore it.
	MinSilenceDuration time.Duration
}

// SessionHandle classifies one audio stream.
type SessionHandle interface {
	// ProcessFrame classifies a chunk of PCM16LE mono audio. Chunks may have
	// any length; engines buffer up to their native window.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset drops buffered audio and smoothing history.
	Reset()

	// Close releases the session. Further calls return nil.
	Close() error
}

// Engine creates sessions. Implementations must be safe for concurrent use.
type Engine interface {
	NewSession(cfg Config) (SessionHandle, error)
}
