// Package vad turns a frame-level speech classifier into utterance boundary
// decisions for the recognition session.
//
// The [Detector] debounces the classifier output: silence before the first
// speech frame is absorbed by an initial-debounce budget, brief pauses after
// speech are absorbed by a hangover countdown, and only the remaining silence
// accumulates toward the stop decision.
package vad

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxkey/pkg/audio"
	vadprovider "github.com/MrWong99/voxkey/pkg/provider/vad"
)

// Config selects the detector behaviour.
type Config struct {
	// SensitivityLevel in [1, 10]; see [SensitivityFor]. Zero selects
	// [DefaultLevel].
	SensitivityLevel int

	// Window is the silence required to stop. The effective stop window is
	// the larger of Window and the level's MinSilence.
	Window time.Duration
}

// Result is the detector's decision for one chunk.
type Result struct {
	IsSpeech   bool
	ShouldStop bool
}

// ClassifierConfig returns the classifier parameters for a sensitivity level.
func ClassifierConfig(level int) vadprovider.Config {
	s := SensitivityFor(level)
	return vadprovider.Config{
		SampleRate:         audio.SampleRate,
		SpeechThreshold:    s.Threshold,
		MinSilenceDuration: s.MinSilence,
	}
}

// Detector is the voice activity detector of a recognition session. It is
// safe for concurrent use; the classifier handle is only touched under the
// detector's lock.
type Detector struct {
	handle vadprovider.SessionHandle
	log    *slog.Logger

	mu         sync.Mutex
	sens       Sensitivity
	stopAfter  time.Duration
	silence    time.Duration
	hangover   time.Duration
	debounce   time.Duration
	speechSeen bool
}

// Option configures a [Detector].
type Option func(*Detector)

// WithLogger sets the logger for classifier failures. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.log = l }
}

// NewDetector wraps handle with the debounce logic configured by cfg.
func NewDetector(handle vadprovider.SessionHandle, cfg Config, opts ...Option) *Detector {
	d := &Detector{handle: handle, log: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	d.SetConfig(cfg)
	return d
}

// SetConfig applies a new sensitivity and window and resets the counters.
func (d *Detector) SetConfig(cfg Config) {
	level := cfg.SensitivityLevel
	if level == 0 {
		level = DefaultLevel
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sens = SensitivityFor(level)
	d.stopAfter = max(cfg.Window, d.sens.MinSilence)
	d.resetLocked()
}

// Sensitivity returns the active table row.
func (d *Detector) Sensitivity() Sensitivity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sens
}

// StopAfter returns the effective silence window.
func (d *Detector) StopAfter() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopAfter
}

// Reset clears the counters for a new utterance. The classifier's model
// state is kept.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

func (d *Detector) resetLocked() {
	d.silence = 0
	d.hangover = 0
	d.debounce = d.sens.InitialDebounce
	d.speechSeen = false
}

// Analyze classifies one PCM16LE mono 16 kHz chunk.
//
// A classifier error is treated as silence without advancing any counter,
// so a transient failure never stops the utterance.
func (d *Detector) Analyze(frame []byte) Result {
	chunk := audio.BytesDuration(len(frame), audio.SampleRate, audio.Channels)

	d.mu.Lock()
	defer d.mu.Unlock()

	ev, err := d.handle.ProcessFrame(frame)
	if err != nil {
		d.log.Warn("vad: classifier failed, treating frame as silence", "err", err)
		return Result{}
	}

	if ev.IsSpeech() {
		d.silence = 0
		d.speechSeen = true
		d.hangover = d.sens.Hangover
		return Result{IsSpeech: true}
	}

	switch {
	case !d.speechSeen && d.debounce > 0:
		d.debounce -= chunk
		return Result{}
	case d.hangover > 0:
		d.hangover -= chunk
		return Result{}
	}

	d.silence += chunk
	return Result{ShouldStop: d.silence >= d.stopAfter}
}
