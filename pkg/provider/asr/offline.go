package asr

import (
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/voxkey/pkg/audio"
)

// DefaultMinDecodeInterval is the amount of new audio an offline stream waits
// for before it re-decodes the utterance.
const DefaultMinDecodeInterval = 400 * time.Millisecond

var errStreamClosed = errors.New("asr: stream is closed")

// DecodeFunc decodes a complete utterance of 16 kHz float32 samples.
type DecodeFunc func(samples []float32) (string, error)

// OfflineStream adapts a whole-utterance decoder to the incremental [Stream]
// contract. It buffers every sample and re-decodes the full utterance once at
// least the minimum interval of new audio arrived, and once more after
// InputFinished. IsReady is true only while such work is pending, so a
// bounded decode loop terminates after one step.
type OfflineStream struct {
	decode      DecodeFunc
	minNew      int
	release     func()
	releaseOnce sync.Once

	samples  []float32
	decoded  int
	finished bool
	dirty    bool
	closed   bool
	text     string
}

// NewOfflineStream returns a stream that decodes with fn. release, if non-nil,
// runs once on Close.
func NewOfflineStream(fn DecodeFunc, minInterval time.Duration, release func()) *OfflineStream {
	if minInterval <= 0 {
		minInterval = DefaultMinDecodeInterval
	}
	return &OfflineStream{
		decode:  fn,
		minNew:  int(minInterval * audio.SampleRate / time.Second),
		release: release,
	}
}

// AcceptWaveform implements [Stream]. Samples at other rates are dropped; the
// session only delivers 16 kHz audio.
func (s *OfflineStream) AcceptWaveform(sampleRate int, samples []float32) {
	if s.closed || s.finished || sampleRate != audio.SampleRate || len(samples) == 0 {
		return
	}
	s.samples = append(s.samples, samples...)
	s.dirty = true
}

// InputFinished implements [Stream].
func (s *OfflineStream) InputFinished() {
	s.finished = true
}

// IsReady implements [Stream].
func (s *OfflineStream) IsReady() bool {
	if s.closed || !s.dirty {
		return false
	}
	return s.finished || len(s.samples)-s.decoded >= s.minNew
}

// Decode implements [Stream].
func (s *OfflineStream) Decode() error {
	if s.closed {
		return errStreamClosed
	}
	if !s.dirty {
		return nil
	}
	text, err := s.decode(s.samples)
	// The attempt consumes the pending audio either way so a failing
	// decoder cannot spin the caller's loop.
	s.decoded = len(s.samples)
	s.dirty = false
	if err != nil {
		return err
	}
	s.text = text
	return nil
}

// Text implements [Stream].
func (s *OfflineStream) Text() string { return s.text }

// Samples returns the number of buffered samples.
func (s *OfflineStream) Samples() int { return len(s.samples) }

// Close implements [Stream].
func (s *OfflineStream) Close() error {
	s.closed = true
	s.samples = nil
	s.releaseOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
	return nil
}

var _ Stream = (*OfflineStream)(nil)
