// Package portaudio provides a local microphone [audio.Source] backed by the
// PortAudio C library (github.com/gordonklaus/portaudio, CGO).
//
// The source opens the default input device in blocking mode at 16 kHz mono
// and hands out one fixed-duration frame per Read call.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voxkey/pkg/audio"
)

const defaultFrameDuration = 200 * time.Millisecond

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithFrameDuration sets the duration of each captured frame. Defaults to
// 200 ms.
func WithFrameDuration(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.frameDuration = d
		}
	}
}

// Source captures from the default input device.
type Source struct {
	frameDuration time.Duration

	readMu  sync.Mutex
	stream  *pa.Stream
	buf     []int16
	offset  time.Duration
	stopped atomic.Bool
	once    sync.Once
}

// New returns an unstarted microphone source.
func New(opts ...Option) *Source {
	s := &Source{frameDuration: defaultFrameDuration}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Format implements [audio.Source].
func (s *Source) Format() audio.Format { return audio.Mono16k }

// Start initialises PortAudio and opens the default input stream.
func (s *Source) Start(_ context.Context) error {
	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	n := int(s.frameDuration * audio.SampleRate / time.Second)
	s.buf = make([]int16, n)
	stream, err := pa.OpenDefaultStream(audio.Channels, 0, float64(audio.SampleRate), n, s.buf)
	if err != nil {
		_ = pa.Terminate()
		if errors.Is(err, pa.DeviceUnavailable) || errors.Is(err, pa.InvalidDevice) {
			return fmt.Errorf("portaudio: open input: %v: %w", err, audio.ErrPermissionDenied)
		}
		return fmt.Errorf("portaudio: open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return fmt.Errorf("portaudio: start input: %v: %w", err, audio.ErrDevice)
	}
	s.stream = stream
	return nil
}

// Read blocks until one frame of audio has been captured.
func (s *Source) Read(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if s.stopped.Load() || s.stream == nil {
		return audio.Frame{}, audio.ErrStopped
	}
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, pa.InputOverflowed) {
			return audio.Frame{}, fmt.Errorf("portaudio: read: %v: %w", err, audio.ErrDevice)
		}
		// Samples were lost but the buffer still holds a full frame.
		slog.Warn("portaudio: input overflowed")
	}
	f := audio.Frame{
		Data:       audio.FromInt16(s.buf),
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
		Timestamp:  s.offset,
	}
	s.offset += s.frameDuration
	return f, nil
}

// Stop ends capture and terminates PortAudio. A Read in progress finishes
// its current frame first.
func (s *Source) Stop() error {
	var err error
	s.once.Do(func() {
		s.stopped.Store(true)
		s.readMu.Lock()
		defer s.readMu.Unlock()
		if s.stream == nil {
			return
		}
		err = errors.Join(s.stream.Stop(), s.stream.Close(), pa.Terminate())
		s.stream = nil
	})
	if err != nil {
		return fmt.Errorf("portaudio: stop: %w", err)
	}
	return nil
}

var _ audio.Source = (*Source)(nil)
