// Package mock provides an in-memory implementation of [audio.Source] for use
// in unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts, and exposes exported fields that the test
// can set to control return values.
//
// Typical usage:
//
//	src := mock.NewSource(16)
//	src.Push(audio.Frame{Data: pcm, SampleRate: 16000, Channels: 1})
//	src.Fail(fmt.Errorf("mic reclaimed: %w", audio.ErrDevice))
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxkey/pkg/audio"
)

// Source is a mock implementation of [audio.Source]. Frames are delivered in
// the order they were pushed; Read blocks while the queue is empty.
type Source struct {
	mu sync.Mutex

	// FormatResult is returned by Format. Defaults to [audio.Mono16k].
	FormatResult audio.Format

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StopErr, if non-nil, is returned by Stop.
	StopErr error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountRead records how many times Read returned a frame.
	CallCountRead int

	frames  chan audio.Frame
	errs    chan error
	stopped chan struct{}
	once    sync.Once
}

// NewSource returns a Source whose frame queue holds up to capacity frames.
func NewSource(capacity int) *Source {
	return &Source{
		FormatResult: audio.Mono16k,
		frames:       make(chan audio.Frame, capacity),
		errs:         make(chan error, 1),
		stopped:      make(chan struct{}),
	}
}

// Push queues a frame for delivery. It blocks when the queue is full.
func (s *Source) Push(f audio.Frame) {
	s.frames <- f
}

// Fail makes the next Read (after all queued frames) return err.
func (s *Source) Fail(err error) {
	s.errs <- err
}

// Stopped returns a channel closed once Stop has been called.
func (s *Source) Stopped() <-chan struct{} { return s.stopped }

// Format implements [audio.Source].
func (s *Source) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FormatResult
}

// Start implements [audio.Source]. Returns StartErr.
func (s *Source) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	return s.StartErr
}

// Read implements [audio.Source]. Queued frames take precedence over a
// pending failure; a stopped source returns [audio.ErrStopped].
func (s *Source) Read(ctx context.Context) (audio.Frame, error) {
	select {
	case <-s.stopped:
		return audio.Frame{}, audio.ErrStopped
	default:
	}
	select {
	case f := <-s.frames:
		s.mu.Lock()
		s.CallCountRead++
		s.mu.Unlock()
		return f, nil
	default:
	}
	select {
	case f := <-s.frames:
		s.mu.Lock()
		s.CallCountRead++
		s.mu.Unlock()
		return f, nil
	case err := <-s.errs:
		return audio.Frame{}, err
	case <-s.stopped:
		return audio.Frame{}, audio.ErrStopped
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	}
}

// Stop implements [audio.Source]. Returns StopErr.
func (s *Source) Stop() error {
	s.once.Do(func() { close(s.stopped) })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStop++
	return s.StopErr
}

// StopCalls returns the number of Stop calls. Thread-safe.
func (s *Source) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountStop
}

// ReadCalls returns the number of frames handed out by Read. Thread-safe.
func (s *Source) ReadCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountRead
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)
