package server

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/MrWong99/voxkey/pkg/audio"
)

// remoteSource is an [audio.Source] fed by a WebSocket client. The connection
// reader pushes binary messages as frames; a stop control message or a lost
// connection ends the stream after all queued frames were read.
type remoteSource struct {
	frames  chan []byte
	stopped chan struct{}

	mu      sync.Mutex
	endErr  error
	ended   bool
	elapsed time.Duration

	stopOnce sync.Once
}

func newRemoteSource(queue int) *remoteSource {
	return &remoteSource{
		frames:  make(chan []byte, queue),
		stopped: make(chan struct{}),
	}
}

// push queues one client message. It blocks while the queue is full so that a
// slow decoder applies backpressure to the socket. It reports false once the
// source no longer accepts audio.
func (s *remoteSource) push(ctx context.Context, data []byte) bool {
	s.mu.Lock()
	ended := s.ended
	s.mu.Unlock()
	if ended {
		return false
	}
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.frames <- data:
		return true
	case <-s.stopped:
		return false
	case <-ctx.Done():
		return false
	}
}

// finish ends the stream. err is returned by Read once the queue is drained;
// nil means an orderly end of input. Only the first call has an effect, and
// only one goroutine (the connection reader) may call push and finish.
func (s *remoteSource) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if err == nil {
		err = io.EOF
	}
	s.ended = true
	s.endErr = err
	close(s.frames)
}

func (s *remoteSource) Format() audio.Format { return audio.Mono16k }

func (s *remoteSource) Start(context.Context) error { return nil }

func (s *remoteSource) Read(ctx context.Context) (audio.Frame, error) {
	select {
	case <-s.stopped:
		return audio.Frame{}, audio.ErrStopped
	default:
	}
	select {
	case data, ok := <-s.frames:
		if !ok {
			s.mu.Lock()
			defer s.mu.Unlock()
			return audio.Frame{}, s.endErr
		}
		s.mu.Lock()
		ts := s.elapsed
		s.elapsed += audio.BytesDuration(len(data), audio.SampleRate, audio.Channels)
		s.mu.Unlock()
		return audio.Frame{
			Data:       data,
			SampleRate: audio.SampleRate,
			Channels:   audio.Channels,
			Timestamp:  ts,
		}, nil
	case <-s.stopped:
		return audio.Frame{}, audio.ErrStopped
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	}
}

// Stop unblocks pending reads. The connection itself stays open until the
// session delivered its terminal event.
func (s *remoteSource) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	return nil
}

var _ audio.Source = (*remoteSource)(nil)
