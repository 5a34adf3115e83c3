// Package audio defines the capture contract and PCM helpers shared by the
// recognition core and its audio adapters.
//
// The primary abstraction is [Source]: a capture device that, once started,
// delivers fixed-duration PCM16LE mono frames on request. Implementations are
// provided by adapter packages (audio/portaudio for a local microphone, the
// WebSocket server for remote clients, audio/mock for tests). The interface is
// intentionally narrow to keep the session engine decoupled from devices.
package audio

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned by [Source.Start] when the platform
	// refuses access to the capture device.
	ErrPermissionDenied = errors.New("audio: permission denied")

	// ErrDevice wraps device-level failures reported mid-capture, e.g. the
	// microphone being reclaimed by the operating system.
	ErrDevice = errors.New("audio: device error")

	// ErrStopped is returned by [Source.Read] once [Source.Stop] was called.
	// It is not a failure: it marks the orderly end of capture.
	ErrStopped = errors.New("audio: source stopped")
)

// Source is a capture device delivering PCM frames.
//
// Start must be called once before Read. Read blocks until the next frame is
// available, ctx is cancelled, or the source is stopped. Stop may be called
// from any goroutine, more than once, and unblocks a pending Read with
// [ErrStopped].
type Source interface {
	// Format reports the format of the frames this source delivers.
	Format() Format

	// Start opens the device and begins capture. Returns an error wrapping
	// [ErrPermissionDenied] when access is refused.
	Start(ctx context.Context) error

	// Read returns the next captured frame. Device failures are reported as
	// errors wrapping [ErrDevice].
	Read(ctx context.Context) (Frame, error)

	// Stop ends capture and releases the device. Safe to call more than once.
	Stop() error
}
