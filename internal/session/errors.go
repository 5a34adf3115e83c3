package session

import (
	"errors"

	"github.com/MrWong99/voxkey/pkg/audio"
)

// Error taxonomy. Listener errors and Result errors wrap exactly one of
// these; use errors.Is to classify.
var (
	// ErrModelNotReady means model files are missing or invalid, or the
	// engine or stream could not be created. Fatal to the session.
	ErrModelNotReady = errors.New("session: model not ready")

	// ErrAudioPermissionDenied means the capture device refused access.
	// Fatal to Start.
	ErrAudioPermissionDenied = audio.ErrPermissionDenied

	// ErrAudioDevice means capture failed mid-session. The session closes
	// without a final transcript.
	ErrAudioDevice = audio.ErrDevice

	// ErrDecodeFailure marks a failed decode iteration. It is logged and the
	// loop aborted; the session keeps going with the text decoded so far.
	ErrDecodeFailure = errors.New("session: decode failure")

	// ErrEmptyResult is returned by Result when the final transcript is
	// blank.
	ErrEmptyResult = errors.New("session: empty result")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrNotFinished is returned by Result before the terminal event.
	ErrNotFinished = errors.New("session: not finished")

	// ErrCancelled is returned by Result for a session stopped before it
	// started.
	ErrCancelled = errors.New("session: cancelled before start")
)

// ErrorKind returns the metric and history label for err.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelNotReady):
		return "model_not_ready"
	case errors.Is(err, ErrAudioPermissionDenied):
		return "audio_permission_denied"
	case errors.Is(err, ErrAudioDevice):
		return "audio_device"
	case errors.Is(err, ErrDecodeFailure):
		return "decode_failure"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "other"
	}
}
