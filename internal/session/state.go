package session

// State is the lifecycle phase of a [Session]. Transitions only move
// forward; a new utterance needs a new Session.
type State int

const (
	// Idle: created, not started.
	Idle State = iota

	// Prebuffering: capturing into the prebuffer while the model loads.
	Prebuffering

	// Streaming: feeding captured audio into the decode stream.
	Streaming

	// Finalizing: flushing the stream for the final transcript.
	Finalizing

	// Closed: terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Prebuffering:
		return "prebuffering"
	case Streaming:
		return "streaming"
	case Finalizing:
		return "finalizing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// closeReason records why the session is closing. The first reason wins,
// except that a capture error replaces a stop while the model still loads.
type closeReason int

const (
	reasonNone closeReason = iota
	reasonStopped
	reasonVAD
	reasonCaptureError
	reasonStartFailed
)

func (r closeReason) String() string {
	switch r {
	case reasonStopped:
		return "stopped"
	case reasonVAD:
		return "vad"
	case reasonCaptureError:
		return "capture_error"
	case reasonStartFailed:
		return "start_failed"
	default:
		return "none"
	}
}

// silent reports whether the session closes without a final transcript.
func (r closeReason) silent() bool {
	return r == reasonCaptureError || r == reasonStartFailed
}
