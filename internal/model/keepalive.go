package model

import (
	"fmt"
	"time"
)

// KeepAliveMode selects what happens to a loaded engine after a session
// finished with it.
type KeepAliveMode int

const (
	// UnloadImmediately releases the engine as soon as it is idle.
	UnloadImmediately KeepAliveMode = iota

	// KeepFor releases the engine after it has been idle for the duration.
	KeepFor

	// KeepForever never releases the engine automatically.
	KeepForever
)

// KeepAlive is the model retention policy.
type KeepAlive struct {
	Mode     KeepAliveMode
	Duration time.Duration
}

// Immediate returns the unload-immediately policy.
func Immediate() KeepAlive { return KeepAlive{Mode: UnloadImmediately} }

// For returns a policy that keeps the engine for d of idle time. d <= 0 is
// the same as [Immediate].
func For(d time.Duration) KeepAlive {
	if d <= 0 {
		return Immediate()
	}
	return KeepAlive{Mode: KeepFor, Duration: d}
}

// Forever returns the keep-forever policy.
func Forever() KeepAlive { return KeepAlive{Mode: KeepForever} }

// KeepAliveFromMinutes converts the user-facing minutes setting: negative
// keeps the model forever, zero unloads immediately, positive keeps it for
// that many idle minutes.
func KeepAliveFromMinutes(minutes int) KeepAlive {
	switch {
	case minutes < 0:
		return Forever()
	case minutes == 0:
		return Immediate()
	default:
		return For(time.Duration(minutes) * time.Minute)
	}
}

func (k KeepAlive) String() string {
	switch k.Mode {
	case KeepForever:
		return "forever"
	case KeepFor:
		return fmt.Sprintf("keep-for(%s)", k.Duration)
	default:
		return "immediate"
	}
}
