package session

import "time"

// Throttle decides whether an interim transcript is worth emitting: the text
// must differ from the last emitted one and at least Interval must have
// passed since that emission.
type Throttle struct {
	Interval time.Duration

	last   string
	lastAt time.Time
}

// Allow reports whether text may be emitted at now, and records it if so.
func (t *Throttle) Allow(text string, now time.Time) bool {
	if text == t.last {
		return false
	}
	if !t.lastAt.IsZero() && now.Sub(t.lastAt) < t.Interval {
		return false
	}
	t.last = text
	t.lastAt = now
	return true
}
