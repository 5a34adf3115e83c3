package session

import (
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voxkey/pkg/audio"
)

// event is one recorded listener callback.
type event struct {
	kind string
	text string
	err  error
}

// recorder is a Listener that records every callback except amplitude,
// which it only counts.
type recorder struct {
	mu         sync.Mutex
	events     []event
	amplitudes int
	terminal   chan struct{}
	once       sync.Once
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan struct{})}
}

func (r *recorder) add(e event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if e.kind == "final" || e.kind == "error" {
		r.once.Do(func() { close(r.terminal) })
	}
}

func (r *recorder) OnPartial(text string) { r.add(event{kind: "partial", text: text}) }
func (r *recorder) OnFinal(text string)   { r.add(event{kind: "final", text: text}) }
func (r *recorder) OnError(err error)     { r.add(event{kind: "error", err: err}) }
func (r *recorder) OnStopped()            { r.add(event{kind: "stopped"}) }
func (r *recorder) OnAmplitude(float64) {
	r.mu.Lock()
	r.amplitudes++
	r.mu.Unlock()
}

func (r *recorder) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) index(kind string) int {
	for i, e := range r.snapshot() {
		if e.kind == kind {
			return i
		}
	}
	return -1
}

// pcm returns n samples where sample i has value base+i, wrapping in int16.
func pcm(n, base int) []byte {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16((base + i) % 30000)
	}
	return audio.FromInt16(samples)
}

func frame(data []byte) audio.Frame {
	return audio.Frame{Data: data, SampleRate: audio.SampleRate, Channels: audio.Channels}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("session did not finish, state %s", s.State())
	}
}

func pcmFloats(b []byte) []float32 {
	return audio.ToFloat32(b)
}
