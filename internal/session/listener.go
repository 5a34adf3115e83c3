package session

import "sync"

// Listener receives session events. Callbacks run one at a time on a
// dedicated goroutine in emission order and never under session locks, so a
// listener may call back into the session.
type Listener interface {
	// OnPartial delivers an interim transcript.
	OnPartial(text string)

	// OnFinal delivers the final transcript. Terminal.
	OnFinal(text string)

	// OnError reports a failure. Terminal.
	OnError(err error)

	// OnStopped reports that audio capture ended. Recognition may continue.
	OnStopped()

	// OnAmplitude reports the input level of a captured chunk in [0, 1].
	OnAmplitude(level float64)
}

// ListenerFuncs adapts optional functions to a [Listener]. Nil fields are
// ignored.
type ListenerFuncs struct {
	Partial   func(text string)
	Final     func(text string)
	Error     func(err error)
	Stopped   func()
	Amplitude func(level float64)
}

func (f ListenerFuncs) OnPartial(text string) {
	if f.Partial != nil {
		f.Partial(text)
	}
}

func (f ListenerFuncs) OnFinal(text string) {
	if f.Final != nil {
		f.Final(text)
	}
}

func (f ListenerFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f ListenerFuncs) OnStopped() {
	if f.Stopped != nil {
		f.Stopped()
	}
}

func (f ListenerFuncs) OnAmplitude(level float64) {
	if f.Amplitude != nil {
		f.Amplitude(level)
	}
}

var _ Listener = ListenerFuncs{}

// dispatcher delivers events in order on its own goroutine. post never
// blocks, so emitters may hold locks.
type dispatcher struct {
	l Listener

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func(Listener)
	closed bool
	done   chan struct{}
}

func newDispatcher(l Listener) *dispatcher {
	d := &dispatcher{l: l, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *dispatcher) post(fn func(Listener)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
}

// close stops accepting events; queued events are still delivered.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, fn := range batch {
			fn(d.l)
		}
	}
}
