// Package session implements the streaming recognition session: one
// utterance from capture start to final transcript.
//
// A [Session] coordinates three goroutines. The capture goroutine reads
// frames from the [audio.Source] into a bounded channel. The worker goroutine
// checks the format, reports amplitude, consults the voice activity detector
// and delivers the frame. The load goroutine prepares the model and creates
// the decode stream. Until the stream exists, delivered audio goes into a
// bounded [Prebuffer]; once it attaches, the prebuffer is drained in arrival
// order before any live frame.
//
// A single mutex guards the state, the decode stream and the prebuffer, and
// is held for every stream access. The session closes exactly once: the
// first of Stop, a VAD stop, a capture error or a load failure decides the
// close reason, and exactly one terminal event (OnFinal or OnError) follows.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voxkey/internal/model"
	"github.com/MrWong99/voxkey/internal/observe"
	"github.com/MrWong99/voxkey/internal/vad"
	"github.com/MrWong99/voxkey/pkg/audio"
	"github.com/MrWong99/voxkey/pkg/provider/asr"
)

const (
	// DefaultStreamDecodeCap bounds decode iterations per delivered chunk.
	DefaultStreamDecodeCap = 8

	// DefaultFinalDecodeCap bounds decode iterations when finalizing.
	DefaultFinalDecodeCap = 64

	// DefaultTrailingPad is the silence appended before end-of-input so the
	// decoder flushes its look-ahead.
	DefaultTrailingPad = 600 * time.Millisecond

	frameQueueSize = 32
)

// Models is the slice of the model manager a session uses.
type Models interface {
	Prepare(ctx context.Context, cfg asr.ModelConfig) error
	CreateStream() (asr.Stream, error)
	ScheduleAutoUnload(k model.KeepAlive)
}

// VoiceDetector classifies captured chunks. [vad.Detector] implements it.
type VoiceDetector interface {
	Analyze(frame []byte) vad.Result
}

// Processor rewrites a final transcript, e.g. vocabulary correction or AI
// polishing. On error the session keeps the unprocessed text.
type Processor interface {
	Process(ctx context.Context, text string) (string, error)
}

// Deps are the collaborators of a session.
type Deps struct {
	Source   audio.Source
	Models   Models
	Listener Listener

	// VAD is optional. Without it the session only stops on Stop or at
	// the end of the source.
	VAD VoiceDetector

	// Punctuator is optional and runs on the final text only.
	Punctuator asr.Punctuator

	// Processors run in order on the final text, after punctuation.
	Processors []Processor

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Config tunes one session.
type Config struct {
	// Model selects the engine to prepare.
	Model asr.ModelConfig

	// KeepAlive is applied to the model once the session is done with it.
	KeepAlive model.KeepAlive

	// FrameInterval is the minimum time between two partials. Zero only
	// suppresses duplicate text.
	FrameInterval time.Duration

	// PrebufferBytes bounds the prebuffer. Zero selects
	// [DefaultPrebufferBytes].
	PrebufferBytes int

	// StreamDecodeCap and FinalDecodeCap bound the decode loops. Zero
	// selects the defaults.
	StreamDecodeCap int
	FinalDecodeCap  int

	// TrailingPad is the silence appended before end-of-input. Zero selects
	// [DefaultTrailingPad]; negative disables padding.
	TrailingPad time.Duration
}

func (c *Config) applyDefaults() {
	if c.StreamDecodeCap <= 0 {
		c.StreamDecodeCap = DefaultStreamDecodeCap
	}
	if c.FinalDecodeCap <= 0 {
		c.FinalDecodeCap = DefaultFinalDecodeCap
	}
	if c.TrailingPad == 0 {
		c.TrailingPad = DefaultTrailingPad
	}
}

// Session is one utterance. Create it with [New], run it with Start and end
// it with Stop. All methods are safe for concurrent use.
type Session struct {
	id         string
	src        audio.Source
	models     Models
	detector   VoiceDetector
	punct      asr.Punctuator
	processors []Processor
	metrics    *observe.Metrics
	log        *slog.Logger
	cfg        Config
	events     *dispatcher

	mu            sync.Mutex
	state         State
	reason        closeReason
	stream        asr.Stream
	prebuf        *Prebuffer
	throttle      Throttle
	captureDone   bool
	srcStarted    bool
	drained       bool
	terminal      bool
	resultText    string
	resultErr     error
	rejectLogged  bool
	stopRequested time.Time

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	frames chan audio.Frame
	wg     sync.WaitGroup
	done   chan struct{}

	// srcEnded is set when the source ran out of audio; the worker stops
	// the session once every queued frame was delivered.
	srcEnded atomic.Bool
}

// New returns an idle session.
func New(deps Deps, cfg Config) *Session {
	cfg.applyDefaults()
	id := uuid.NewString()

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	listener := deps.Listener
	if listener == nil {
		listener = ListenerFuncs{}
	}

	return &Session{
		id:         id,
		src:        deps.Source,
		models:     deps.Models,
		detector:   deps.VAD,
		punct:      deps.Punctuator,
		processors: deps.Processors,
		metrics:    metrics,
		log:        log.With("session_id", id, "backend", string(cfg.Model.Backend)),
		cfg:        cfg,
		events:     newDispatcher(listener),
		prebuf:     NewPrebuffer(cfg.PrebufferBytes),
		throttle:   Throttle{Interval: cfg.FrameInterval},
		stopCh:     make(chan struct{}),
		frames:     make(chan audio.Frame, frameQueueSize),
		done:       make(chan struct{}),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed after the terminal event was delivered and every session
// goroutine returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the final transcript. It returns [ErrNotFinished] before
// the terminal event, [ErrEmptyResult] for a blank final, [ErrCancelled] when
// Stop came before Start, and the reported error after OnError.
func (s *Session) Result() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.terminal {
		return "", ErrNotFinished
	}
	return s.resultText, s.resultErr
}

// Start begins capture and loads the model in the background. The session
// enters Prebuffering even when the model is warm. A capture start failure
// is returned directly and no listener event is emitted; later failures are
// reported through OnError.
//
// Cancelling ctx stops capture like Stop; model loading is not cancelled so
// the utterance is never dropped.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = Prebuffering
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	err := s.src.Start(s.ctx)
	if err != nil {
		if !errors.Is(err, audio.ErrPermissionDenied) && !errors.Is(err, audio.ErrDevice) {
			err = fmt.Errorf("%w: %w", ErrAudioDevice, err)
		}
		err = fmt.Errorf("session: start capture: %w", err)
		s.mu.Lock()
		s.state = Closed
		s.reason = reasonStartFailed
		s.terminal = true
		s.resultErr = err
		s.mu.Unlock()
		s.cancel()
		s.metrics.RecordError(s.ctx, ErrorKind(err))
		s.log.Error("session: start failed", "err", err)
		close(s.done)
		return err
	}

	// A stop that arrived while the source was starting left the source
	// running; stop it now.
	s.mu.Lock()
	s.srcStarted = true
	stopSrc := s.captureDone
	s.mu.Unlock()
	if stopSrc {
		s.stopSource()
	}

	s.metrics.ActiveSessions.Add(s.ctx, 1)
	s.log.Info("session: started", "prebuffer_bytes", s.prebuf.limit)

	go s.events.run()
	s.wg.Add(3)
	go s.capture()
	go s.work()
	go s.load()
	go s.closeWhenDone()
	return nil
}

// Stop ends capture and finalizes the utterance. It does not block; wait on
// Done for the terminal event. Safe to call any number of times.
func (s *Session) Stop() {
	s.requestStop(reasonStopped)
}

func (s *Session) closeWhenDone() {
	s.wg.Wait()
	s.cancel()
	s.events.close()
	<-s.events.done
	s.metrics.ActiveSessions.Add(context.Background(), -1)
	s.log.Debug("session: done")
	close(s.done)
}

// requestStop handles Stop and VAD stops.
func (s *Session) requestStop(reason closeReason) {
	s.mu.Lock()
	if s.reason != reasonNone {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case Idle:
		s.state = Closed
		s.reason = reason
		s.terminal = true
		s.resultErr = ErrCancelled
		s.mu.Unlock()
		close(s.done)
		return
	case Prebuffering:
		// The load goroutine finalizes once the stream attaches.
		s.reason = reason
		s.stopRequested = time.Now()
		stopSrc := s.endCaptureLocked()
		s.mu.Unlock()
		s.log.Info("session: stop while prebuffering", "reason", reason)
		if stopSrc {
			s.stopSource()
		}
		return
	case Streaming:
		// The worker drains the queued frames into the stream and then
		// finalizes.
		s.reason = reason
		s.state = Finalizing
		s.stopRequested = time.Now()
		stopSrc := s.endCaptureLocked()
		s.mu.Unlock()
		s.log.Info("session: stopping", "reason", reason)
		if stopSrc {
			s.stopSource()
		}
	default:
		s.mu.Unlock()
	}
}

// fail closes the session silently with err as its terminal event.
func (s *Session) fail(reason closeReason, err error) {
	s.mu.Lock()
	switch {
	case s.terminal:
		s.mu.Unlock()
		return
	case s.reason == reasonNone:
	case s.state == Prebuffering && !s.reason.silent():
		// A stop is pending on the model load; the failure wins.
	default:
		s.mu.Unlock()
		return
	}
	s.reason = reason
	st := s.stream
	s.stream = nil
	s.state = Closed
	s.prebuf.Drain()
	stopSrc := s.endCaptureLocked()
	s.emitErrorLocked(err)
	s.mu.Unlock()

	s.log.Error("session: failed", "reason", reason, "err", err)
	if stopSrc {
		s.stopSource()
	}
	if st != nil {
		s.releaseStream(st)
	}
}

// endCaptureLocked marks capture as ended and queues OnStopped ahead of any
// terminal event. It reports whether the caller must stop the source; a
// source that is still starting is stopped by Start instead.
func (s *Session) endCaptureLocked() bool {
	if s.captureDone {
		return false
	}
	s.captureDone = true
	close(s.stopCh)
	s.events.post(func(l Listener) { l.OnStopped() })
	return s.srcStarted
}

func (s *Session) stopSource() {
	if err := s.src.Stop(); err != nil {
		s.log.Warn("session: stop capture", "err", err)
	}
}

func (s *Session) captureStopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// ---- capture ----------------------------------------------------------------

func (s *Session) capture() {
	defer s.wg.Done()
	defer close(s.frames)

	for {
		f, err := s.src.Read(s.ctx)
		if err != nil {
			switch {
			case s.captureStopped():
			case errors.Is(err, audio.ErrStopped), errors.Is(err, io.EOF):
				s.log.Debug("session: source ended")
				s.srcEnded.Store(true)
			case s.ctx.Err() != nil:
				s.requestStop(reasonStopped)
			default:
				if !errors.Is(err, audio.ErrDevice) {
					err = fmt.Errorf("%w: %w", ErrAudioDevice, err)
				}
				s.fail(reasonCaptureError, fmt.Errorf("session: capture: %w", err))
			}
			return
		}
		// A frame read before the stop is still queued when there is room.
		select {
		case s.frames <- f:
			continue
		default:
		}
		select {
		case s.frames <- f:
		case <-s.stopCh:
			return
		}
	}
}

// ---- worker -----------------------------------------------------------------

func (s *Session) work() {
	defer s.wg.Done()
	for f := range s.frames {
		s.handleFrame(f)
	}
	if s.srcEnded.Load() {
		s.requestStop(reasonStopped)
	}

	// Every queued frame is in the stream or the prebuffer now. A stream
	// that is still loading finalizes in attach.
	s.mu.Lock()
	s.drained = true
	ready := s.state == Finalizing && s.stream != nil
	s.mu.Unlock()
	if ready {
		s.finalize()
	}
}

func (s *Session) handleFrame(f audio.Frame) {
	if f.SampleRate != audio.SampleRate || f.Channels != audio.Channels || len(f.Data)%audio.BytesPerSample != 0 {
		s.reject(f)
		return
	}
	if len(f.Data) == 0 {
		return
	}

	s.mu.Lock()
	stopping := s.reason != reasonNone
	if !s.captureDone {
		level := audio.Amplitude(f.Data)
		s.events.post(func(l Listener) { l.OnAmplitude(level) })
	}
	s.mu.Unlock()

	if s.detector != nil && !stopping {
		if r := s.detector.Analyze(f.Data); r.ShouldStop {
			s.log.Debug("session: vad requested stop")
			s.requestStop(reasonVAD)
			return
		}
	}
	s.deliver(f.Data)
}

func (s *Session) reject(f audio.Frame) {
	s.metrics.FramesRejected.Add(s.ctx, 1)
	s.mu.Lock()
	first := !s.rejectLogged
	s.rejectLogged = true
	s.mu.Unlock()
	if first {
		s.log.Warn("session: rejecting frames in unsupported format",
			"sample_rate", f.SampleRate, "channels", f.Channels, "bytes", len(f.Data))
	}
}

// deliver routes one chunk by state: prebuffer while loading, decode while
// streaming or draining after a stop, drop once closed.
func (s *Session) deliver(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Prebuffering:
		if s.reason.silent() {
			return
		}
		if dropped := s.prebuf.Write(data); dropped > 0 {
			s.metrics.PrebufferDroppedBytes.Add(s.ctx, int64(dropped))
		}
	case Streaming:
		s.feedLocked(data, true)
	case Finalizing:
		if s.stream != nil {
			s.feedLocked(data, false)
		}
	}
}

// feedLocked pushes data into the stream, decodes and optionally emits a
// throttled partial.
func (s *Session) feedLocked(data []byte, emit bool) {
	s.stream.AcceptWaveform(audio.SampleRate, audio.ToFloat32(data))
	if err := s.decodeLocked(s.cfg.StreamDecodeCap, "stream"); err != nil {
		s.log.Warn("session: decode", "err", err)
	}
	if !emit {
		return
	}
	text := strings.TrimSpace(s.stream.Text())
	if s.throttle.Allow(text, time.Now()) {
		s.metrics.Partials.Add(s.ctx, 1)
		s.events.post(func(l Listener) { l.OnPartial(text) })
	}
}

// decodeLocked runs at most limit decode iterations. A failed iteration
// aborts the loop; text decoded so far is kept.
func (s *Session) decodeLocked(limit int, phase string) error {
	start := time.Now()
	defer func() { s.metrics.RecordDecode(s.ctx, phase, time.Since(start)) }()
	for i := 0; i < limit && s.stream.IsReady(); i++ {
		if err := s.stream.Decode(); err != nil {
			s.metrics.RecordError(s.ctx, ErrorKind(ErrDecodeFailure))
			return fmt.Errorf("%w: %w", ErrDecodeFailure, err)
		}
	}
	return nil
}

// ---- model load -------------------------------------------------------------

func (s *Session) load() {
	defer s.wg.Done()

	ctx := context.WithoutCancel(s.ctx)
	err := s.models.Prepare(ctx, s.cfg.Model)
	var st asr.Stream
	if err == nil {
		st, err = s.models.CreateStream()
	}
	if err != nil {
		s.fail(reasonStartFailed, fmt.Errorf("%w: %w", ErrModelNotReady, err))
		return
	}
	s.attach(st)
}

// attach installs the stream and drains the prebuffer into it. If a stop is
// pending the session finalizes right away without entering Streaming; if it
// already closed silently the stream is released unused.
func (s *Session) attach(st asr.Stream) {
	s.mu.Lock()
	if s.state != Prebuffering || s.reason.silent() {
		s.mu.Unlock()
		s.log.Debug("session: stream ready after close, releasing")
		s.releaseStream(st)
		return
	}

	s.stream = st
	pending := s.prebuf.Drain()
	stopping := s.reason != reasonNone
	drained := s.drained
	if stopping {
		s.state = Finalizing
	} else {
		s.state = Streaming
	}
	s.log.Debug("session: stream attached", "prebuffered_bytes", len(pending), "dropped_bytes", s.prebuf.Dropped())

	chunk := max(audio.DurationBytes(s.cfg.FrameInterval, audio.SampleRate, audio.Channels), 6400)
	for len(pending) > 0 {
		n := min(chunk, len(pending))
		s.feedLocked(pending[:n], !stopping)
		pending = pending[n:]
	}
	s.mu.Unlock()

	// While the worker still drains queued frames it finalizes itself.
	if stopping && drained {
		s.finalize()
	}
}

// ---- finalize ---------------------------------------------------------------

func (s *Session) finalize() {
	ctx, span := observe.StartSpan(context.WithoutCancel(s.ctx), "session.finalize")
	defer span.End()

	s.mu.Lock()
	st := s.stream
	if st == nil || s.state != Finalizing {
		s.mu.Unlock()
		return
	}
	if pad := s.cfg.TrailingPad; pad > 0 {
		st.AcceptWaveform(audio.SampleRate, make([]float32, int(pad*audio.SampleRate/time.Second)))
	}
	st.InputFinished()
	if err := s.decodeLocked(s.cfg.FinalDecodeCap, "final"); err != nil {
		observe.Fail(span, err)
		s.log.Warn("session: final decode", "err", err)
	}
	raw := strings.TrimSpace(st.Text())
	s.stream = nil
	s.state = Closed
	stoppedAt := s.stopRequested
	s.mu.Unlock()

	s.releaseStream(st)

	text := s.postProcess(ctx, raw)
	span.SetAttributes(attribute.Int("text.length", len(text)))

	s.mu.Lock()
	s.emitFinalLocked(text)
	s.mu.Unlock()

	if !stoppedAt.IsZero() {
		s.metrics.FinalizeDuration.Record(ctx, time.Since(stoppedAt).Seconds())
	}
	s.log.Info("session: final", "chars", len(text))
}

func (s *Session) postProcess(ctx context.Context, text string) string {
	if text == "" {
		return text
	}
	if s.punct != nil {
		text = s.punct.AddPunctuation(text)
	}
	for _, p := range s.processors {
		out, err := p.Process(ctx, text)
		if err != nil {
			s.log.Warn("session: post-processing failed, keeping text", "err", err)
			continue
		}
		text = out
	}
	return text
}

// releaseStream closes the stream and applies the keep-alive policy, which
// also re-arms the unload timer after each use.
func (s *Session) releaseStream(st asr.Stream) {
	if err := st.Close(); err != nil {
		s.log.Warn("session: release stream", "err", err)
	}
	s.models.ScheduleAutoUnload(s.cfg.KeepAlive)
}

func (s *Session) emitFinalLocked(text string) {
	if s.terminal {
		return
	}
	s.terminal = true
	s.resultText = text
	if text == "" {
		s.resultErr = ErrEmptyResult
	}
	s.metrics.Finals.Add(s.ctx, 1)
	s.events.post(func(l Listener) { l.OnFinal(text) })
}

func (s *Session) emitErrorLocked(err error) {
	if s.terminal {
		return
	}
	s.terminal = true
	s.resultErr = err
	s.metrics.RecordError(s.ctx, ErrorKind(err))
	s.events.post(func(l Listener) { l.OnError(err) })
}
