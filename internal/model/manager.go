// Package model owns the expensive decoder engines.
//
// A [Manager] holds at most one loaded [asr.Engine] for its backend family.
// [Manager.Prepare] loads or reuses the engine keyed by [asr.ModelConfig]
// equality, [Manager.CreateStream] hands out per-utterance streams, and
// [Manager.ScheduleAutoUnload] applies the keep-alive policy once a session
// is done.
//
// Engines are reference counted by their outstanding streams. An engine that
// is replaced or unloaded while a stream is still open is closed when that
// stream is closed, so a racing reload never frees a model under a live
// decoder.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voxkey/internal/observe"
	"github.com/MrWong99/voxkey/pkg/provider/asr"
)

var (
	// ErrNotPrepared is returned by CreateStream when no engine is loaded.
	ErrNotPrepared = errors.New("model: no engine prepared")

	// ErrClosed is returned by Prepare after Close.
	ErrClosed = errors.New("model: manager is closed")
)

// Option is a functional option for [New].
type Option func(*Manager)

// WithOnLoadStart registers fn to run before an engine is constructed. It is
// not called when Prepare reuses the cached engine.
func WithOnLoadStart(fn func(cfg asr.ModelConfig)) Option {
	return func(m *Manager) { m.onLoadStart = fn }
}

// WithOnLoadDone registers fn to run after a load attempt finished. err is
// nil on success.
func WithOnLoadDone(fn func(cfg asr.ModelConfig, took time.Duration, err error)) Option {
	return func(m *Manager) { m.onLoadDone = fn }
}

// WithOnUnload registers fn to run after an engine was released.
func WithOnUnload(fn func(cfg asr.ModelConfig)) Option {
	return func(m *Manager) { m.onUnload = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

type loadedEngine struct {
	engine  asr.Engine
	cfg     asr.ModelConfig
	refs    int
	retired bool
}

// Manager is the resource manager for one backend family. All methods are
// safe for concurrent use.
type Manager struct {
	backend asr.Backend
	load    asr.Loader
	log     *slog.Logger

	onLoadStart func(asr.ModelConfig)
	onLoadDone  func(asr.ModelConfig, time.Duration, error)
	onUnload    func(asr.ModelConfig)

	// prepareMu serialises Prepare so concurrent callers with the same
	// config observe one load.
	prepareMu sync.Mutex

	mu      sync.Mutex
	current *loadedEngine
	timer   *time.Timer
	gen     uint64
	closed  bool
}

// New returns a Manager that loads engines for backend with load.
func New(backend asr.Backend, load asr.Loader, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		load:    load,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("backend", string(backend))
	return m
}

// Backend returns the family this manager serves.
func (m *Manager) Backend() asr.Backend { return m.backend }

// Prepare makes an engine for cfg available. When the cached engine was
// loaded from an equal config it returns immediately without callbacks;
// otherwise the cached engine is released and a new one is loaded.
// Any pending auto-unload is cancelled either way.
func (m *Manager) Prepare(ctx context.Context, cfg asr.ModelConfig) error {
	if cfg.Backend != m.backend {
		return fmt.Errorf("model: prepare: backend %q does not match manager %q", cfg.Backend, m.backend)
	}

	m.prepareMu.Lock()
	defer m.prepareMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.cancelTimerLocked()
	if m.current != nil && m.current.cfg.Equal(cfg) {
		m.mu.Unlock()
		return nil
	}
	released := m.retireLocked()
	m.mu.Unlock()
	m.notifyUnload(released)

	ctx, span := observe.StartSpan(ctx, "model.prepare", attribute.String("backend", string(m.backend)))
	defer span.End()

	if m.onLoadStart != nil {
		m.onLoadStart(cfg)
	}
	m.log.Info("model: loading engine", "language", cfg.Language, "threads", cfg.NumThreads)

	start := time.Now()
	engine, err := m.load(ctx, cfg.Clone())
	took := time.Since(start)
	if err == nil && engine == nil {
		err = errors.New("loader returned no engine")
	}

	if m.onLoadDone != nil {
		m.onLoadDone(cfg, took, err)
	}
	if err != nil {
		observe.Fail(span, err)
		m.log.Error("model: load failed", "took", took, "err", err)
		return fmt.Errorf("model: load %s: %w", m.backend, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if cerr := engine.Close(); cerr != nil {
			m.log.Warn("model: close engine after shutdown", "err", cerr)
		}
		return ErrClosed
	}
	m.current = &loadedEngine{engine: engine, cfg: cfg.Clone()}
	m.mu.Unlock()

	m.log.Info("model: engine ready", "took", took)
	return nil
}

// CreateStream returns a new stream on the cached engine. The stream keeps
// the engine alive until it is closed.
func (m *Manager) CreateStream() (asr.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	le := m.current
	if le == nil {
		return nil, ErrNotPrepared
	}
	st, err := le.engine.NewStream()
	if err != nil {
		return nil, fmt.Errorf("model: create stream: %w", err)
	}
	le.refs++
	return &managedStream{Stream: st, release: func() { m.release(le) }}, nil
}

// Loaded returns the config of the cached engine.
func (m *Manager) Loaded() (asr.ModelConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return asr.ModelConfig{}, false
	}
	return m.current.cfg.Clone(), true
}

// ScheduleAutoUnload cancels any pending unload and applies k: forever does
// nothing further, immediate unloads now, keep-for arms a timer. A timer that
// fires while streams are still open leaves the engine loaded.
func (m *Manager) ScheduleAutoUnload(k KeepAlive) {
	m.mu.Lock()
	m.cancelTimerLocked()
	switch k.Mode {
	case KeepForever:
		m.mu.Unlock()
		return
	case KeepFor:
		if k.Duration > 0 {
			gen := m.gen
			m.timer = time.AfterFunc(k.Duration, func() { m.expire(gen) })
			m.mu.Unlock()
			return
		}
	}
	released := m.retireLocked()
	m.mu.Unlock()
	m.notifyUnload(released)
}

// Unload releases the cached engine. If streams from it are still open the
// engine is closed when the last of them is closed.
func (m *Manager) Unload() {
	m.mu.Lock()
	m.cancelTimerLocked()
	released := m.retireLocked()
	m.mu.Unlock()
	m.notifyUnload(released)
}

// Close unloads the engine and rejects further Prepare calls.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.cancelTimerLocked()
	released := m.retireLocked()
	m.mu.Unlock()
	m.notifyUnload(released)
	return nil
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.current == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	if m.current.refs > 0 {
		m.mu.Unlock()
		m.log.Debug("model: keep-alive expired with open streams, keeping engine")
		return
	}
	released := m.retireLocked()
	m.mu.Unlock()
	m.log.Info("model: keep-alive expired")
	m.notifyUnload(released)
}

// cancelTimerLocked stops the pending unload and invalidates a callback that
// already fired but has not taken the lock yet.
func (m *Manager) cancelTimerLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// retireLocked detaches the current engine and closes it if no stream holds
// it. It returns the config of a closed engine, if any.
func (m *Manager) retireLocked() *asr.ModelConfig {
	le := m.current
	if le == nil {
		return nil
	}
	m.current = nil
	le.retired = true
	if le.refs > 0 {
		m.log.Debug("model: engine retired with open streams", "streams", le.refs)
		return nil
	}
	m.closeEngine(le)
	return &le.cfg
}

func (m *Manager) release(le *loadedEngine) {
	m.mu.Lock()
	le.refs--
	if !le.retired || le.refs > 0 {
		m.mu.Unlock()
		return
	}
	m.closeEngine(le)
	m.mu.Unlock()
	m.notifyUnload(&le.cfg)
}

func (m *Manager) closeEngine(le *loadedEngine) {
	if err := le.engine.Close(); err != nil {
		m.log.Warn("model: close engine", "err", err)
	}
}

func (m *Manager) notifyUnload(cfg *asr.ModelConfig) {
	if cfg == nil {
		return
	}
	m.log.Info("model: engine unloaded")
	if m.onUnload != nil {
		m.onUnload(*cfg)
	}
}

type managedStream struct {
	asr.Stream
	once    sync.Once
	release func()
}

func (s *managedStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.Stream.Close()
		s.release()
	})
	return err
}
