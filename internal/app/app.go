// Package app wires the recognition subsystems into a running service.
//
// A [Service] owns one model manager per decoder family, the voice activity
// engine, the model locator and the final-text processing chain. Each call
// to StartSession builds a fresh [session.Session] on top of them. At most
// one session captures audio at a time: starting a new one stops the capture
// of the previous session, whose finalization continues in the background.
//
// For testing, inject mock implementations via functional options
// (WithRegistry, WithLocator, WithVADEngine, ...). When an option is not
// provided, New derives the collaborator from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxkey/internal/config"
	"github.com/MrWong99/voxkey/internal/locator"
	"github.com/MrWong99/voxkey/internal/model"
	"github.com/MrWong99/voxkey/internal/observe"
	"github.com/MrWong99/voxkey/internal/resilience"
	"github.com/MrWong99/voxkey/internal/session"
	"github.com/MrWong99/voxkey/internal/transcript"
	"github.com/MrWong99/voxkey/internal/transcript/polish"
	"github.com/MrWong99/voxkey/internal/vad"
	"github.com/MrWong99/voxkey/pkg/audio"
	"github.com/MrWong99/voxkey/pkg/history"
	"github.com/MrWong99/voxkey/pkg/provider/asr"
	vadprovider "github.com/MrWong99/voxkey/pkg/provider/vad"
)

// ErrClosed is returned by StartSession and Prepare after Shutdown.
var ErrClosed = errors.New("app: service is shut down")

// Locator resolves a model variant to its files. [locator.DirLocator]
// implements it.
type Locator interface {
	Locate(variant string) (locator.Paths, error)
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*Service)

// WithRegistry sets the registry the engine loaders, the VAD engine and
// the polishing clients are taken from. Defaults to an empty registry.
func WithRegistry(r *config.Registry) Option {
	return func(s *Service) { s.reg = r }
}

// WithLocator injects a model locator instead of a [locator.DirLocator]
// rooted at recognition.model_dir. An injected locator is kept across
// Reconfigure.
func WithLocator(l Locator) Option {
	return func(s *Service) { s.loc = l; s.ownLocator = false }
}

// WithVADEngine injects the frame classifier instead of creating one from
// the vad config section.
func WithVADEngine(e vadprovider.Engine) Option {
	return func(s *Service) { s.vadEngine = e }
}

// WithPunctuator sets the punctuation restorer applied to final text. If it
// implements io.Closer it is closed by Shutdown.
func WithPunctuator(p asr.Punctuator) Option {
	return func(s *Service) { s.punct = p }
}

// WithHistory records the outcome of every finished session in store.
func WithHistory(store history.Store) Option {
	return func(s *Service) { s.history = store }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service is the recognition service context. All methods are safe for
// concurrent use.
type Service struct {
	reg        *config.Registry
	loc        Locator
	ownLocator bool
	vadEngine  vadprovider.Engine
	punct      asr.Punctuator
	polisher   *polish.Polisher
	history    history.Store
	managers   map[asr.Backend]*model.Manager
	metrics    *observe.Metrics
	log        *slog.Logger

	mu       sync.Mutex
	cfg      *config.Config
	current  *session.Session
	busy     map[asr.Backend]int
	closed   bool
	sessions sync.WaitGroup

	shutdownOnce sync.Once
}

// New creates a Service from cfg. cfg must already be validated.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:        cfg,
		ownLocator: true,
		busy:       make(map[asr.Backend]int),
	}
	for _, o := range opts {
		o(s)
	}
	if s.reg == nil {
		s.reg = config.NewRegistry()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.loc == nil {
		s.loc = locator.NewDirLocator(cfg.Recognition.ModelDir)
	}

	if s.vadEngine == nil && cfg.VAD.Engine != "" {
		eng, err := s.reg.CreateVAD(cfg.VAD)
		if err != nil {
			return nil, fmt.Errorf("app: create vad engine: %w", err)
		}
		s.vadEngine = eng
	}

	if cfg.PostProcess.Polish.Enabled() {
		p, err := s.buildPolisher(cfg.PostProcess.Polish)
		if err != nil {
			return nil, err
		}
		s.polisher = p
	}

	s.managers = make(map[asr.Backend]*model.Manager)
	for _, backend := range s.reg.ASRBackends() {
		loader, err := s.reg.ASRLoader(backend)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		s.managers[backend] = model.New(backend, loader,
			model.WithLogger(s.log),
			model.WithOnLoadDone(func(_ asr.ModelConfig, took time.Duration, err error) {
				s.metrics.RecordModelLoad(context.Background(), string(backend), took, err)
			}),
			model.WithOnUnload(func(asr.ModelConfig) {
				s.metrics.RecordModelUnload(context.Background(), string(backend))
			}),
		)
	}
	if len(s.managers) == 0 {
		s.log.Warn("app: no decoder backends registered; every session will fail")
	}
	return s, nil
}

// buildPolisher creates the polishing client with its fallbacks, each
// behind a circuit breaker.
func (s *Service) buildPolisher(pc config.PolishConfig) (*polish.Polisher, error) {
	primary, err := s.reg.CreateLLM(pc.LLMEntry)
	if err != nil {
		return nil, fmt.Errorf("app: create polish client %q: %w", pc.Provider, err)
	}
	chain := resilience.NewChain(resilience.CircuitBreakerConfig{}, s.log).Add(entryName(pc.LLMEntry), primary)
	for i, entry := range pc.Fallbacks {
		p, err := s.reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("app: create polish fallback %d %q: %w", i, entry.Provider, err)
		}
		chain.Add(entryName(entry), p)
	}
	s.log.Info("app: polishing enabled", "backends", chain.Backends())
	opts := []polish.Option{
		polish.WithPrompt(pc.Prompt),
		polish.WithTimeout(pc.Timeout),
		polish.WithMetrics(s.metrics),
	}
	switch {
	case pc.MinOverlap < 0:
		opts = append(opts, polish.WithMinOverlap(0))
	case pc.MinOverlap > 0:
		opts = append(opts, polish.WithMinOverlap(pc.MinOverlap))
	}
	return polish.New(chain, opts...), nil
}

func entryName(e config.LLMEntry) string {
	return e.Provider + "/" + e.Model
}

// Config returns the active config.
func (s *Service) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Current returns the most recently started session that is not done yet,
// or nil.
func (s *Service) Current() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Loaded returns the model files of every loaded engine keyed by decoder
// family.
func (s *Service) Loaded() map[string][]string {
	out := make(map[string][]string)
	for backend, mgr := range s.managers {
		if cfg, ok := mgr.Loaded(); ok {
			out[string(backend)] = cfg.ModelPaths
		}
	}
	return out
}

// resolve locates the configured variant and returns its model config and
// manager. Failures wrap [session.ErrModelNotReady].
func (s *Service) resolve(cfg *config.Config, loc Locator) (asr.ModelConfig, *model.Manager, error) {
	r := cfg.Recognition
	paths, err := loc.Locate(r.Variant)
	if err != nil {
		return asr.ModelConfig{}, nil, fmt.Errorf("app: %w: %w", session.ErrModelNotReady, err)
	}
	mgr, ok := s.managers[paths.Backend]
	if !ok {
		return asr.ModelConfig{}, nil, fmt.Errorf("app: %w: %w: asr/%q", session.ErrModelNotReady, config.ErrProviderNotRegistered, paths.Backend)
	}
	return asr.ModelConfig{
		Backend:     paths.Backend,
		TokensPath:  paths.TokensPath,
		ModelPaths:  paths.ModelPaths,
		Language:    r.Language,
		Provider:    r.Provider,
		NumThreads:  r.NumThreads,
		ITNRulePath: r.ITNRulePath,
		Vocabulary:  r.Vocabulary,
	}, mgr, nil
}

// processors returns the final-text chain for cfg: vocabulary correction,
// then polishing.
func (s *Service) processors(cfg *config.Config) []session.Processor {
	var procs []session.Processor
	vocab := cfg.Recognition.Vocabulary
	if len(vocab) > 0 {
		procs = append(procs, transcript.NewVocabularyCorrector(vocab))
	}
	if s.polisher != nil {
		procs = append(procs, s.polisher.WithTerms(vocab))
	}
	return procs
}

// newDetector opens a classifier session for one utterance. A nil handle
// means the session runs without automatic stopping.
func (s *Service) newDetector(cfg *config.Config) (*vad.Detector, vadprovider.SessionHandle) {
	if s.vadEngine == nil {
		return nil, nil
	}
	handle, err := s.vadEngine.NewSession(vad.ClassifierConfig(cfg.VAD.Sensitivity))
	if err != nil {
		s.log.Warn("app: vad session unavailable, stop manually", "err", err)
		return nil, nil
	}
	return vad.NewDetector(handle, vad.Config{
		SensitivityLevel: cfg.VAD.Sensitivity,
		Window:           cfg.VAD.Window(),
	}, vad.WithLogger(s.log)), handle
}

// StartSession starts a recognition session capturing from src. Model
// resolution happens before capture: a missing model returns an error
// wrapping [session.ErrModelNotReady] and no listener event is emitted.
// The previous session's capture is stopped; its finalization continues.
func (s *Service) StartSession(ctx context.Context, src audio.Source, l session.Listener) (*session.Session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	cfg, loc := s.cfg, s.loc
	s.mu.Unlock()

	mcfg, mgr, err := s.resolve(cfg, loc)
	if err != nil {
		s.metrics.RecordError(ctx, "model_not_ready")
		return nil, err
	}

	det, handle := s.newDetector(cfg)
	deps := session.Deps{
		Source:     src,
		Models:     mgr,
		Listener:   l,
		Punctuator: s.punct,
		Processors: s.processors(cfg),
		Metrics:    s.metrics,
		Logger:     s.log,
	}
	// A typed nil would defeat the session's nil check.
	if det != nil {
		deps.VAD = det
	}
	sess := session.New(deps, session.Config{
		Model:          mcfg,
		KeepAlive:      model.KeepAliveFromMinutes(cfg.Recognition.KeepAlive()),
		FrameInterval:  cfg.Recognition.FrameInterval(),
		PrebufferBytes: cfg.Recognition.PrebufferBytes,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		closeHandle(s.log, handle)
		return nil, ErrClosed
	}
	prev := s.current
	s.current = sess
	s.busy[mcfg.Backend]++
	s.sessions.Add(1)
	s.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	go s.watch(sess, mcfg.Backend, handle, history.Entry{
		SessionID: sess.ID(),
		Variant:   cfg.Recognition.Variant,
		StartedAt: time.Now(),
	})

	if err := sess.Start(ctx); err != nil {
		return nil, fmt.Errorf("app: start session: %w", err)
	}
	s.log.Info("app: session started", "session_id", sess.ID(), "variant", cfg.Recognition.Variant)
	return sess, nil
}

// watch releases per-session resources once the session is done and
// records its outcome.
func (s *Service) watch(sess *session.Session, backend asr.Backend, handle vadprovider.SessionHandle, entry history.Entry) {
	defer s.sessions.Done()
	<-sess.Done()
	closeHandle(s.log, handle)
	s.record(sess, entry)

	s.mu.Lock()
	if s.current == sess {
		s.current = nil
	}
	s.busy[backend]--
	s.mu.Unlock()
}

const recordTimeout = 5 * time.Second

func (s *Service) record(sess *session.Session, e history.Entry) {
	if s.history == nil {
		return
	}
	text, err := sess.Result()
	e.Text = text
	e.ErrorKind = session.ErrorKind(err)
	e.Duration = time.Since(e.StartedAt)

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.history.Record(ctx, e); err != nil {
		s.log.Warn("app: record transcript", "session_id", e.SessionID, "err", err)
	}
}

func closeHandle(log *slog.Logger, h vadprovider.SessionHandle) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		log.Warn("app: close vad session", "err", err)
	}
}

// StopCurrent stops the capturing session, if any.
func (s *Service) StopCurrent() {
	if sess := s.Current(); sess != nil {
		sess.Stop()
	}
}

// Prepare loads the configured model ahead of the first session and applies
// the keep-alive policy to it.
func (s *Service) Prepare(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cfg, loc := s.cfg, s.loc
	s.mu.Unlock()

	mcfg, mgr, err := s.resolve(cfg, loc)
	if err != nil {
		return err
	}
	if err := mgr.Prepare(ctx, mcfg); err != nil {
		return fmt.Errorf("app: %w: %w", session.ErrModelNotReady, err)
	}
	mgr.ScheduleAutoUnload(model.KeepAliveFromMinutes(cfg.Recognition.KeepAlive()))
	return nil
}

// Ready reports whether the configured model can be located. It is the
// readiness probe of the server.
func (s *Service) Ready(context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cfg, loc := s.cfg, s.loc
	s.mu.Unlock()
	_, _, err := s.resolve(cfg, loc)
	return err
}

// Reconfigure applies a reloaded config. Recognition and VAD settings take
// effect with the next session; a keep-alive change is applied right away
// to every loaded engine that no session is using. Fields that need a
// restart are logged and ignored.
func (s *Service) Reconfigure(cfg *config.Config) config.ConfigDiff {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return config.ConfigDiff{}
	}
	d := config.Diff(s.cfg, cfg)
	if s.ownLocator && s.cfg.Recognition.ModelDir != cfg.Recognition.ModelDir {
		s.loc = locator.NewDirLocator(cfg.Recognition.ModelDir)
	}
	s.cfg = cfg
	var idle []*model.Manager
	if d.KeepAliveChanged {
		for backend, mgr := range s.managers {
			if s.busy[backend] == 0 {
				idle = append(idle, mgr)
			}
		}
	}
	s.mu.Unlock()

	ka := model.KeepAliveFromMinutes(cfg.Recognition.KeepAlive())
	for _, mgr := range idle {
		if _, loaded := mgr.Loaded(); loaded {
			mgr.ScheduleAutoUnload(ka)
		}
	}
	if len(d.RestartRequired) > 0 {
		s.log.Warn("app: config changes need a restart", "fields", d.RestartRequired)
	}
	s.log.Info("app: reconfigured",
		"vad", d.VADChanged,
		"keep_alive", ka.String(),
		"recognition", d.RecognitionChanged,
	)
	return d
}

// Shutdown stops the capturing session, waits for every session to finish
// and unloads every engine. If ctx expires first the engines are still
// closed, deferred until their last stream is released, and the context
// error is returned.
func (s *Service) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		cur := s.current
		s.mu.Unlock()

		s.log.Info("app: shutting down")
		if cur != nil {
			cur.Stop()
		}

		waited := make(chan struct{})
		go func() {
			s.sessions.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-ctx.Done():
			s.log.Warn("app: shutdown deadline exceeded while sessions were finishing")
			shutdownErr = ctx.Err()
		}

		var errs []error
		for backend, mgr := range s.managers {
			if err := mgr.Close(); err != nil {
				errs = append(errs, fmt.Errorf("app: close %s manager: %w", backend, err))
			}
		}
		if c, ok := s.punct.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("app: close punctuator: %w", err))
			}
		}
		if shutdownErr == nil {
			shutdownErr = errors.Join(errs...)
		}
		s.log.Info("app: shutdown complete")
	})
	return shutdownErr
}
