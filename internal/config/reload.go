package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultReloadInterval is how often a [Reloader] looks at the config file.
const DefaultReloadInterval = 5 * time.Second

// ApplyFunc receives a reloaded config together with what changed relative
// to the previous one.
type ApplyFunc func(next *Config, d ConfigDiff)

// Reloader keeps a config file in sync with the running service. It polls
// the file, waits until a change has settled for one interval so half
// written files are not parsed, and hands every valid edit that changes a
// setting to its [ApplyFunc]. Invalid edits are logged and ignored.
type Reloader struct {
	path     string
	interval time.Duration
	apply    ApplyFunc
	log      *slog.Logger

	mu      sync.Mutex
	current *Config
	sum     [sha256.Size]byte

	// seen is the stat fingerprint of the last file read, pending the
	// fingerprint of an edit that has not settled yet.
	seen    fileStamp
	pending *fileStamp

	cancel context.CancelFunc
	done   chan struct{}
}

type fileStamp struct {
	mod  time.Time
	size int64
}

func stampOf(fi os.FileInfo) fileStamp {
	return fileStamp{mod: fi.ModTime(), size: fi.Size()}
}

// ReloadOption configures a [Reloader].
type ReloadOption func(*Reloader)

// WithReloadInterval sets the polling interval.
func WithReloadInterval(d time.Duration) ReloadOption {
	return func(r *Reloader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReloadLogger sets the logger. Defaults to slog.Default().
func WithReloadLogger(l *slog.Logger) ReloadOption {
	return func(r *Reloader) {
		if l != nil {
			r.log = l
		}
	}
}

// Watch loads the config at path and follows it until ctx is done or Stop
// is called. apply runs on the polling goroutine and may be nil.
func Watch(ctx context.Context, path string, apply ApplyFunc, opts ...ReloadOption) (*Reloader, error) {
	r := &Reloader{
		path:     path,
		interval: DefaultReloadInterval,
		apply:    apply,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	cfg, sum, stamp, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	r.current, r.sum, r.seen = cfg, sum, stamp

	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
	return r, nil
}

// Current returns the last valid config.
func (r *Reloader) Current() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Stop ends polling and waits for a running apply to return. It is safe to
// call more than once.
func (r *Reloader) Stop() {
	r.cancel()
	<-r.done
}

func (r *Reloader) run(ctx context.Context) {
	defer close(r.done)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.poll()
		}
	}
}

func (r *Reloader) poll() {
	fi, err := os.Stat(r.path)
	if err != nil {
		r.log.Warn("config: cannot stat file", "path", r.path, "err", err)
		return
	}
	stamp := stampOf(fi)

	r.mu.Lock()
	switch {
	case stamp == r.seen:
		r.pending = nil
		r.mu.Unlock()
		return
	case r.pending == nil || *r.pending != stamp:
		// Still being written, or a fresh edit. Look again next tick.
		r.pending = &stamp
		r.mu.Unlock()
		return
	}
	r.pending = nil
	r.mu.Unlock()

	r.reload()
}

func (r *Reloader) reload() {
	cfg, sum, stamp, err := r.load()
	if err != nil {
		r.log.Warn("config: edit rejected, keeping previous config", "path", r.path, "err", err)
		r.mu.Lock()
		r.seen = stamp
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.seen = stamp
	if sum == r.sum {
		r.mu.Unlock()
		return
	}
	prev := r.current
	r.current, r.sum = cfg, sum
	r.mu.Unlock()

	d := Diff(prev, cfg)
	if d.Empty() {
		r.log.Debug("config: file changed without effect", "path", r.path)
		return
	}
	r.log.Info("config: reloaded", "path", r.path,
		"log_level", d.LogLevelChanged,
		"vad", d.VADChanged,
		"keep_alive", d.KeepAliveChanged,
		"recognition", d.RecognitionChanged,
	)
	if r.apply != nil {
		r.apply(cfg, d)
	}
}

// load reads and validates the file. The stamp is returned even when the
// content is invalid so the same broken edit is not parsed again.
func (r *Reloader) load() (*Config, [sha256.Size]byte, fileStamp, error) {
	var sum [sha256.Size]byte
	fi, err := os.Stat(r.path)
	if err != nil {
		return nil, sum, fileStamp{}, err
	}
	stamp := stampOf(fi)
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, sum, stamp, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, sum, stamp, err
	}
	return cfg, sha256.Sum256(data), stamp, nil
}
