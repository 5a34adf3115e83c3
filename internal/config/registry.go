package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/voxkey/pkg/provider/asr"
	"github.com/MrWong99/voxkey/pkg/provider/llm"
	vadprovider "github.com/MrWong99/voxkey/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned when no factory has been registered
// under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps decoder families to engine loaders, VAD engine names to
// classifier factories and LLM provider names to polishing clients. The set
// of loaders is fixed at startup; there is no lookup by type name at runtime.
// It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	asr map[asr.Backend]asr.Loader
	vad map[VADEngine]func(VADConfig) (vadprovider.Engine, error)
	llm map[string]func(LLMEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr: make(map[asr.Backend]asr.Loader),
		vad: make(map[VADEngine]func(VADConfig) (vadprovider.Engine, error)),
		llm: make(map[string]func(LLMEntry) (llm.Provider, error)),
	}
}

// RegisterASR registers the engine loader of a decoder family.
// Subsequent calls with the same backend overwrite the previous registration.
func (r *Registry) RegisterASR(backend asr.Backend, loader asr.Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[backend] = loader
}

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name VADEngine, factory func(VADConfig) (vadprovider.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterLLM registers a polishing client factory under name.
func (r *Registry) RegisterLLM(name string, factory func(LLMEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// ASRLoader returns the loader registered for backend.
// Returns [ErrProviderNotRegistered] if none has been registered.
func (r *Registry) ASRLoader(backend asr.Backend) (asr.Loader, error) {
	r.mu.RLock()
	loader, ok := r.asr[backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, backend)
	}
	return loader, nil
}

// ASRBackends returns the registered decoder families in sorted order.
func (r *Registry) ASRBackends() []asr.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.asr))
}

// CreateVAD instantiates the VAD engine named by cfg.Engine.
func (r *Registry) CreateVAD(cfg VADConfig) (vadprovider.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[cfg.Engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, cfg.Engine)
	}
	return factory(cfg)
}

// CreateLLM instantiates the polishing client registered under entry.Provider.
func (r *Registry) CreateLLM(entry LLMEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Provider)
	}
	return factory(entry)
}
