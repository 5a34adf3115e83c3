package main

import (
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voxkey/internal/app"
	"github.com/MrWong99/voxkey/internal/config"
	"github.com/MrWong99/voxkey/internal/observe"
	"github.com/MrWong99/voxkey/pkg/provider/asr"
	asrsherpa "github.com/MrWong99/voxkey/pkg/provider/asr/sherpa"
	"github.com/MrWong99/voxkey/pkg/provider/asr/whisper"
	"github.com/MrWong99/voxkey/pkg/provider/llm"
	"github.com/MrWong99/voxkey/pkg/provider/llm/anyllm"
	"github.com/MrWong99/voxkey/pkg/provider/llm/openai"
	vadprovider "github.com/MrWong99/voxkey/pkg/provider/vad"
	"github.com/MrWong99/voxkey/pkg/provider/vad/energy"
	vadsherpa "github.com/MrWong99/voxkey/pkg/provider/vad/sherpa"
)

// registerBuiltinProviders wires the decoder, VAD and polishing
// implementations that ship with voxkey into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Decoders ──────────────────────────────────────────────────────────────
	sherpaLoader := asrsherpa.Loader()
	for _, b := range []asr.Backend{
		asr.BackendSenseVoice, asr.BackendParaformer,
		asr.BackendTeleSpeech, asr.BackendZipformer,
	} {
		reg.RegisterASR(b, sherpaLoader)
	}
	reg.RegisterASR(asr.BackendWhisper, whisper.Loader())

	// ── VAD ───────────────────────────────────────────────────────────────────
	reg.RegisterVAD(config.VADEnergy, func(config.VADConfig) (vadprovider.Engine, error) {
		return energy.New(), nil
	})
	reg.RegisterVAD(config.VADSilero, func(c config.VADConfig) (vadprovider.Engine, error) {
		e, err := vadsherpa.New(c.ModelPath, vadsherpa.WithNumThreads(c.NumThreads))
		if err != nil {
			return nil, err
		}
		return e, nil
	})

	// ── Polishing ─────────────────────────────────────────────────────────────
	// The native client speaks to any OpenAI-compatible endpoint.
	reg.RegisterLLM("openai", func(entry config.LLMEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		p, err := openai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.LLMEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.LLMEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New("ollama", entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	slog.Debug("registered decoders", "backends", reg.ASRBackends())
}

// newService builds the recognition service with the built-in providers and
// the optional punctuation model. extra options are applied last.
func newService(cfg *config.Config, logger *slog.Logger, extra ...app.Option) (*app.Service, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	opts := []app.Option{
		app.WithRegistry(reg),
		app.WithMetrics(observe.DefaultMetrics()),
		app.WithLogger(logger),
	}
	opts = append(opts, extra...)

	var punct *asrsherpa.Punctuator
	if path := cfg.Recognition.PunctuationModel; path != "" {
		p, err := asrsherpa.NewPunctuator(path, cfg.Recognition.NumThreads)
		if err != nil {
			return nil, fmt.Errorf("load punctuation model: %w", err)
		}
		punct = p
		opts = append(opts, app.WithPunctuator(p))
	}

	svc, err := app.New(cfg, opts...)
	if err != nil {
		if punct != nil {
			punct.Close()
		}
		return nil, err
	}
	return svc, nil
}
