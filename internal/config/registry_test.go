package config_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/voxkey/internal/config"
	"github.com/MrWong99/voxkey/pkg/provider/asr"
	asrmock "github.com/MrWong99/voxkey/pkg/provider/asr/mock"
	"github.com/MrWong99/voxkey/pkg/provider/llm"
	llmmock "github.com/MrWong99/voxkey/pkg/provider/llm/mock"
	vadprovider "github.com/MrWong99/voxkey/pkg/provider/vad"
	vadmock "github.com/MrWong99/voxkey/pkg/provider/vad/mock"
)

func TestRegistry_ASR(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	ld := &asrmock.Loader{}
	reg.RegisterASR(asr.BackendZipformer, ld.Load)
	reg.RegisterASR(asr.BackendSenseVoice, ld.Load)

	loader, err := reg.ASRLoader(asr.BackendSenseVoice)
	if err != nil {
		t.Fatalf("ASRLoader: %v", err)
	}
	if _, err := loader(context.Background(), asr.ModelConfig{Backend: asr.BackendSenseVoice}); err != nil {
		t.Fatalf("loader: %v", err)
	}
	if ld.LoadCount() != 1 {
		t.Errorf("LoadCount = %d, want 1", ld.LoadCount())
	}

	want := []asr.Backend{asr.BackendSenseVoice, asr.BackendZipformer}
	if got := reg.ASRBackends(); !slices.Equal(got, want) {
		t.Errorf("ASRBackends() = %v, want %v", got, want)
	}

	if _, err := reg.ASRLoader(asr.BackendWhisper); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("ASRLoader(whisper) err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_VAD(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	eng := &vadmock.Engine{}
	var got config.VADConfig
	reg.RegisterVAD(config.VADEnergy, func(cfg config.VADConfig) (vadprovider.Engine, error) {
		got = cfg
		return eng, nil
	})

	e, err := reg.CreateVAD(config.VADConfig{Engine: config.VADEnergy, Sensitivity: 4})
	if err != nil {
		t.Fatalf("CreateVAD: %v", err)
	}
	if e != eng {
		t.Error("CreateVAD returned a different engine")
	}
	if got.Sensitivity != 4 {
		t.Errorf("factory got %+v", got)
	}

	if _, err := reg.CreateVAD(config.VADConfig{Engine: config.VADSilero}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateVAD(silero) err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_LLM(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	p := &llmmock.Provider{}
	reg.RegisterLLM("openai", func(entry config.LLMEntry) (llm.Provider, error) {
		if entry.Model == "" {
			return nil, errors.New("model required")
		}
		return p, nil
	})

	got, err := reg.CreateLLM(config.LLMEntry{Provider: "openai", Model: "gpt-4o-mini"})
	if err != nil || got != p {
		t.Fatalf("CreateLLM = %v, %v", got, err)
	}
	if _, err := reg.CreateLLM(config.LLMEntry{Provider: "openai"}); err == nil {
		t.Error("factory error not propagated")
	}
	if _, err := reg.CreateLLM(config.LLMEntry{Provider: "groq"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM(groq) err = %v, want ErrProviderNotRegistered", err)
	}
}
