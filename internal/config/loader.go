package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voxkey/internal/locator"
	"github.com/MrWong99/voxkey/internal/vad"
)

// ValidLLMProviders lists the polishing clients the default registry knows.
// Used by [Validate] to warn about unrecognised provider names.
var ValidLLMProviders = []string{"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if q := cfg.Server.Resample; q != "" && !q.IsValid() {
		errs = append(errs, fmt.Errorf("server.resample %q is invalid; valid values: fast, high", q))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Recognition
	r := cfg.Recognition
	if r.Variant == "" {
		errs = append(errs, errors.New("recognition.variant is required"))
	} else if _, ok := locator.DefaultVariants[r.Variant]; !ok {
		slog.Warn("config: unknown recognition variant, the model locator must know it", "variant", r.Variant)
	}
	if r.NumThreads < 0 {
		errs = append(errs, fmt.Errorf("recognition.num_threads %d must not be negative", r.NumThreads))
	}
	if r.FrameMS < 0 || r.FrameMS > 1000 {
		errs = append(errs, fmt.Errorf("recognition.frame_ms %d is out of range [0, 1000]", r.FrameMS))
	}
	if r.PrebufferBytes < 0 {
		errs = append(errs, fmt.Errorf("recognition.prebuffer_bytes %d must not be negative", r.PrebufferBytes))
	}
	if r.ModelDir == "" {
		slog.Warn("config: recognition.model_dir is empty; models are resolved relative to the working directory")
	}

	// VAD
	v := cfg.VAD
	if v.Engine != "" && !v.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("vad.engine %q is invalid; valid values: energy, silero", v.Engine))
	}
	if v.Engine == VADSilero && v.ModelPath == "" {
		errs = append(errs, errors.New("vad.model_path is required when engine is silero"))
	}
	if v.Sensitivity != 0 && (v.Sensitivity < vad.MinLevel || v.Sensitivity > vad.MaxLevel) {
		errs = append(errs, fmt.Errorf("vad.sensitivity %d is out of range [%d, %d]", v.Sensitivity, vad.MinLevel, vad.MaxLevel))
	}
	if v.WindowMS < 0 {
		errs = append(errs, fmt.Errorf("vad.window_ms %d must not be negative", v.WindowMS))
	}

	// Post-processing
	p := cfg.PostProcess.Polish
	if p.Timeout < 0 {
		errs = append(errs, fmt.Errorf("postprocess.polish.timeout %s must not be negative", p.Timeout))
	}
	if p.MinOverlap > 1 {
		errs = append(errs, fmt.Errorf("postprocess.polish.min_overlap %v must not exceed 1", p.MinOverlap))
	}
	if !p.Enabled() && len(p.Fallbacks) > 0 {
		errs = append(errs, errors.New("postprocess.polish.fallbacks require postprocess.polish.model"))
	}
	validateLLMProvider("postprocess.polish", p.Provider)
	for i, fb := range p.Fallbacks {
		prefix := fmt.Sprintf("postprocess.polish.fallbacks[%d]", i)
		if fb.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		validateLLMProvider(prefix, fb.Provider)
	}

	if r := cfg.Telemetry.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %v must be within [0, 1]", r))
	}

	return errors.Join(errs...)
}

// validateLLMProvider logs a warning if name is non-empty and not found in
// [ValidLLMProviders].
func validateLLMProvider(field, name string) {
	if name == "" || slices.Contains(ValidLLMProviders, name) {
		return
	}
	slog.Warn("config: unknown llm provider name, may be a typo or a custom registration",
		"field", field,
		"name", name,
		"known", ValidLLMProviders,
	)
}
