package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxkey/internal/config"
	"github.com/MrWong99/voxkey/pkg/audio"
)

const fullYAML = `
server:
  listen_addr: "127.0.0.1:9000"
  log_level: debug
  log_format: json
  resample: high
recognition:
  variant: zipformer-bilingual
  model_dir: /opt/models
  language: zh
  provider: cuda
  num_threads: 4
  itn_rule_path: /opt/models/itn.fst
  vocabulary: [Kubernetes, Eldrinax]
  punctuation_model: /opt/models/punct.onnx
  keep_alive_minutes: -1
  frame_ms: 100
  prebuffer_bytes: 200000
vad:
  engine: silero
  model_path: /opt/models/silero_vad.onnx
  sensitivity: 9
  window_ms: 800
  num_threads: 1
postprocess:
  polish:
    provider: openai
    api_key: sk-test
    base_url: http://localhost:11434/v1
    model: llama3
    timeout: 3s
    fallbacks:
      - provider: anthropic
        api_key: ak-test
        model: claude-haiku
    min_overlap: 0.4
history:
  dsn: postgres://voxkey@localhost/voxkey
telemetry:
  service_name: voxkey-test
`

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:9000" || cfg.Server.LogLevel != config.LogDebug || cfg.Server.LogFormat != config.LogFormatJSON ||
		cfg.Server.Resample != audio.QualityHigh {
		t.Errorf("server = %+v", cfg.Server)
	}

	r := cfg.Recognition
	if r.Variant != "zipformer-bilingual" || r.Language != "zh" || r.Provider != "cuda" || r.NumThreads != 4 {
		t.Errorf("recognition = %+v", r)
	}
	if len(r.Vocabulary) != 2 || r.Vocabulary[1] != "Eldrinax" {
		t.Errorf("vocabulary = %v", r.Vocabulary)
	}
	if r.KeepAlive() != -1 {
		t.Errorf("KeepAlive() = %d, want -1", r.KeepAlive())
	}
	if r.FrameInterval() != 100*time.Millisecond {
		t.Errorf("FrameInterval() = %s, want 100ms", r.FrameInterval())
	}

	if cfg.VAD.Engine != config.VADSilero || cfg.VAD.Sensitivity != 9 || cfg.VAD.Window() != 800*time.Millisecond {
		t.Errorf("vad = %+v", cfg.VAD)
	}

	p := cfg.PostProcess.Polish
	if !p.Enabled() || p.Model != "llama3" || p.BaseURL != "http://localhost:11434/v1" || p.Timeout != 3*time.Second {
		t.Errorf("polish = %+v", p)
	}
	if len(p.Fallbacks) != 1 || p.Fallbacks[0].Provider != "anthropic" {
		t.Errorf("fallbacks = %+v", p.Fallbacks)
	}
	if p.MinOverlap != 0.4 {
		t.Errorf("min overlap = %v", p.MinOverlap)
	}
	if !cfg.History.Enabled() || cfg.History.DSN != "postgres://voxkey@localhost/voxkey" {
		t.Errorf("history = %+v", cfg.History)
	}
	if cfg.Telemetry.ServiceName != "voxkey-test" {
		t.Errorf("service name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_EmptyDocumentUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo || cfg.Server.LogFormat != config.LogFormatText {
		t.Errorf("server = %+v, want info/text", cfg.Server)
	}
	if cfg.Server.Resample != audio.QualityFast {
		t.Errorf("Resample = %q, want fast", cfg.Server.Resample)
	}
	if cfg.Recognition.Variant != config.DefaultVariant {
		t.Errorf("Variant = %q, want %q", cfg.Recognition.Variant, config.DefaultVariant)
	}
	if cfg.Recognition.KeepAlive() != config.DefaultKeepAlive {
		t.Errorf("KeepAlive() = %d, want %d", cfg.Recognition.KeepAlive(), config.DefaultKeepAlive)
	}
	if cfg.Recognition.FrameMS != config.DefaultFrameMS {
		t.Errorf("FrameMS = %d, want %d", cfg.Recognition.FrameMS, config.DefaultFrameMS)
	}
	if cfg.VAD.Engine != "" {
		t.Errorf("VAD engine = %q, want disabled", cfg.VAD.Engine)
	}
	if cfg.VAD.Sensitivity != config.DefaultSensitivity || cfg.VAD.WindowMS != config.DefaultWindowMS {
		t.Errorf("vad = %+v", cfg.VAD)
	}
	if cfg.PostProcess.Polish.Enabled() {
		t.Error("polish enabled without a model")
	}
	if cfg.Telemetry.ServiceName != config.DefaultServiceName {
		t.Errorf("ServiceName = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_ZeroKeepAliveIsKept(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("recognition:\n  keep_alive_minutes: 0\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if got := cfg.Recognition.KeepAlive(); got != 0 {
		t.Errorf("KeepAlive() = %d, want 0", got)
	}
}

func TestLoadFromReader_PolishDefaults(t *testing.T) {
	t.Parallel()

	yaml := `
postprocess:
  polish:
    model: gpt-4o-mini
    fallbacks:
      - model: gpt-4o
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	p := cfg.PostProcess.Polish
	if p.Provider != config.DefaultPolishProvider {
		t.Errorf("Provider = %q, want %q", p.Provider, config.DefaultPolishProvider)
	}
	if p.Timeout != config.DefaultPolishTimeout {
		t.Errorf("Timeout = %s, want %s", p.Timeout, config.DefaultPolishTimeout)
	}
	if p.Fallbacks[0].Provider != config.DefaultPolishProvider {
		t.Errorf("fallback provider = %q", p.Fallbacks[0].Provider)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("recognition:\n  modle_dir: /x\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voxkey.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recognition.Variant != "zipformer-bilingual" {
		t.Errorf("Variant = %q", cfg.Recognition.Variant)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestEnums_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("LogLevel(%q).IsValid() = false", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error("LogLevel(verbose).IsValid() = true")
	}
	if !config.LogFormatJSON.IsValid() || config.LogFormat("xml").IsValid() {
		t.Error("LogFormat.IsValid mismatch")
	}
	if !config.VADSilero.IsValid() || !config.VADEnergy.IsValid() || config.VADEngine("webrtc").IsValid() {
		t.Error("VADEngine.IsValid mismatch")
	}
}
