package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/voxkey/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "bad log level",
			yaml: "server:\n  log_level: loud\n",
			want: []string{"server.log_level"},
		},
		{
			name: "bad log format",
			yaml: "server:\n  log_format: xml\n",
			want: []string{"server.log_format"},
		},
		{
			name: "bad resample quality",
			yaml: "server:\n  resample: best\n",
			want: []string{"server.resample"},
		},
		{
			name: "incomplete tls",
			yaml: "server:\n  tls:\n    cert_file: /c.pem\n",
			want: []string{"server.tls"},
		},
		{
			name: "frame out of range",
			yaml: "recognition:\n  frame_ms: 5000\n",
			want: []string{"recognition.frame_ms"},
		},
		{
			name: "negative prebuffer",
			yaml: "recognition:\n  prebuffer_bytes: -1\n",
			want: []string{"recognition.prebuffer_bytes"},
		},
		{
			name: "unknown vad engine",
			yaml: "vad:\n  engine: webrtc\n",
			want: []string{"vad.engine"},
		},
		{
			name: "silero without model",
			yaml: "vad:\n  engine: silero\n",
			want: []string{"vad.model_path"},
		},
		{
			name: "sensitivity out of range",
			yaml: "vad:\n  sensitivity: 11\n",
			want: []string{"vad.sensitivity"},
		},
		{
			name: "negative window",
			yaml: "vad:\n  window_ms: -5\n",
			want: []string{"vad.window_ms"},
		},
		{
			name: "fallbacks without primary",
			yaml: "postprocess:\n  polish:\n    fallbacks:\n      - model: gpt-4o\n",
			want: []string{"postprocess.polish.fallbacks require"},
		},
		{
			name: "overlap above one",
			yaml: "postprocess:\n  polish:\n    model: gpt-4o\n    min_overlap: 1.5\n",
			want: []string{"postprocess.polish.min_overlap"},
		},
		{
			name: "sample ratio above one",
			yaml: "telemetry:\n  trace_sample_ratio: 2\n",
			want: []string{"telemetry.trace_sample_ratio"},
		},
		{
			name: "fallback without model",
			yaml: "postprocess:\n  polish:\n    model: gpt-4o\n    fallbacks:\n      - provider: ollama\n",
			want: []string{"fallbacks[0].model"},
		},
		{
			name: "errors are joined",
			yaml: "server:\n  log_level: loud\nvad:\n  sensitivity: 42\n  window_ms: -1\n",
			want: []string{"server.log_level", "vad.sensitivity", "vad.window_ms"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

func TestValidate_UnknownNamesOnlyWarn(t *testing.T) {
	t.Parallel()

	yaml := `
recognition:
  variant: my-custom-model
postprocess:
  polish:
    provider: my-gateway
    model: house-model
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown names should only warn, got: %v", err)
	}
}

func TestValidate_ValidConfigPasses(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("defaults should validate, got: %v", err)
	}
}
