// Package config provides the configuration schema, loader, engine registry
// and hot-reload watcher for the voxkey recognition service.
package config

import (
	"time"

	"github.com/MrWong99/voxkey/pkg/audio"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler installed by the CLI.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// VADEngine selects the frame classifier behind the voice activity detector.
type VADEngine string

const (
	// VADEnergy is the dependency-free RMS gate.
	VADEnergy VADEngine = "energy"

	// VADSilero is the Silero model on sherpa-onnx. Requires vad.model_path.
	VADSilero VADEngine = "silero"
)

// IsValid reports whether e is a recognised VAD engine.
func (e VADEngine) IsValid() bool {
	return e == VADEnergy || e == VADSilero
}

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultListenAddr     = ":8765"
	DefaultVariant        = "sensevoice-small"
	DefaultLanguage       = "auto"
	DefaultExecProvider   = "cpu"
	DefaultNumThreads     = 2
	DefaultKeepAlive      = 5
	DefaultFrameMS        = 200
	DefaultSensitivity    = 7
	DefaultWindowMS       = 1200
	DefaultPolishTimeout  = 10 * time.Second
	DefaultServiceName    = "voxkey"
	DefaultPolishProvider = "openai"
)

// Config is the root configuration structure for voxkey.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Recognition RecognitionConfig `yaml:"recognition"`
	VAD         VADConfig         `yaml:"vad"`
	PostProcess PostProcessConfig `yaml:"postprocess"`
	History     HistoryConfig     `yaml:"history"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the WebSocket server (e.g., ":8765").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects text or JSON logs. Default: text.
	LogFormat LogFormat `yaml:"log_format"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// Resample picks the resampler for clients sending PCM at another rate
	// than 16 kHz: "fast" (linear, default) or "high" (windowed sinc).
	Resample audio.Quality `yaml:"resample"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// RecognitionConfig selects the decoder model and how the session drives it.
type RecognitionConfig struct {
	// Variant is the logical model identifier resolved by the model locator
	// (e.g., "sensevoice-small", "zipformer-bilingual", "whisper-base").
	Variant string `yaml:"variant"`

	// ModelDir is the root directory the locator searches.
	ModelDir string `yaml:"model_dir"`

	// Language is the recognition language ("auto", "zh", "en", ...).
	Language string `yaml:"language"`

	// Provider is the ONNX execution provider ("cpu", "cuda", ...).
	Provider string `yaml:"provider"`

	// NumThreads is the decoder thread count.
	NumThreads int `yaml:"num_threads"`

	// ITNRulePath is an optional inverse-text-normalization rule FST.
	ITNRulePath string `yaml:"itn_rule_path"`

	// Vocabulary lists domain terms used for hotword biasing and phonetic
	// correction of final transcripts.
	Vocabulary []string `yaml:"vocabulary"`

	// PunctuationModel is an optional ct-transformer model restoring
	// punctuation in final transcripts.
	PunctuationModel string `yaml:"punctuation_model"`

	// KeepAliveMinutes is the idle time before the model is unloaded:
	// negative keeps it forever, zero unloads right after each utterance.
	// Nil selects [DefaultKeepAlive].
	KeepAliveMinutes *int `yaml:"keep_alive_minutes"`

	// FrameMS is the capture frame duration and the minimum gap between two
	// partial results.
	FrameMS int `yaml:"frame_ms"`

	// PrebufferBytes bounds the audio held while the model loads. Zero
	// selects the session default.
	PrebufferBytes int `yaml:"prebuffer_bytes"`
}

// KeepAlive returns the effective keep-alive minutes.
func (r RecognitionConfig) KeepAlive() int {
	if r.KeepAliveMinutes == nil {
		return DefaultKeepAlive
	}
	return *r.KeepAliveMinutes
}

// FrameInterval returns FrameMS as a duration.
func (r RecognitionConfig) FrameInterval() time.Duration {
	return time.Duration(r.FrameMS) * time.Millisecond
}

// VADConfig configures voice activity detection.
type VADConfig struct {
	// Engine selects the classifier. Empty disables automatic stopping.
	Engine VADEngine `yaml:"engine"`

	// ModelPath is the Silero model file, required for the silero engine.
	ModelPath string `yaml:"model_path"`

	// Sensitivity in [1, 10]; higher stops after shorter silence.
	Sensitivity int `yaml:"sensitivity"`

	// WindowMS is the silence in milliseconds required to stop.
	WindowMS int `yaml:"window_ms"`

	// NumThreads is the classifier thread count (silero only).
	NumThreads int `yaml:"num_threads"`
}

// Window returns WindowMS as a duration.
func (v VADConfig) Window() time.Duration {
	return time.Duration(v.WindowMS) * time.Millisecond
}

// PostProcessConfig configures the final-text processing chain.
type PostProcessConfig struct {
	// Polish enables AI polishing when Polish.Model is set.
	Polish PolishConfig `yaml:"polish"`
}

// PolishConfig configures the AI polishing client.
type PolishConfig struct {
	LLMEntry `yaml:",inline"`

	// Prompt overrides the built-in system prompt.
	Prompt string `yaml:"prompt"`

	// Timeout bounds one polishing request including fallbacks.
	Timeout time.Duration `yaml:"timeout"`

	// MinOverlap is the share of input words a reply must keep in order to
	// be accepted. Zero uses the polisher default, a negative value turns
	// the check off.
	MinOverlap float64 `yaml:"min_overlap"`

	// Fallbacks are tried in order when the primary endpoint fails.
	Fallbacks []LLMEntry `yaml:"fallbacks"`
}

// Enabled reports whether polishing is configured.
func (p PolishConfig) Enabled() bool { return p.Model != "" }

// LLMEntry selects one chat-completion endpoint. The Provider field is used
// to look up the constructor in the [Registry].
type LLMEntry struct {
	// Provider selects the client ("openai", "anthropic", "ollama", ...).
	// Default: openai.
	Provider string `yaml:"provider"`

	// APIKey is the authentication key, if the endpoint needs one.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the default endpoint, e.g. a local
	// OpenAI-compatible server.
	BaseURL string `yaml:"base_url"`

	// Model is the model name sent to the endpoint.
	Model string `yaml:"model"`
}

// HistoryConfig configures the transcript log.
type HistoryConfig struct {
	// DSN is a PostgreSQL connection string. Empty disables the log.
	DSN string `yaml:"dsn"`
}

// Enabled reports whether finished sessions are recorded.
func (h HistoryConfig) Enabled() bool { return h.DSN != "" }

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	// ServiceName is the service.name resource attribute.
	ServiceName string `yaml:"service_name"`

	// TraceSampleRatio is the share of new traces sampled. Zero samples
	// every trace.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.Resample == "" {
		c.Server.Resample = audio.QualityFast
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = LogFormatText
	}

	r := &c.Recognition
	if r.Variant == "" {
		r.Variant = DefaultVariant
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.Provider == "" {
		r.Provider = DefaultExecProvider
	}
	if r.NumThreads == 0 {
		r.NumThreads = DefaultNumThreads
	}
	if r.FrameMS == 0 {
		r.FrameMS = DefaultFrameMS
	}

	if c.VAD.Sensitivity == 0 {
		c.VAD.Sensitivity = DefaultSensitivity
	}
	if c.VAD.WindowMS == 0 {
		c.VAD.WindowMS = DefaultWindowMS
	}

	p := &c.PostProcess.Polish
	if p.Enabled() {
		if p.Provider == "" {
			p.Provider = DefaultPolishProvider
		}
		if p.Timeout == 0 {
			p.Timeout = DefaultPolishTimeout
		}
		for i := range p.Fallbacks {
			if p.Fallbacks[i].Provider == "" {
				p.Fallbacks[i].Provider = DefaultPolishProvider
			}
		}
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}
