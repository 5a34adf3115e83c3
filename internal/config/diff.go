package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VADChanged is true when the sensitivity or the stop window changed.
	// The running service applies it to the next session.
	VADChanged bool

	// KeepAliveChanged is true when the model retention policy changed. It
	// is applied to the loaded engines immediately.
	KeepAliveChanged bool

	// RecognitionChanged is true when the model selection, decoding options
	// or vocabulary changed. The next session prepares the new model.
	RecognitionChanged bool

	// RestartRequired lists changed fields that only take effect after a
	// restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.VADChanged && !d.KeepAliveChanged &&
		!d.RecognitionChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.VAD.Sensitivity != new.VAD.Sensitivity || old.VAD.WindowMS != new.VAD.WindowMS {
		d.VADChanged = true
	}

	if old.Recognition.KeepAlive() != new.Recognition.KeepAlive() {
		d.KeepAliveChanged = true
	}

	or, nr := old.Recognition, new.Recognition
	if or.Variant != nr.Variant ||
		or.ModelDir != nr.ModelDir ||
		or.Language != nr.Language ||
		or.Provider != nr.Provider ||
		or.NumThreads != nr.NumThreads ||
		or.ITNRulePath != nr.ITNRulePath ||
		or.FrameMS != nr.FrameMS ||
		or.PrebufferBytes != nr.PrebufferBytes ||
		!slices.Equal(or.Vocabulary, nr.Vocabulary) {
		d.RecognitionChanged = true
	}

	restart := func(field string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, field)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.log_format", old.Server.LogFormat != new.Server.LogFormat)
	restart("server.resample", old.Server.Resample != new.Server.Resample)
	restart("server.tls", !reflect.DeepEqual(old.Server.TLS, new.Server.TLS))
	restart("recognition.punctuation_model", or.PunctuationModel != nr.PunctuationModel)
	restart("vad.engine", old.VAD.Engine != new.VAD.Engine)
	restart("vad.model_path", old.VAD.ModelPath != new.VAD.ModelPath)
	restart("vad.num_threads", old.VAD.NumThreads != new.VAD.NumThreads)
	restart("postprocess", !reflect.DeepEqual(old.PostProcess, new.PostProcess))
	restart("history", old.History != new.History)
	restart("telemetry", old.Telemetry != new.Telemetry)

	return d
}
