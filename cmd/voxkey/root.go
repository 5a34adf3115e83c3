package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxkey/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "voxkey",
	Short: "Streaming speech-to-text dictation",
	Long: `voxkey turns speech into text with local sherpa-onnx and whisper.cpp
models. Partial transcripts stream while you speak; the final transcript is
corrected against your vocabulary and optionally polished by an LLM.

Run "voxkey listen" to dictate from the microphone or "voxkey serve" to
accept audio from WebSocket clients.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "voxkey.yaml", "path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the config file and installs the process logger. A
// missing file is not an error: defaults are used and fromFile is false.
func loadConfig() (cfg *config.Config, level *slog.LevelVar, fromFile bool, err error) {
	cfg, err = config.Load(configPath)
	fromFile = err == nil
	if errors.Is(err, os.ErrNotExist) {
		cfg = &config.Config{}
		cfg.ApplyDefaults()
		err = config.Validate(cfg)
	}
	if err != nil {
		return nil, nil, false, err
	}

	level = new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(os.Stderr, cfg.Server.LogFormat, level))
	if !fromFile {
		slog.Info("config file not found, using defaults", "path", configPath)
	}
	return cfg, level, fromFile, nil
}
