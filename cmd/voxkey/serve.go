package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxkey/internal/app"
	"github.com/MrWong99/voxkey/internal/config"
	"github.com/MrWong99/voxkey/internal/health"
	"github.com/MrWong99/voxkey/internal/observe"
	"github.com/MrWong99/voxkey/internal/server"
)

const shutdownTimeout = 15 * time.Second

var (
	servePreload bool
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket dictation server",
	Long: `Run the WebSocket dictation server.

Endpoints:
  GET /v1/dictate      WebSocket: binary PCM16LE or Opus in, JSON events out
  GET /v1/transcripts  recent transcripts (when history.dsn is set)
  GET /healthz         liveness probe
  GET /readyz          readiness probe (model located, loaded engines)
  GET /metrics         Prometheus metrics

The configuration file is watched; VAD settings, the keep-alive policy,
the log level and the recognition settings apply without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&servePreload, "preload", false, "load the model at startup instead of on the first utterance")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allow-origin", nil, "cross-origin hosts allowed to connect (e.g. \"app.example.com\", \"*\")")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, level, fromFile, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()
	logger.Info("voxkey starting",
		"version", version,
		"listen_addr", cfg.Server.ListenAddr,
		"variant", cfg.Recognition.Variant,
		"vad", cfg.VAD.Engine,
		"polish", cfg.PostProcess.Polish.Enabled(),
		"history", cfg.History.Enabled(),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		SampleRatio:    cfg.Telemetry.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn("telemetry shutdown", "err", err)
		}
	}()

	store, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	svc, err := newService(cfg, logger, historyOptions(store)...)
	if err != nil {
		return err
	}

	if fromFile {
		r, err := config.Watch(ctx, configPath, func(next *config.Config, d config.ConfigDiff) {
			if d.LogLevelChanged {
				level.Set(slogLevel(d.NewLogLevel))
				logger.Info("log level changed", "level", d.NewLogLevel)
			}
			svc.Reconfigure(next)
		}, config.WithReloadLogger(logger))
		if err != nil {
			logger.Warn("config hot reload disabled", "err", err)
		} else {
			defer r.Stop()
		}
	}

	srvOpts := []server.Option{
		server.WithOriginPatterns(serveOrigins...),
		server.WithResampleQuality(cfg.Server.Resample),
	}
	healthOpts := []health.Option{
		health.WithChecker("model", svc.Ready),
		health.WithModels(svc.Loaded),
	}
	if store != nil {
		srvOpts = append(srvOpts, server.WithHistory(store))
		healthOpts = append(healthOpts, health.WithChecker("history", store.Ping))
	}

	mux := http.NewServeMux()
	server.New(svc, srvOpts...).Register(mux)
	health.New(healthOpts...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Server.ListenAddr, "tls", cfg.Server.TLS != nil)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	})
	if servePreload {
		g.Go(func() error {
			if err := svc.Prepare(gctx); err != nil {
				logger.Warn("model preload failed", "err", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping")
		return shutdown(svc, httpSrv)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("goodbye")
	return nil
}

// shutdown finishes the running utterance before closing the listener, so
// a connected client still receives its final transcript.
func shutdown(svc *app.Service, httpSrv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(svc.Shutdown(ctx), httpSrv.Shutdown(ctx))
}
