// Command spiel builds the utterances described in a YAML config, logs every
// change notification they emit and prints their final state. With -watch it
// rebuilds whenever the config file changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/spiel/internal/config"
	"github.com/MrWong99/spiel/internal/health"
	"github.com/MrWong99/spiel/internal/observe"
)

// version is set at build time with -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "spiel.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", false, "rebuild whenever the config file changes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "spiel: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "spiel: %v\n", err)
		}
		return 1
	}

	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Info("spiel starting",
		"config", *configPath,
		"version", version,
		"policy", cfg.ProsodyPolicy().String(),
		"voices", len(cfg.Voices),
		"utterances", len(cfg.Utterances),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Policy:         cfg.ProsodyPolicy().String(),
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()
	var lastRun health.Outcome

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, tel, metrics, health.New(health.Checker{Name: "script", Check: lastRun.Check}))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	err = runScript(ctx, cfg, metrics, os.Stdout)
	lastRun.Set(err)
	if err != nil {
		slog.Error("script failed", "err", err)
		if !*watch {
			return 1
		}
	}
	if !*watch {
		return 0
	}

	w, err := config.NewWatcher(*configPath, func(_, next *config.Config) {
		slog.SetDefault(newLogger(next.LogLevel))
		err := runScript(ctx, next, metrics, os.Stdout)
		lastRun.Set(err)
		if err != nil {
			slog.Error("script failed", "err", err)
		}
	})
	if err != nil {
		slog.Error("failed to watch config", "err", err)
		return 1
	}
	defer w.Stop()

	slog.Info("watching config for changes; press Ctrl+C to stop", "config", *configPath)
	<-ctx.Done()
	slog.Info("goodbye")
	return 0
}

// serveMetrics starts the Prometheus /metrics endpoint and the health probes
// in the background.
func serveMetrics(addr string, tel *observe.Telemetry, m *observe.Metrics, probes *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", tel.Handler())
	probes.Register(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics endpoint error", "err", err)
		}
	}()
	return srv
}

func newLogger(level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level.Level()}))
}
