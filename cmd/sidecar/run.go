package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/sidecar/internal/bootstrap"
	"github.com/loykin/sidecar/internal/config"
	"github.com/loykin/sidecar/internal/history"
	"github.com/loykin/sidecar/internal/history/factory"
	"github.com/loykin/sidecar/internal/logger"
	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/process"
	"github.com/loykin/sidecar/internal/server"
)

const serverShutdownTimeout = 5 * time.Second

func runDaemon(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, nil)
}

// serve runs the supervisor until ctx is done. ready, if non-nil, receives
// the control server address (empty when disabled) once it is listening.
func serve(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			slog.Warn("failed to register metrics", "err", err)
		}
	}

	var sinks []history.Sink
	if cfg.History.Enabled {
		var err error
		if sinks, err = factory.NewSinks(cfg.History.DSNs); err != nil {
			return fmt.Errorf("open history sinks: %w", err)
		}
	}
	defer history.CloseAll(sinks)

	if cfg.Mode == config.ModeProduction {
		if pid, err := process.ReapOrphan(cfg.Runtime.PIDFile, cfg.Runtime.StopTimeout); err != nil {
			slog.Warn("failed to stop leftover runtime", "pid", pid, "err", err)
		} else if pid != 0 {
			slog.Info("stopped leftover runtime", "pid", pid)
		}
	}

	sup, err := bootstrap.New(cfg, sinks...)
	if err != nil {
		return err
	}

	var servers []*http.Server
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		for _, s := range servers {
			_ = s.Shutdown(sctx)
		}
	}()

	addr := ""
	if cfg.Server.Enabled {
		r := server.NewRouter(sup, cfg.Server.BasePath)
		if cfg.Metrics.Enabled {
			r.WithMetrics()
		}
		srv, err := server.NewServer(cfg.Server.Listen, cfg.Server.Engine, r)
		if err != nil {
			sup.Shutdown()
			return fmt.Errorf("failed to start control server: %w", err)
		}
		servers = append(servers, srv)
		addr = srv.Addr
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
		srv, err := serveMetrics(cfg.Metrics.Listen)
		if err != nil {
			sup.Shutdown()
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		servers = append(servers, srv)
	}
	if ready != nil {
		ready <- addr
	}

	go func() {
		snap := sup.Bootstrap()
		if !snap.Available {
			slog.Warn("runtime not available after startup; use retry to relaunch", "message", snap.Message)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	sup.Shutdown()
	return nil
}

func serveMetrics(addr string) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return nil, err
		}
	case <-time.After(100 * time.Millisecond):
	}
	slog.Info("metrics listening", "addr", addr)
	return srv, nil
}
