// Package sidecar embeds the local runtime supervisor in a host application.
//
// A host typically loads a Config, builds a Supervisor once at startup, calls
// Bootstrap off its UI thread, and calls Shutdown on exit:
//
//	cfg, _ := sidecar.LoadConfig("sidecar.toml")
//	sup, _ := sidecar.New(cfg)
//	go sup.Bootstrap()
//	defer sup.Shutdown()
package sidecar

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/sidecar/internal/bootstrap"
	cfg "github.com/loykin/sidecar/internal/config"
	"github.com/loykin/sidecar/internal/history"
	"github.com/loykin/sidecar/internal/history/factory"
	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/server"
	"github.com/loykin/sidecar/internal/status"
)

// Re-export core types for external consumers.

type Config = cfg.Config

type Snapshot = status.Snapshot

type Status = status.Status

type LaunchMode = status.LaunchMode

type Supervisor = bootstrap.Supervisor

type HistorySink = history.Sink

const (
	StatusPending = status.StatusPending
	StatusReady   = status.StatusReady
	StatusError   = status.StatusError

	LaunchNone                = status.LaunchNone
	LaunchSidecarBundled      = status.LaunchSidecarBundled
	LaunchFallbackHostRuntime = status.LaunchFallbackHostRuntime
	LaunchDevExternal         = status.LaunchDevExternal
	LaunchUnknown             = status.LaunchUnknown
)

func LoadConfig(path string) (*Config, error) { return cfg.LoadConfig(path) }

// New builds the supervisor selected by c.Mode. Sinks receive one event per
// bootstrap attempt and one on shutdown.
func New(c *Config, sinks ...HistorySink) (Supervisor, error) { return bootstrap.New(c, sinks...) }

// NewHistorySinks opens one sink per DSN (sqlite://, postgres://, clickhouse://, opensearch://).
func NewHistorySinks(dsns []string) ([]HistorySink, error) { return factory.NewSinks(dsns) }

func CloseHistorySinks(sinks []HistorySink) { history.CloseAll(sinks) }

// NewHTTPServer serves the control API for sup on addr using the gin engine.
func NewHTTPServer(addr, basePath string, sup Supervisor) (*http.Server, error) {
	return server.NewServer(addr, server.EngineGin, server.NewRouter(sup, basePath))
}

// Handler returns the control API for mounting into an existing server.
func Handler(basePath string, sup Supervisor) http.Handler {
	return server.NewRouter(sup, basePath).Handler()
}

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
func MetricsHandler() http.Handler                  { return metrics.Handler() }
