// Package server exposes the supervisor to the host over HTTP.
package server

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labstack/echo/v4"

	"github.com/loykin/sidecar/internal/bootstrap"
	"github.com/loykin/sidecar/internal/metrics"
)

// Router serves the control API under basePath:
//
//	GET  {basePath}/status   current snapshot
//	POST {basePath}/retry    stop, relaunch and health check; returns the new snapshot
//	GET  {basePath}/process  resource sample of the managed runtime
//	GET  {basePath}/metrics  prometheus exposition, when enabled
type Router struct {
	sup      bootstrap.Supervisor
	basePath string
	metrics  bool
}

func NewRouter(sup bootstrap.Supervisor, basePath string) *Router {
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// WithMetrics also serves the prometheus handler at {basePath}/metrics.
func (r *Router) WithMetrics() *Router {
	r.metrics = true
	return r
}

func (r *Router) BasePath() string { return r.basePath }

// Handler returns a gin engine that can be mounted in any server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/retry", r.handleRetry)
	group.GET("/process", r.handleProcess)
	if r.metrics {
		group.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

type errorResp struct {
	Error string `json:"error"`
}

// ProcessInfo describes the managed runtime.
type ProcessInfo struct {
	PID    int                    `json:"pid"`
	Sample *metrics.ProcessSample `json:"sample,omitempty"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.Status())
}

func (r *Router) handleRetry(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.Retry())
}

func (r *Router) handleProcess(c *gin.Context) {
	pid := r.sup.PID()
	if pid == 0 {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "no managed runtime process"})
		return
	}
	info := ProcessInfo{PID: pid}
	if s, err := metrics.SampleProcess(pid); err == nil {
		info.Sample = &s
	} else {
		slog.Debug("sample runtime process", "pid", pid, "err", err)
	}
	writeJSON(c, http.StatusOK, info)
}

// Engines accepted by NewServer.
const (
	EngineGin  = "gin"
	EngineEcho = "echo"
)

// retryBudget bounds a single request; a retry blocks for the full health wait.
const retryBudget = 60 * time.Second

// NewServer listens on addr and serves r with the chosen engine in the
// background. Bind errors are returned; the caller shuts the server down.
func NewServer(addr, engine string, r *Router) (*http.Server, error) {
	var h http.Handler
	switch engine {
	case "", EngineGin:
		h = r.Handler()
	case EngineEcho:
		h = echoHandler(r)
	default:
		return nil, errors.New("unknown server engine: " + engine)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      retryBudget,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control server stopped", "addr", srv.Addr, "err", err)
		}
	}()
	slog.Info("control server listening", "addr", srv.Addr, "engine", engine, "base", r.basePath)
	return srv, nil
}

// echoHandler mounts the gin router under the base path of an echo instance.
func echoHandler(r *Router) http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	h := echo.WrapHandler(r.Handler())
	base := r.basePath
	e.Any(base+"/*", h)
	if base != "" {
		e.Any(base, h)
	}
	return e
}
