//go:build !windows

package bootstrap

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/loykin/sidecar/internal/config"
	"github.com/loykin/sidecar/internal/status"
)

func TestNew_Development(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Mode = config.ModeDevelopment
	sup, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sup.(*DevelopmentSupervisor); !ok {
		t.Fatalf("expected development supervisor, got %T", sup)
	}
}

func TestNew_ProductionFallbackEndToEnd(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()
	host, portStr, _ := net.SplitHostPort(api.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	res := t.TempDir()
	// the "legacy script" is run by sh and just idles like a server would
	if err := os.WriteFile(filepath.Join(res, "server.mjs"), []byte("sleep 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Runtime.ResourceDir = res
	cfg.Runtime.Host = host
	cfg.Runtime.Port = port
	cfg.Runtime.FallbackCommand = "sh"
	cfg.Runtime.HealthTimeout = 2 * time.Second
	cfg.Runtime.PIDFile = filepath.Join(t.TempDir(), "runtime.pid")
	cfg.Runtime.Log.File.Dir = t.TempDir()

	sup, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Shutdown()

	snap := sup.Bootstrap()
	if !snap.Available || snap.LaunchMode != status.LaunchFallbackHostRuntime || snap.Message == "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if sup.PID() == 0 {
		t.Fatalf("process not installed")
	}
	if _, err := os.Stat(cfg.Runtime.PIDFile); err != nil {
		t.Fatalf("pid file not written: %v", err)
	}

	sup.Shutdown()
	if sup.PID() != 0 {
		t.Fatalf("process still installed after shutdown")
	}
	if _, err := os.Stat(cfg.Runtime.PIDFile); err == nil {
		t.Fatalf("pid file should be removed after shutdown")
	}
}
