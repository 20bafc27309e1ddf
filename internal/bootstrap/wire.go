package bootstrap

import (
	"fmt"

	"github.com/loykin/sidecar/internal/config"
	"github.com/loykin/sidecar/internal/health"
	"github.com/loykin/sidecar/internal/history"
	"github.com/loykin/sidecar/internal/launch"
	"github.com/loykin/sidecar/internal/lifecycle"
	"github.com/loykin/sidecar/internal/resource"
)

// New picks the supervisor for cfg.Mode once, at start.
func New(cfg *config.Config, sinks ...history.Sink) (Supervisor, error) {
	if cfg.Mode == config.ModeDevelopment {
		return NewDevelopment(), nil
	}
	r := cfg.Runtime
	childEnv, err := r.ChildEnv()
	if err != nil {
		return nil, fmt.Errorf("runtime environment: %w", err)
	}

	lc := launch.Config{
		Resources:       resource.NewResolver(r.ResourceDir),
		BundledScript:   r.BundledScript,
		BinaryDir:       r.BinaryDir,
		BinaryPrefix:    r.BinaryPrefix,
		LegacyScript:    r.LegacyScript,
		FallbackCommand: r.FallbackCommand,
		Env:             childEnv,
	}
	if r.Log.Captures() {
		lc.Stdio = r.Log.ProcessWriters
	}

	prober := &health.Prober{
		Host:           r.Host,
		Port:           r.Port,
		Path:           r.HealthPath,
		ConnectTimeout: r.ConnectTimeout,
		ReadTimeout:    r.ReadTimeout,
	}
	waiter := &health.Waiter{Probe: prober, Interval: r.ProbeInterval}
	slot := lifecycle.NewSlot(lifecycle.WithStopTimeout(r.StopTimeout), lifecycle.WithPIDFile(r.PIDFile))

	return NewProduction(launch.New(lc), waiter,
		WithHealthTimeout(r.HealthTimeout),
		WithSlot(slot),
		WithSinks(sinks...),
	), nil
}
