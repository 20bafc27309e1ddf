// Package launch starts the runtime server, preferring the bundled binary and
// falling back to a runtime installed on the host.
package launch

import (
	"io"
	"log/slog"
	"os/exec"
	"path"

	"github.com/loykin/sidecar/internal/platform"
	"github.com/loykin/sidecar/internal/process"
	"github.com/loykin/sidecar/internal/status"
)

const (
	DefaultName            = "runtime"
	DefaultBundledScript   = "sidecar/server.bundle.cjs"
	DefaultBinaryDir       = "binaries"
	DefaultBinaryPrefix    = "neural-os-node"
	DefaultLegacyScript    = "server.mjs"
	DefaultFallbackCommand = "node"

	fallbackWarning = "Bundled sidecar launch failed, using host runtime fallback: "
)

// Resources resolves bundled artifacts by logical name.
type Resources interface {
	Resolve(name string) (string, error)
}

// StdioFunc opens the writers for a child's stdout and stderr.
type StdioFunc func(name string) (stdout, stderr io.WriteCloser, err error)

type Config struct {
	Name      string
	Resources Resources
	Table     platform.Table
	Platform  platform.Platform

	BundledScript   string
	BinaryDir       string
	BinaryPrefix    string
	LegacyScript    string
	FallbackCommand string

	// Env is the complete child environment, port aliases included.
	Env   []string
	Stdio StdioFunc

	LookPath func(file string) (string, error)
	Start    func(process.Spec) (*process.Process, error)
}

// Outcome is a started process and the strategy that produced it.
// Warning is set when the fallback was used and names the primary failure.
type Outcome struct {
	Process    *process.Process
	LaunchMode status.LaunchMode
	Warning    string
}

type Resolver struct {
	cfg Config
}

func New(cfg Config) *Resolver {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Table == nil {
		cfg.Table = platform.DefaultTable()
	}
	if cfg.Platform == (platform.Platform{}) {
		cfg.Platform = platform.Current()
	}
	cfg.BundledScript = strOr(cfg.BundledScript, DefaultBundledScript)
	cfg.BinaryDir = strOr(cfg.BinaryDir, DefaultBinaryDir)
	cfg.BinaryPrefix = strOr(cfg.BinaryPrefix, DefaultBinaryPrefix)
	cfg.LegacyScript = strOr(cfg.LegacyScript, DefaultLegacyScript)
	cfg.FallbackCommand = strOr(cfg.FallbackCommand, DefaultFallbackCommand)
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}
	if cfg.Start == nil {
		cfg.Start = process.Start
	}
	return &Resolver{cfg: cfg}
}

// Spawn tries the bundled binary first and the host runtime second.
// When both fail the returned *CombinedError names both causes.
func (r *Resolver) Spawn() (Outcome, error) {
	p, primary := r.spawnBundled()
	if primary == nil {
		slog.Info("runtime launched", "mode", status.LaunchSidecarBundled, "pid", p.PID())
		return Outcome{Process: p, LaunchMode: status.LaunchSidecarBundled}, nil
	}
	slog.Warn("bundled sidecar launch failed", "err", primary)

	p, fallback := r.spawnFallback()
	if fallback != nil {
		return Outcome{}, &CombinedError{Primary: primary, Fallback: fallback}
	}
	slog.Info("runtime launched", "mode", status.LaunchFallbackHostRuntime, "pid", p.PID())
	return Outcome{
		Process:    p,
		LaunchMode: status.LaunchFallbackHostRuntime,
		Warning:    fallbackWarning + primary.Error(),
	}, nil
}

// BundledBinary is the logical resource name of the bundled binary for the
// configured platform.
func (r *Resolver) BundledBinary() (string, error) {
	name, err := r.cfg.Table.BinaryName(r.cfg.BinaryPrefix, r.cfg.Platform)
	if err != nil {
		return "", err
	}
	return path.Join(r.cfg.BinaryDir, name), nil
}

func (r *Resolver) spawnBundled() (*process.Process, error) {
	binName, err := r.BundledBinary()
	if err != nil {
		return nil, err
	}
	bin, err := r.cfg.Resources.Resolve(binName)
	if err != nil {
		return nil, err
	}
	script, err := r.cfg.Resources.Resolve(r.cfg.BundledScript)
	if err != nil {
		return nil, err
	}
	return r.start("bundled sidecar", bin, script)
}

func (r *Resolver) spawnFallback() (*process.Process, error) {
	script, err := r.cfg.Resources.Resolve(r.cfg.LegacyScript)
	if err != nil {
		return nil, err
	}
	bin, err := r.cfg.LookPath(r.cfg.FallbackCommand)
	if err != nil {
		return nil, &SpawnError{Strategy: "host runtime", Command: r.cfg.FallbackCommand, Err: err}
	}
	return r.start("host runtime", bin, script)
}

func (r *Resolver) start(strategy, bin, script string) (*process.Process, error) {
	spec := process.Spec{
		Name: r.cfg.Name,
		Path: bin,
		Args: []string{script},
		Env:  r.cfg.Env,
	}
	if r.cfg.Stdio != nil {
		out, errw, err := r.cfg.Stdio(r.cfg.Name)
		if err != nil {
			slog.Warn("runtime output capture unavailable, discarding", "err", err)
		} else {
			spec.Stdout, spec.Stderr = out, errw
		}
	}
	p, err := r.cfg.Start(spec)
	if err != nil {
		return nil, &SpawnError{Strategy: strategy, Command: spec.String(), Err: err}
	}
	return p, nil
}

func strOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
