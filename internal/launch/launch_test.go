//go:build !windows

package launch

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/sidecar/internal/platform"
	"github.com/loykin/sidecar/internal/process"
	"github.com/loykin/sidecar/internal/resource"
	"github.com/loykin/sidecar/internal/status"
)

var darwinArm = platform.Platform{OS: "darwin", Arch: "arm64"}

func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, filepath.FromSlash(n))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("#"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

// recorder stands in for process.Start: it remembers each Spec and starts a
// harmless sleeper, or fails for paths listed in fail.
type recorder struct {
	t     *testing.T
	specs []process.Spec
	fail  map[string]error
}

func (r *recorder) start(spec process.Spec) (*process.Process, error) {
	r.specs = append(r.specs, spec)
	if err := r.fail[spec.Path]; err != nil {
		return nil, err
	}
	p, err := process.Start(process.Spec{Name: spec.Name, Path: "/bin/sh", Args: []string{"-c", "sleep 30"}})
	if err != nil {
		return nil, err
	}
	r.t.Cleanup(func() { _ = p.Kill() })
	return p, nil
}

func newResolver(t *testing.T, root string, pl platform.Platform, rec *recorder, lookPath func(string) (string, error)) *Resolver {
	t.Helper()
	if lookPath == nil {
		lookPath = func(string) (string, error) { return "/usr/local/bin/node", nil }
	}
	return New(Config{
		Resources: resource.NewResolver(root),
		Platform:  pl,
		Env:       []string{"NEURAL_OS_SERVER_PORT=8787", "NEURAL_COMPUTER_SERVER_PORT=8787"},
		LookPath:  lookPath,
		Start:     rec.start,
	})
}

func TestSpawn_Bundled(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "binaries/neural-os-node-aarch64-apple-darwin", "sidecar/server.bundle.cjs", "server.mjs")
	rec := &recorder{t: t}

	out, err := newResolver(t, root, darwinArm, rec, nil).Spawn()
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if out.LaunchMode != status.LaunchSidecarBundled || out.Warning != "" || out.Process == nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(rec.specs) != 1 {
		t.Fatalf("expected one start, got %d", len(rec.specs))
	}
	spec := rec.specs[0]
	if filepath.Base(spec.Path) != "neural-os-node-aarch64-apple-darwin" {
		t.Fatalf("unexpected binary %q", spec.Path)
	}
	if len(spec.Args) != 1 || !strings.HasSuffix(spec.Args[0], filepath.FromSlash("sidecar/server.bundle.cjs")) {
		t.Fatalf("unexpected args %v", spec.Args)
	}
	if len(spec.Env) != 2 || spec.Stdout != nil || spec.Stderr != nil {
		t.Fatalf("env or stdio not as configured: %+v", spec)
	}
}

func TestSpawn_UnsupportedPlatformFallsBack(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "server.mjs")
	rec := &recorder{t: t}

	out, err := newResolver(t, root, platform.Platform{OS: "linux", Arch: "amd64"}, rec, nil).Spawn()
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if out.LaunchMode != status.LaunchFallbackHostRuntime {
		t.Fatalf("expected fallback, got %s", out.LaunchMode)
	}
	want := "Bundled sidecar launch failed, using host runtime fallback: unsupported sidecar platform: linux"
	if out.Warning != want {
		t.Fatalf("warning = %q, want %q", out.Warning, want)
	}
	if len(rec.specs) != 1 || rec.specs[0].Path != "/usr/local/bin/node" {
		t.Fatalf("fallback should start the host runtime once, got %+v", rec.specs)
	}
	if !strings.HasSuffix(rec.specs[0].Args[0], "server.mjs") {
		t.Fatalf("fallback should run the legacy script, got %v", rec.specs[0].Args)
	}
}

func TestSpawn_BundledStartFailureFallsBack(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "binaries/neural-os-node-aarch64-apple-darwin", "sidecar/server.bundle.cjs", "server.mjs")
	bin := filepath.Join(root, "binaries", "neural-os-node-aarch64-apple-darwin")
	rec := &recorder{t: t, fail: map[string]error{bin: errors.New("exec format error")}}

	out, err := newResolver(t, root, darwinArm, rec, nil).Spawn()
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if out.LaunchMode != status.LaunchFallbackHostRuntime || !strings.Contains(out.Warning, "exec format error") {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(rec.specs) != 2 {
		t.Fatalf("expected bundled then fallback, got %d starts", len(rec.specs))
	}
}

func TestSpawn_MissingBundledArtifactFallsBack(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "server.mjs")
	rec := &recorder{t: t}

	out, err := newResolver(t, root, darwinArm, rec, nil).Spawn()
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if out.LaunchMode != status.LaunchFallbackHostRuntime || !strings.Contains(out.Warning, "neural-os-node-aarch64-apple-darwin") {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestSpawn_BothFail(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "server.mjs")
	rec := &recorder{t: t}
	noNode := func(string) (string, error) { return "", errors.New("executable file not found in $PATH") }

	out, err := newResolver(t, root, platform.Platform{OS: "darwin", Arch: "386"}, rec, noNode).Spawn()
	if err == nil {
		t.Fatalf("expected failure, got %+v", out)
	}
	msg := err.Error()
	if !strings.Contains(msg, "unsupported sidecar architecture: 386") || !strings.Contains(msg, "not found in $PATH") {
		t.Fatalf("combined error must name both causes: %q", msg)
	}
	if !strings.HasPrefix(msg, "preferred sidecar launch failed: ") {
		t.Fatalf("unexpected format %q", msg)
	}
	var unsup *platform.UnsupportedError
	var spawn *SpawnError
	if !errors.As(err, &unsup) || !errors.As(err, &spawn) {
		t.Fatalf("combined error should unwrap to both causes: %v", err)
	}
	if len(rec.specs) != 0 {
		t.Fatalf("nothing should have been started, got %d", len(rec.specs))
	}
}

func TestSpawn_StdioCapture(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "binaries/neural-os-node-aarch64-apple-darwin", "sidecar/server.bundle.cjs")
	rec := &recorder{t: t}
	r := newResolver(t, root, darwinArm, rec, nil)
	var asked string
	r.cfg.Stdio = func(name string) (io.WriteCloser, io.WriteCloser, error) {
		asked = name
		out, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
		if err != nil {
			return nil, nil, err
		}
		t.Cleanup(func() { _ = out.Close() })
		return out, out, nil
	}
	if _, err := r.Spawn(); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if asked != DefaultName || rec.specs[0].Stdout == nil {
		t.Fatalf("stdio func not used: asked=%q spec=%+v", asked, rec.specs[0])
	}
}

func TestSpawn_RealProcess(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "server.mjs")
	r := New(Config{
		Resources: resource.NewResolver(root),
		Platform:  platform.Platform{OS: "plan9", Arch: "amd64"},
		// a "host runtime" that ignores its script argument and exits
		FallbackCommand: "true",
	})
	out, err := r.Spawn()
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	select {
	case <-out.Process.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("fallback process did not exit")
	}
}
