package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/sidecar/internal/config"
	"github.com/loykin/sidecar/internal/health"
	"github.com/loykin/sidecar/internal/launch"
	"github.com/loykin/sidecar/internal/platform"
	"github.com/loykin/sidecar/internal/resource"
	"github.com/loykin/sidecar/pkg/client"
)

func newClient(f ClientFlags) *client.Client {
	return client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
}

func runStatus(ctx context.Context, w io.Writer, f ClientFlags) error {
	snap, err := newClient(f).Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return printJSON(w, snap)
}

func runRetry(ctx context.Context, w io.Writer, f ClientFlags) error {
	snap, err := newClient(f).Retry(ctx)
	if err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := printJSON(w, snap); err != nil {
		return err
	}
	if !snap.Available {
		return errors.New("runtime unavailable: " + snap.Message)
	}
	return nil
}

func runProcess(ctx context.Context, w io.Writer, f ClientFlags) error {
	info, err := newClient(f).Process(ctx)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}
	return printJSON(w, info)
}

// probeFor builds a prober from config with flag overrides applied.
func probeFor(configPath string, f ProbeFlags) (*health.Prober, *config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	r := cfg.Runtime
	p := &health.Prober{
		Host:           r.Host,
		Port:           r.Port,
		Path:           r.HealthPath,
		ConnectTimeout: r.ConnectTimeout,
		ReadTimeout:    r.ReadTimeout,
	}
	if f.Host != "" {
		p.Host = f.Host
	}
	if f.Port != 0 {
		p.Port = f.Port
	}
	if f.Path != "" {
		p.Path = f.Path
	}
	return p, cfg, nil
}

func runProbe(cmd *cobra.Command, configPath string, f ProbeFlags) error {
	p, cfg, err := probeFor(configPath, f)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	url := "http://" + p.Addr() + p.Path
	if !f.Wait {
		if err := p.ProbeOnce(); err != nil {
			return fmt.Errorf("%s: %w", url, err)
		}
		_, _ = fmt.Fprintf(w, "%s healthy\n", url)
		return nil
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = cfg.Runtime.HealthTimeout
	}
	waiter := &health.Waiter{Probe: p, Interval: cfg.Runtime.ProbeInterval}
	start := time.Now()
	if err := waiter.WaitHealthy(timeout); err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}
	_, _ = fmt.Fprintf(w, "%s healthy after %s\n", url, time.Since(start).Round(time.Millisecond))
	return nil
}

// runPlatform reports the bundled binary the launcher would resolve with the
// configured binary_dir and binary_prefix.
func runPlatform(w io.Writer, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	r := cfg.Runtime
	cur := platform.Current()
	_, _ = fmt.Fprintf(w, "platform: %s\n", cur)

	name, err := launch.New(launch.Config{
		Platform:     cur,
		BinaryDir:    r.BinaryDir,
		BinaryPrefix: r.BinaryPrefix,
	}).BundledBinary()
	if err != nil {
		_, _ = fmt.Fprintf(w, "bundled binary: unsupported (%v)\n", err)
		return nil
	}
	_, _ = fmt.Fprintf(w, "bundled binary: %s\n", name)
	if p, err := resource.NewResolver(r.ResourceDir).Resolve(name); err == nil {
		_, _ = fmt.Fprintf(w, "resolved: %s\n", p)
	} else {
		_, _ = fmt.Fprintf(w, "resolved: missing (%v)\n", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
