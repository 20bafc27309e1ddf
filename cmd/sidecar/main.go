package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	clientFlags := &ClientFlags{}
	probeFlags := &ProbeFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags),
		createStatusCommand(clientFlags),
		createRetryCommand(clientFlags),
		createProcessCommand(clientFlags),
		createProbeCommand(globalFlags, probeFlags),
		createPlatformCommand(globalFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "sidecar",
		Short: "Local runtime supervisor",
		Long: `Sidecar launches the local API runtime, waits for it to become healthy,
keeps exactly one instance alive and reports its status over a small HTTP API.

Examples:
  sidecar run --config=sidecar.toml
  sidecar status
  sidecar retry --api-url=http://127.0.0.1:8788/runtime
  sidecar probe --wait`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createRunCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [config.toml]",
		Short: "Bootstrap the runtime and supervise it until interrupted",
		Long: `Load the configuration, reap a runtime left over from a previous run,
start the control server and bootstrap the runtime. SIGINT or SIGTERM stops
the runtime and exits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return runDaemon(cmd.Context(), path)
		},
	}
}

func addClientFlags(cmd *cobra.Command, f *ClientFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "control API base URL (default http://127.0.0.1:8788/runtime)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 30*time.Second, "request timeout")
}

func createStatusCommand(f *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the runtime status snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), *f)
		},
	}
	addClientFlags(cmd, f)
	return cmd
}

func createRetryCommand(f *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Stop the runtime, relaunch it and wait for health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetry(cmd.Context(), cmd.OutOrStdout(), *f)
		},
	}
	addClientFlags(cmd, f)
	return cmd
}

func createProcessCommand(f *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Show pid and resource usage of the managed runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), cmd.OutOrStdout(), *f)
		},
	}
	addClientFlags(cmd, f)
	return cmd
}

func createProbeCommand(globalFlags *GlobalFlags, f *ProbeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the runtime health endpoint",
		Long: `Probe the runtime health endpoint once, or with --wait poll it until it
answers 200 or the timeout elapses. Endpoint defaults come from --config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, globalFlags.ConfigPath, *f)
		},
	}
	cmd.Flags().StringVar(&f.Host, "host", "", "health endpoint host")
	cmd.Flags().IntVar(&f.Port, "port", 0, "health endpoint port")
	cmd.Flags().StringVar(&f.Path, "path", "", "health endpoint path")
	cmd.Flags().BoolVar(&f.Wait, "wait", false, "poll until healthy or timeout")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "overall wait timeout (with --wait)")
	return cmd
}

func createPlatformCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "platform",
		Short: "Show the bundled binary path for this host",
		Long: `Print the current OS/arch, the bundled binary path built from
runtime.binary_dir and runtime.binary_prefix, and where it resolves under
runtime.resource_dir.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlatform(cmd.OutOrStdout(), globalFlags.ConfigPath)
		},
	}
}
