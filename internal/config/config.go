package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/sidecar/internal/env"
	"github.com/loykin/sidecar/internal/logger"
	"github.com/spf13/viper"
)

const (
	ModeProduction  = "production"
	ModeDevelopment = "development"

	EngineGin  = "gin"
	EngineEcho = "echo"

	EnvPrefix = "SIDECAR"
)

// Config is the top-level TOML structure. Every key has a default, so an
// absent file is a valid configuration.
type Config struct {
	Mode    string        `toml:"mode" mapstructure:"mode"`
	Runtime RuntimeConfig `toml:"runtime" mapstructure:"runtime"`
	Log     logger.Config `toml:"log" mapstructure:"log"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
}

type RuntimeConfig struct {
	ResourceDir string `toml:"resource_dir" mapstructure:"resource_dir"`

	Host           string        `toml:"host" mapstructure:"host"`
	Port           int           `toml:"port" mapstructure:"port"`
	HealthPath     string        `toml:"health_path" mapstructure:"health_path"`
	ConnectTimeout time.Duration `toml:"connect_timeout" mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `toml:"read_timeout" mapstructure:"read_timeout"`
	ProbeInterval  time.Duration `toml:"probe_interval" mapstructure:"probe_interval"`
	HealthTimeout  time.Duration `toml:"health_timeout" mapstructure:"health_timeout"`
	StopTimeout    time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`

	PortEnv  []string `toml:"port_env" mapstructure:"port_env"`
	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`

	BundledScript   string `toml:"bundled_script" mapstructure:"bundled_script"`
	BinaryDir       string `toml:"binary_dir" mapstructure:"binary_dir"`
	BinaryPrefix    string `toml:"binary_prefix" mapstructure:"binary_prefix"`
	LegacyScript    string `toml:"legacy_script" mapstructure:"legacy_script"`
	FallbackCommand string `toml:"fallback_command" mapstructure:"fallback_command"`
	PIDFile         string `toml:"pid_file" mapstructure:"pid_file"`

	// Log captures the runtime's stdout and stderr; only the file settings apply.
	Log logger.Config `toml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
	Engine   string `toml:"engine" mapstructure:"engine"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

type HistoryConfig struct {
	Enabled bool     `toml:"enabled" mapstructure:"enabled"`
	DSNs    []string `toml:"dsns" mapstructure:"dsns"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeProduction)

	v.SetDefault("runtime.resource_dir", "")
	v.SetDefault("runtime.host", "127.0.0.1")
	v.SetDefault("runtime.port", 8787)
	v.SetDefault("runtime.health_path", "/api/health")
	v.SetDefault("runtime.connect_timeout", "450ms")
	v.SetDefault("runtime.read_timeout", "450ms")
	v.SetDefault("runtime.probe_interval", "140ms")
	v.SetDefault("runtime.health_timeout", "7s")
	v.SetDefault("runtime.stop_timeout", "3s")
	v.SetDefault("runtime.port_env", []string{"NEURAL_OS_SERVER_PORT", "NEURAL_COMPUTER_SERVER_PORT"})
	v.SetDefault("runtime.env", []string{})
	v.SetDefault("runtime.env_files", []string{})
	v.SetDefault("runtime.bundled_script", "sidecar/server.bundle.cjs")
	v.SetDefault("runtime.binary_dir", "binaries")
	v.SetDefault("runtime.binary_prefix", "neural-os-node")
	v.SetDefault("runtime.legacy_script", "server.mjs")
	v.SetDefault("runtime.fallback_command", "node")
	v.SetDefault("runtime.pid_file", "")
	v.SetDefault("runtime.log.file.dir", "")
	v.SetDefault("runtime.log.file.stdout", "")
	v.SetDefault("runtime.log.file.stderr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatColor)
	v.SetDefault("log.file.path", "")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen", "127.0.0.1:8788")
	v.SetDefault("server.base_path", "/runtime")
	v.SetDefault("server.engine", EngineGin)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsns", []string{})
}

// LoadConfig reads path (TOML) over the defaults and applies SIDECAR_*
// environment overrides, e.g. SIDECAR_RUNTIME_PORT. An empty path loads
// defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail much later at runtime.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeProduction, ModeDevelopment:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeProduction, ModeDevelopment, c.Mode)
	}
	r := c.Runtime
	if r.Host == "" {
		return fmt.Errorf("runtime.host is required")
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("runtime.port out of range: %d", r.Port)
	}
	if !strings.HasPrefix(r.HealthPath, "/") {
		return fmt.Errorf("runtime.health_path must start with '/': %q", r.HealthPath)
	}
	for name, d := range map[string]time.Duration{
		"connect_timeout": r.ConnectTimeout,
		"read_timeout":    r.ReadTimeout,
		"probe_interval":  r.ProbeInterval,
		"health_timeout":  r.HealthTimeout,
		"stop_timeout":    r.StopTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("runtime.%s must be positive, got %v", name, d)
		}
	}
	if len(r.PortEnv) == 0 {
		return fmt.Errorf("runtime.port_env must name at least one variable")
	}
	if r.FallbackCommand == "" {
		return fmt.Errorf("runtime.fallback_command is required")
	}
	switch c.Server.Engine {
	case EngineGin, EngineEcho:
	default:
		return fmt.Errorf("server.engine must be %q or %q, got %q", EngineGin, EngineEcho, c.Server.Engine)
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required when the server is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" && !c.Server.Enabled {
		return fmt.Errorf("metrics.listen is required when the control server is disabled")
	}
	return nil
}

// ChildEnv composes the runtime's environment: the OS environment, then
// env_files in order, then env, then every port_env alias set to port.
func (r RuntimeConfig) ChildEnv() ([]string, error) {
	e := env.New().FromOS()
	for _, p := range r.EnvFiles {
		pairs, err := LoadEnvFile(p)
		if err != nil {
			return nil, fmt.Errorf("load env file %s: %w", p, err)
		}
		e.With(pairs...)
	}
	return e.With(r.Env...).WithPort(r.Port, r.PortEnv...).Build(), nil
}

// LoadEnvFile parses KEY=VALUE lines. Blank lines and lines starting with #
// are skipped. Keys and values are trimmed; quotes are kept as is.
func LoadEnvFile(path string) ([]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out = append(out, strings.TrimSpace(k)+"="+strings.TrimSpace(v))
	}
	return out, nil
}
