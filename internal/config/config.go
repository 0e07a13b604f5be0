package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mediaproc/internal/domain"
)

// ErrMissingEndpoint means no processing backend address was configured.
var ErrMissingEndpoint = domain.ErrMissingEndpoint

const (
	defaultNamespace        = "/"
	defaultSocketPath       = "/socket.io/"
	defaultHandshakeTimeout = 10 * time.Second
	defaultSignOutDelay     = 2 * time.Second
)

// Config stores runtime configuration for the processing client.
type Config struct {
	Backend BackendConfig
	Auth    AuthConfig
	Export  ExportConfig
	Log     LogConfig
}

type BackendConfig struct {
	URL              string
	Namespace        string
	SocketPath       string
	HandshakeTimeout time.Duration
}

type AuthConfig struct {
	Token          string
	TokenCommand   string
	SignOutCommand string
	SignOutDelay   time.Duration
}

type ExportConfig struct {
	Dir string
}

type LogConfig struct {
	Level  string
	Format string
}

// fileConfig is the optional YAML file layout. Every value is a fallback for
// the matching environment variable.
type fileConfig struct {
	Backend struct {
		URL                string `yaml:"url"`
		Namespace          string `yaml:"namespace"`
		SocketPath         string `yaml:"socket_path"`
		HandshakeTimeoutMS int    `yaml:"handshake_timeout_ms"`
	} `yaml:"backend"`
	Auth struct {
		Token          string `yaml:"token"`
		TokenCommand   string `yaml:"token_command"`
		SignOutCommand string `yaml:"signout_command"`
		SignOutDelayMS int    `yaml:"signout_delay_ms"`
	} `yaml:"auth"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load resolves configuration from the optional MEDIAPROC_CONFIG file,
// environment variables and defaults, in increasing order of precedence.
func Load() (Config, error) {
	file, err := readFile(strings.TrimSpace(os.Getenv("MEDIAPROC_CONFIG")))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Backend: BackendConfig{
			URL: firstNonEmpty(
				os.Getenv("MEDIAPROC_API_URL"),
				os.Getenv("VITE_API_URL"),
				file.Backend.URL,
			),
			Namespace:  envOrDefault("MEDIAPROC_NAMESPACE", firstNonEmpty(file.Backend.Namespace, defaultNamespace)),
			SocketPath: envOrDefault("MEDIAPROC_SOCKET_PATH", firstNonEmpty(file.Backend.SocketPath, defaultSocketPath)),
			HandshakeTimeout: envOrDefaultMillis("MEDIAPROC_HANDSHAKE_TIMEOUT_MS",
				millisOr(file.Backend.HandshakeTimeoutMS, defaultHandshakeTimeout)),
		},
		Auth: AuthConfig{
			Token:          envOrDefault("MEDIAPROC_TOKEN", strings.TrimSpace(file.Auth.Token)),
			TokenCommand:   envOrDefault("MEDIAPROC_TOKEN_COMMAND", strings.TrimSpace(file.Auth.TokenCommand)),
			SignOutCommand: envOrDefault("MEDIAPROC_SIGNOUT_COMMAND", strings.TrimSpace(file.Auth.SignOutCommand)),
			SignOutDelay: envOrDefaultMillis("MEDIAPROC_SIGNOUT_DELAY_MS",
				millisOr(file.Auth.SignOutDelayMS, defaultSignOutDelay)),
		},
		Export: ExportConfig{
			Dir: envOrDefault("MEDIAPROC_EXPORT_DIR", strings.TrimSpace(file.Export.Dir)),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envOrDefault("MEDIAPROC_LOG_LEVEL", firstNonEmpty(file.Log.Level, "info"))),
			Format: strings.ToLower(envOrDefault("MEDIAPROC_LOG_FORMAT", firstNonEmpty(file.Log.Format, "text"))),
		},
	}

	if cfg.Backend.URL == "" {
		return Config{}, fmt.Errorf("%w (set MEDIAPROC_API_URL)", ErrMissingEndpoint)
	}
	if !strings.HasPrefix(cfg.Backend.Namespace, "/") {
		cfg.Backend.Namespace = "/" + cfg.Backend.Namespace
	}
	if cfg.Backend.HandshakeTimeout <= 0 {
		cfg.Backend.HandshakeTimeout = defaultHandshakeTimeout
	}

	return cfg, nil
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Describe returns the non-sensitive settings, suitable for display.
func (c Config) Describe() map[string]string {
	tokenSource := "none"
	switch {
	case c.Auth.TokenCommand != "":
		tokenSource = "command"
	case c.Auth.Token != "":
		tokenSource = "static"
	}
	return map[string]string{
		"backendURL":       c.Backend.URL,
		"namespace":        c.Backend.Namespace,
		"socketPath":       c.Backend.SocketPath,
		"handshakeTimeout": c.Backend.HandshakeTimeout.String(),
		"tokenSource":      tokenSource,
		"signOutDelay":     c.Auth.SignOutDelay.String(),
		"exportDir":        c.Export.Dir,
		"logLevel":         c.Log.Level,
		"logFormat":        c.Log.Format,
	}
}

func readFile(path string) (fileConfig, error) {
	var file fileConfig
	if path == "" {
		return file, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func millisOr(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	ms := envOrDefaultInt(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
