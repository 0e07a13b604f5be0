package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"MEDIAPROC_CONFIG",
	"MEDIAPROC_API_URL",
	"VITE_API_URL",
	"MEDIAPROC_NAMESPACE",
	"MEDIAPROC_SOCKET_PATH",
	"MEDIAPROC_HANDSHAKE_TIMEOUT_MS",
	"MEDIAPROC_TOKEN",
	"MEDIAPROC_TOKEN_COMMAND",
	"MEDIAPROC_SIGNOUT_COMMAND",
	"MEDIAPROC_SIGNOUT_DELAY_MS",
	"MEDIAPROC_EXPORT_DIR",
	"MEDIAPROC_LOG_LEVEL",
	"MEDIAPROC_LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresEndpoint(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if !errors.Is(err, ErrMissingEndpoint) {
		t.Fatalf("expected ErrMissingEndpoint, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDIAPROC_API_URL", "http://localhost:5000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Backend.URL != "http://localhost:5000" {
		t.Fatalf("unexpected url: %q", cfg.Backend.URL)
	}
	if cfg.Backend.Namespace != "/" || cfg.Backend.SocketPath != "/socket.io/" {
		t.Fatalf("unexpected backend defaults: %+v", cfg.Backend)
	}
	if cfg.Backend.HandshakeTimeout != 10*time.Second {
		t.Fatalf("unexpected handshake timeout: %s", cfg.Backend.HandshakeTimeout)
	}
	if cfg.Auth.SignOutDelay != 2*time.Second {
		t.Fatalf("unexpected sign-out delay: %s", cfg.Auth.SignOutDelay)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadFallsBackToViteURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("VITE_API_URL", "https://vite.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Backend.URL != "https://vite.example.com" {
		t.Fatalf("expected vite fallback, got %q", cfg.Backend.URL)
	}

	t.Setenv("MEDIAPROC_API_URL", "https://primary.example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Backend.URL != "https://primary.example.com" {
		t.Fatalf("expected primary url to win, got %q", cfg.Backend.URL)
	}
}

func TestLoadRespectsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDIAPROC_API_URL", "http://backend:5000")
	t.Setenv("MEDIAPROC_NAMESPACE", "media")
	t.Setenv("MEDIAPROC_SOCKET_PATH", "/ws/")
	t.Setenv("MEDIAPROC_HANDSHAKE_TIMEOUT_MS", "1500")
	t.Setenv("MEDIAPROC_TOKEN", "tok")
	t.Setenv("MEDIAPROC_TOKEN_COMMAND", "idp token")
	t.Setenv("MEDIAPROC_SIGNOUT_COMMAND", "idp logout")
	t.Setenv("MEDIAPROC_SIGNOUT_DELAY_MS", "250")
	t.Setenv("MEDIAPROC_EXPORT_DIR", "/tmp/exports")
	t.Setenv("MEDIAPROC_LOG_LEVEL", "DEBUG")
	t.Setenv("MEDIAPROC_LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Backend.Namespace != "/media" || cfg.Backend.SocketPath != "/ws/" || cfg.Backend.HandshakeTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected backend config: %+v", cfg.Backend)
	}
	if cfg.Auth.Token != "tok" || cfg.Auth.TokenCommand != "idp token" || cfg.Auth.SignOutCommand != "idp logout" {
		t.Fatalf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.Auth.SignOutDelay != 250*time.Millisecond {
		t.Fatalf("unexpected sign-out delay: %s", cfg.Auth.SignOutDelay)
	}
	if cfg.Export.Dir != "/tmp/exports" {
		t.Fatalf("unexpected export dir: %q", cfg.Export.Dir)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDIAPROC_API_URL", "http://backend")
	t.Setenv("MEDIAPROC_HANDSHAKE_TIMEOUT_MS", "soon")
	t.Setenv("MEDIAPROC_SIGNOUT_DELAY_MS", "-5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Backend.HandshakeTimeout != 10*time.Second {
		t.Fatalf("unexpected handshake timeout: %s", cfg.Backend.HandshakeTimeout)
	}
	if cfg.Auth.SignOutDelay != 2*time.Second {
		t.Fatalf("unexpected sign-out delay: %s", cfg.Auth.SignOutDelay)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "mediaproc.yaml")
	content := `backend:
  url: http://from-file:5000
  namespace: /file
  handshake_timeout_ms: 3000
auth:
  token_command: file-idp token
  signout_delay_ms: 500
export:
  dir: /srv/exports
log:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("MEDIAPROC_CONFIG", path)
	t.Setenv("MEDIAPROC_EXPORT_DIR", "/env/exports")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Backend.URL != "http://from-file:5000" || cfg.Backend.Namespace != "/file" {
		t.Fatalf("unexpected backend from file: %+v", cfg.Backend)
	}
	if cfg.Backend.HandshakeTimeout != 3*time.Second || cfg.Auth.SignOutDelay != 500*time.Millisecond {
		t.Fatalf("unexpected durations from file: %+v %+v", cfg.Backend, cfg.Auth)
	}
	if cfg.Auth.TokenCommand != "file-idp token" {
		t.Fatalf("unexpected token command: %q", cfg.Auth.TokenCommand)
	}
	if cfg.Export.Dir != "/env/exports" {
		t.Fatalf("expected env to override file, got %q", cfg.Export.Dir)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("unexpected log level: %q", cfg.Log.Level)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("backend: [unterminated"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("MEDIAPROC_CONFIG", path)
	t.Setenv("MEDIAPROC_API_URL", "http://backend")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}

	t.Setenv("MEDIAPROC_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected read error for missing file")
	}
}

func TestNewLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("expected json warn record, got %s", out)
	}

	buf.Reset()
	NewLogger(LogConfig{}, &buf).Info("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Fatalf("expected text record, got %s", buf.String())
	}
}

func TestDescribeHidesToken(t *testing.T) {
	cfg := Config{Auth: AuthConfig{Token: "secret"}}
	info := cfg.Describe()
	if info["tokenSource"] != "static" {
		t.Fatalf("unexpected token source: %q", info["tokenSource"])
	}
	for key, value := range info {
		if strings.Contains(value, "secret") {
			t.Fatalf("token leaked via %s", key)
		}
	}
}
