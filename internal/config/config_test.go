package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Engine != EngineTorrent || cfg.PackageURI != DefaultPackageURI {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Torrent.SeedFor.D() != 30*time.Second {
		t.Fatalf("seed_for = %v", cfg.Torrent.SeedFor.D())
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.yaml")
	body := `
engine: aria2
install_path: /games/unv
sample_interval: 250ms
aria2:
  url: http://localhost:6800/jsonrpc
  seed_time: 1m
http:
  addr: 127.0.0.1:9090
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine != EngineAria2 || cfg.InstallPath != "/games/unv" {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if cfg.SampleInterval.D() != 250*time.Millisecond || cfg.Aria2.SeedTime.D() != time.Minute {
		t.Fatalf("durations not decoded: %v %v", cfg.SampleInterval.D(), cfg.Aria2.SeedTime.D())
	}
	if cfg.HTTP.Addr != "127.0.0.1:9090" || cfg.Log.Level != "debug" {
		t.Fatalf("nested sections not decoded: %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.PackageURI != DefaultPackageURI || cfg.Aria2.Timeout.D() != 3*time.Second {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.toml")
	body := `
executable = "daemon-tty"

[torrent]
listen_port = 51413
seed_for = "0s"
no_upload = true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Executable != "daemon-tty" || cfg.Torrent.ListenPort != 51413 || !cfg.Torrent.NoUpload {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if cfg.Torrent.SeedFor.D() != 0 {
		t.Fatalf("seed_for = %v", cfg.Torrent.SeedFor.D())
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	ini := filepath.Join(dir, "launcher.ini")
	_ = os.WriteFile(ini, []byte("x=1"), 0o644)
	if _, err := Load(ini); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("engine: bittorrent\n"), 0o644)
	if _, err := Load(bad); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LAUNCHER_ENGINE":       "aria2",
		"LAUNCHER_INSTALL_PATH": "/opt/unv",
		"LAUNCHER_API_TOKEN":    "sekrit",
		"LAUNCHER_LISTEN_PORT":  "6881",
		"LAUNCHER_SEED_FOR":     "2m",
		"ARIA2_RPC_URL":         "http://aria2:6800/jsonrpc",
		"ARIA2_TIMEOUT_MS":      "1500",
		"LAUNCHER_LOG_FILE":     "/var/log/launcher.log",
	}
	cfg := Default()
	applyEnv(&cfg, func(k string) string { return env[k] })

	if cfg.Engine != EngineAria2 || cfg.InstallPath != "/opt/unv" || cfg.HTTP.Token != "sekrit" {
		t.Fatalf("string overrides not applied: %+v", cfg)
	}
	if cfg.Torrent.ListenPort != 6881 || cfg.Torrent.SeedFor.D() != 2*time.Minute {
		t.Fatalf("torrent overrides not applied: %+v", cfg.Torrent)
	}
	if cfg.Aria2.URL != "http://aria2:6800/jsonrpc" || cfg.Aria2.Timeout.D() != 1500*time.Millisecond {
		t.Fatalf("aria2 overrides not applied: %+v", cfg.Aria2)
	}
	if cfg.Log.File != "/var/log/launcher.log" {
		t.Fatalf("log file = %q", cfg.Log.File)
	}
}

func TestApplyEnvIgnoresGarbage(t *testing.T) {
	env := map[string]string{"ARIA2_TIMEOUT_MS": "-1", "LAUNCHER_SEED_FOR": "soon"}
	cfg := Default()
	applyEnv(&cfg, func(k string) string { return env[k] })
	if cfg.Aria2.Timeout.D() != 3*time.Second || cfg.Torrent.SeedFor.D() != 30*time.Second {
		t.Fatalf("garbage overrides applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Torrent.ListenPort = 70000
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	cfg = Default()
	cfg.Executable = " "
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
