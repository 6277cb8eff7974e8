// Package config loads launcher configuration from an optional YAML or TOML
// file and applies LAUNCHER_* and ARIA2_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/tinoosan/launcher/internal/logging"
	"github.com/tinoosan/launcher/internal/remote"
)

const (
	EngineTorrent = "torrent"
	EngineAria2   = "aria2"

	DefaultPackageURI = "http://cdn.unvanquished.net/current.torrent"
)

type Config struct {
	// Settings selects the settings store: "memory", "postgres", a
	// postgres:// DSN or a .yaml/.toml path.
	Settings    string `yaml:"settings" toml:"settings"`
	InstallPath string `yaml:"install_path" toml:"install_path"`
	VersionURL  string `yaml:"version_url" toml:"version_url"`
	NewsURL     string `yaml:"news_url" toml:"news_url"`
	PackageURI  string `yaml:"package_uri" toml:"package_uri"`
	Executable  string `yaml:"executable" toml:"executable"`
	// Engine is "torrent" (embedded) or "aria2".
	Engine string `yaml:"engine" toml:"engine"`
	// SampleInterval bounds how often progress reaches the orchestrator.
	SampleInterval Duration `yaml:"sample_interval" toml:"sample_interval"`

	Torrent Torrent        `yaml:"torrent" toml:"torrent"`
	Aria2   Aria2          `yaml:"aria2" toml:"aria2"`
	HTTP    HTTP           `yaml:"http" toml:"http"`
	Log     logging.Config `yaml:"log" toml:"log"`
}

type Torrent struct {
	ListenPort int      `yaml:"listen_port" toml:"listen_port"`
	SeedFor    Duration `yaml:"seed_for" toml:"seed_for"`
	NoUpload   bool     `yaml:"no_upload" toml:"no_upload"`
	DisableDHT bool     `yaml:"disable_dht" toml:"disable_dht"`
}

type Aria2 struct {
	URL      string   `yaml:"url" toml:"url"`
	Secret   string   `yaml:"secret" toml:"secret"`
	Timeout  Duration `yaml:"timeout" toml:"timeout"`
	SeedTime Duration `yaml:"seed_time" toml:"seed_time"`
}

// HTTP configures the local control API. An empty Addr disables it.
type HTTP struct {
	Addr  string `yaml:"addr" toml:"addr"`
	Token string `yaml:"token" toml:"token"`
}

// Duration decodes from strings such as "30s" in both file formats.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Settings:       DefaultSettingsPath(),
		InstallPath:    DefaultInstallPath(),
		VersionURL:     remote.DefaultVersionURL,
		NewsURL:        remote.DefaultNewsURL,
		PackageURI:     DefaultPackageURI,
		Executable:     DefaultExecutable(),
		Engine:         EngineTorrent,
		SampleInterval: Duration(500 * time.Millisecond),
		Torrent:        Torrent{SeedFor: Duration(30 * time.Second)},
		Aria2:          Aria2{Timeout: Duration(3 * time.Second), SeedTime: Duration(30 * time.Second)},
		Log:            logging.Config{Level: "info", Format: "json"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies the
// environment. A missing file is an error only when path was given
// explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(b, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("config %q: unsupported extension", path)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	str := func(k string, dst *string) {
		if v := getenv(k); v != "" {
			*dst = v
		}
	}
	dur := func(k string, dst *Duration) {
		if v := getenv(k); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = Duration(d)
			}
		}
	}
	str("LAUNCHER_SETTINGS", &cfg.Settings)
	str("LAUNCHER_INSTALL_PATH", &cfg.InstallPath)
	str("LAUNCHER_VERSION_URL", &cfg.VersionURL)
	str("LAUNCHER_NEWS_URL", &cfg.NewsURL)
	str("LAUNCHER_PACKAGE_URI", &cfg.PackageURI)
	str("LAUNCHER_EXECUTABLE", &cfg.Executable)
	str("LAUNCHER_ENGINE", &cfg.Engine)
	str("LAUNCHER_HTTP_ADDR", &cfg.HTTP.Addr)
	str("LAUNCHER_API_TOKEN", &cfg.HTTP.Token)
	str("LAUNCHER_LOG_LEVEL", &cfg.Log.Level)
	str("LAUNCHER_LOG_FORMAT", &cfg.Log.Format)
	str("LAUNCHER_LOG_FILE", &cfg.Log.File)
	dur("LAUNCHER_SEED_FOR", &cfg.Torrent.SeedFor)
	if v := getenv("LAUNCHER_LISTEN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Torrent.ListenPort = p
		}
	}

	str("ARIA2_RPC_URL", &cfg.Aria2.URL)
	str("ARIA2_SECRET", &cfg.Aria2.Secret)
	if v := getenv("ARIA2_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Aria2.Timeout = Duration(time.Duration(ms) * time.Millisecond)
		}
	}
}

var ErrInvalid = errors.New("invalid configuration")

func (c Config) Validate() error {
	switch c.Engine {
	case EngineTorrent, EngineAria2:
	default:
		return fmt.Errorf("%w: engine %q (want %s or %s)", ErrInvalid, c.Engine, EngineTorrent, EngineAria2)
	}
	if strings.TrimSpace(c.PackageURI) == "" {
		return fmt.Errorf("%w: package_uri is required", ErrInvalid)
	}
	if strings.TrimSpace(c.Executable) == "" {
		return fmt.Errorf("%w: executable is required", ErrInvalid)
	}
	if c.Torrent.ListenPort < 0 || c.Torrent.ListenPort > 65535 {
		return fmt.Errorf("%w: listen_port %d", ErrInvalid, c.Torrent.ListenPort)
	}
	return nil
}

// DefaultExecutable is the game binary name for the running platform.
func DefaultExecutable() string {
	if runtime.GOOS == "windows" {
		return "daemon.exe"
	}
	return "daemon"
}

// DefaultInstallPath is the per-user data location of the game.
func DefaultInstallPath() string {
	return filepath.Join(dataHome(), gameDirName())
}

// DefaultSettingsPath stores settings next to other per-user config.
func DefaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "unvanquished-launcher", "settings.yaml")
}

func gameDirName() string {
	if runtime.GOOS == "linux" {
		return "unvanquished"
	}
	return "Unvanquished"
}

func dataHome() string {
	switch runtime.GOOS {
	case "windows":
		if v := os.Getenv("LOCALAPPDATA"); v != "" {
			return v
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	default:
		if v := os.Getenv("XDG_DATA_HOME"); v != "" {
			return v
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share")
		}
	}
	return "."
}
