package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/tinoosan/launcher/internal/data"
)

type format int

const (
	formatYAML format = iota
	formatTOML
)

// FileSettingsRepo stores settings in a single YAML or TOML file chosen by
// extension. Writes go to a temp file that is renamed over the target.
type FileSettingsRepo struct {
	path   string
	format format
	mu     sync.Mutex
}

func NewFileSettingsRepo(path string) (*FileSettingsRepo, error) {
	var f format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f = formatYAML
	case ".toml":
		f = formatTOML
	default:
		return nil, fmt.Errorf("settings file %q: unsupported extension", path)
	}
	return &FileSettingsRepo{path: path, format: f}, nil
}

func (r *FileSettingsRepo) Path() string { return r.path }

func (r *FileSettingsRepo) Load(ctx context.Context) (data.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileSettingsRepo) load() (data.Settings, error) {
	var s data.Settings
	b, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	switch r.format {
	case formatTOML:
		err = toml.Unmarshal(b, &s)
	default:
		err = yaml.Unmarshal(b, &s)
	}
	if err != nil {
		return s, fmt.Errorf("decode %s: %w", r.path, err)
	}
	return s, nil
}

func (r *FileSettingsRepo) Save(ctx context.Context, s data.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(s)
}

func (r *FileSettingsRepo) SetCurrentVersion(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.load()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	s.CurrentVersion = version
	return r.save(s)
}

func (r *FileSettingsRepo) save(s data.Settings) error {
	var buf bytes.Buffer
	var err error
	switch r.format {
	case formatTOML:
		err = toml.NewEncoder(&buf).Encode(s)
	default:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		err = enc.Encode(s)
		if err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}
