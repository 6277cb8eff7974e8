package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/tinoosan/launcher/internal/data"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("settings not found")

type SettingsRepo interface {
	SettingsReader
	SettingsWriter
}

type SettingsReader interface {
	Load(ctx context.Context) (data.Settings, error)
}

type SettingsWriter interface {
	Save(ctx context.Context, s data.Settings) error
	// SetCurrentVersion updates only the installed version marker.
	SetCurrentVersion(ctx context.Context, version string) error
}

// Open picks a backend from target: "memory", a postgres:// DSN, "postgres"
// for the POSTGRES_* environment, or a path to a .yaml/.yml/.toml file.
func Open(target string) (SettingsRepo, error) {
	var (
		r   SettingsRepo
		err error
	)
	switch {
	case target == "memory":
		r = NewInMemorySettingsRepo()
	case target == "postgres":
		r, err = NewPostgresRepoFromEnv()
	case strings.HasPrefix(target, "postgres://"), strings.HasPrefix(target, "postgresql://"):
		r, err = NewPostgresRepo(target)
	default:
		r, err = NewFileSettingsRepo(target)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// LoadOrDefault returns the stored settings, or zero settings when none
// were saved yet. Defaults are applied by the caller.
func LoadOrDefault(ctx context.Context, r SettingsReader) (data.Settings, error) {
	s, err := r.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return data.Settings{}, nil
	}
	return s, err
}
