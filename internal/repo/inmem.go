package repo

import (
	"context"
	"sync"

	"github.com/tinoosan/launcher/internal/data"
)

type InMemorySettingsRepo struct {
	mu       sync.RWMutex
	settings data.Settings
	saved    bool
}

func NewInMemorySettingsRepo() *InMemorySettingsRepo {
	return &InMemorySettingsRepo{}
}

func (r *InMemorySettingsRepo) Load(ctx context.Context) (data.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.saved {
		return data.Settings{}, ErrNotFound
	}
	return r.settings, nil
}

func (r *InMemorySettingsRepo) Save(ctx context.Context, s data.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
	r.saved = true
	return nil
}

func (r *InMemorySettingsRepo) SetCurrentVersion(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.CurrentVersion = version
	r.saved = true
	return nil
}
