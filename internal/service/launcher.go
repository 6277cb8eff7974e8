// Package service is the facade the presentation layers talk to. It joins
// the orchestrator with the news feed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tinoosan/launcher/internal/data"
)

// Action names a user intent.
type Action string

const (
	ActionPrimary Action = "primary"
	ActionToggle  Action = "toggle"
	ActionVerify  Action = "verify"
	ActionPlay    Action = "play"
)

var ErrUnknownAction = errors.New("unknown action")

// Launcher is what the TUI and the HTTP API need.
type Launcher interface {
	Status() data.Status
	Watch() (<-chan data.Status, func())
	Settings() data.Settings
	ApplySettings(ctx context.Context, s data.Settings) error
	Do(ctx context.Context, a Action) error
	News(ctx context.Context) (data.News, error)
}

// Orchestrator is the subset of *orchestrator.Orchestrator used here.
type Orchestrator interface {
	Status() data.Status
	Watch() (<-chan data.Status, func())
	Settings() data.Settings
	ApplySettings(ctx context.Context, s data.Settings) error
	Primary(ctx context.Context) error
	Toggle(ctx context.Context) error
	Verify(ctx context.Context) error
	Play(ctx context.Context) error
}

type NewsFetcher interface {
	FetchNews(ctx context.Context) (data.News, error)
}

type launcher struct {
	orch Orchestrator
	news NewsFetcher
	log  *slog.Logger
	ttl  time.Duration

	group singleflight.Group
	mu    sync.Mutex
	cache data.News
	at    time.Time
	now   func() time.Time
}

// NewLauncher wires orch and news. News results are cached for ttl; a
// failed refresh keeps serving the previous items.
func NewLauncher(orch Orchestrator, news NewsFetcher, log *slog.Logger, ttl time.Duration) Launcher {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &launcher{orch: orch, news: news, log: log, ttl: ttl, now: time.Now}
}

func (l *launcher) Status() data.Status                 { return l.orch.Status() }
func (l *launcher) Watch() (<-chan data.Status, func()) { return l.orch.Watch() }
func (l *launcher) Settings() data.Settings             { return l.orch.Settings() }

func (l *launcher) ApplySettings(ctx context.Context, s data.Settings) error {
	return l.orch.ApplySettings(ctx, s)
}

func (l *launcher) Do(ctx context.Context, a Action) error {
	switch a {
	case ActionPrimary:
		return l.orch.Primary(ctx)
	case ActionToggle:
		return l.orch.Toggle(ctx)
	case ActionVerify:
		return l.orch.Verify(ctx)
	case ActionPlay:
		return l.orch.Play(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
}

func (l *launcher) News(ctx context.Context) (data.News, error) {
	l.mu.Lock()
	if !l.at.IsZero() && l.now().Sub(l.at) < l.ttl {
		n := l.cache
		l.mu.Unlock()
		return n, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do("news", func() (any, error) {
		n, err := l.news.FetchNews(ctx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache, l.at = n, l.now()
		l.mu.Unlock()
		return n, nil
	})
	if err != nil {
		l.log.Warn("news refresh failed", "err", err)
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.cache != nil {
			return l.cache, nil
		}
		return nil, err
	}
	return v.(data.News), nil
}
