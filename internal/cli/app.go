package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/tinoosan/launcher/internal/aria2"
	"github.com/tinoosan/launcher/internal/config"
	"github.com/tinoosan/launcher/internal/downloader"
	aria2dl "github.com/tinoosan/launcher/internal/downloader/aria2"
	"github.com/tinoosan/launcher/internal/downloader/torrent"
	"github.com/tinoosan/launcher/internal/installdir"
	"github.com/tinoosan/launcher/internal/launch"
	"github.com/tinoosan/launcher/internal/metrics"
	"github.com/tinoosan/launcher/internal/orchestrator"
	"github.com/tinoosan/launcher/internal/remote"
	"github.com/tinoosan/launcher/internal/repo"
	"github.com/tinoosan/launcher/internal/router"
	"github.com/tinoosan/launcher/internal/service"
)

var registerMetrics sync.Once

// app holds the wired components of one process.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	store  repo.SettingsRepo
	orch   *orchestrator.Orchestrator
	svc    service.Launcher
	pinger router.Pinger
}

// newApp opens the settings store and wires the orchestrator with the
// configured engine.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	registerMetrics.Do(metrics.Register)

	store, err := repo.Open(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}
	saved, err := repo.LoadOrDefault(ctx, store)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings := saved.WithDefaults(cfg.InstallPath)

	engine, pinger, err := newEngine(cfg, log)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	rc := remote.New(remote.Config{VersionURL: cfg.VersionURL, NewsURL: cfg.NewsURL})
	rc.SetLogger(log)

	orch := orchestrator.New(
		orchestrator.Config{Settings: settings, PackageURI: cfg.PackageURI, Executable: cfg.Executable},
		orchestrator.Deps{
			Versions: rc,
			Store:    store,
			Launcher: launch.New(log),
			Dirs:     installdir.New(),
			NewSession: func() downloader.Controller {
				return downloader.NewSession(engine, log, cfg.SampleInterval.D())
			},
			Log: log,
		},
	)
	log.Info("launcher configured",
		"engine", cfg.Engine,
		"install_path", settings.InstallPath,
		"installed_version", settings.CurrentVersion,
		"package", cfg.PackageURI)

	return &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		orch:   orch,
		svc:    service.NewLauncher(orch, rc, log, 0),
		pinger: pinger,
	}, nil
}

// newEngine returns the transfer engine and, for external daemons, a
// readiness probe.
func newEngine(cfg config.Config, log *slog.Logger) (downloader.Engine, router.Pinger, error) {
	switch cfg.Engine {
	case config.EngineAria2:
		cl, err := aria2.NewClient(aria2.Config{
			URL:     cfg.Aria2.URL,
			Secret:  cfg.Aria2.Secret,
			Timeout: cfg.Aria2.Timeout.D(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("aria2 client: %w", err)
		}
		e := aria2dl.NewEngine(cl, aria2dl.Config{SeedTime: cfg.Aria2.SeedTime.D()})
		e.SetLogger(log)
		return e, e, nil
	default:
		e := torrent.New(torrent.Config{
			SeedFor:    cfg.Torrent.SeedFor.D(),
			ListenPort: cfg.Torrent.ListenPort,
			NoUpload:   cfg.Torrent.NoUpload,
			DisableDHT: cfg.Torrent.DisableDHT,
		})
		e.SetLogger(log)
		return e, nil, nil
	}
}

func (a *app) Close() {
	a.orch.Close()
	closeStore(a.store)
}

func closeStore(s repo.SettingsRepo) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}
