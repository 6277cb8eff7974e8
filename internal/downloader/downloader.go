package downloader

import (
	"context"
	"errors"

	"github.com/tinoosan/launcher/internal/data"
)

var (
	// ErrConfig is returned by Configure when the output directory or the
	// sources cannot be used.
	ErrConfig        = errors.New("invalid session configuration")
	ErrNotConfigured = errors.New("session not configured")
	ErrRunning       = errors.New("session already running")
	ErrNotRunning    = errors.New("session not running")
	ErrStopped       = errors.New("session stopped")
)

// Engine is the embedded transfer engine a Session drives. Exactly one
// Run is active per engine at a time.
type Engine interface {
	// Run fetches the sources into dir and blocks until the transfer ends,
	// fails, or ctx is cancelled. Progress, DownloadComplete and
	// SeedingComplete are reported through rep; Started, Paused, Stopped and
	// Error are the Session's to emit.
	Run(ctx context.Context, dir string, sources []data.DownloadSource, rep Reporter) error
	// SetPaused suspends or resumes the active transfer. It may be called
	// concurrently with Run.
	SetPaused(ctx context.Context, paused bool) error
}

// Controller is the command surface of a download session.
type Controller interface {
	Subscribe(rep Reporter)
	Configure(dir string, sources []data.DownloadSource) error
	Start(ctx context.Context) error
	TogglePause(ctx context.Context) (bool, error)
	Stop() error
}
