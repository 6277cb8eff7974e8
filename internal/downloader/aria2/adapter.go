// Package aria2dl implements downloader.Engine on top of an external aria2
// daemon reached over JSON-RPC.
package aria2dl

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tinoosan/launcher/internal/aria2"
	"github.com/tinoosan/launcher/internal/downloader"
)

var (
	errNoSource = errors.New("aria2 engine: no source")
	// errRemoved is returned when the transfer disappears from aria2
	// without the session asking for it.
	errRemoved = errors.New("aria2 download removed externally")
)

// Config tunes the engine.
type Config struct {
	PollInterval time.Duration
	// SeedTime is passed to aria2 as seed-time; zero stops seeding as soon
	// as the data is complete.
	SeedTime time.Duration
}

// Engine drives one aria2 transfer per Run. The GID it tracks may change
// while running when a metadata download is followed by the real one.
type Engine struct {
	cl  *aria2.Client
	cfg Config
	log *slog.Logger

	mu     sync.Mutex
	gid    string
	paused bool
}

var _ downloader.Engine = (*Engine)(nil)

func NewEngine(cl *aria2.Client, cfg Config) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Engine{cl: cl, cfg: cfg, log: slog.Default()}
}

// SetLogger allows wiring a shared application logger into the engine.
func (e *Engine) SetLogger(l *slog.Logger) {
	if l != nil {
		e.log = l
	}
}

func (e *Engine) currentGID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gid
}
