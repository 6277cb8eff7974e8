// Package orchestrator runs the update cycle: check the published version,
// download the payload through a download session, persist the installed
// version and hand off to launching the game.
//
// All state changes happen on the goroutine running Run. Session events and
// user intents are queued in an unbounded mailbox, so neither the engine nor
// a presentation layer can block the loop.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinoosan/launcher/internal/data"
	"github.com/tinoosan/launcher/internal/downloader"
	"github.com/tinoosan/launcher/internal/installdir"
	"github.com/tinoosan/launcher/internal/units"
)

var (
	// ErrInvalidState is returned for an intent the current state does not
	// accept, such as Play while downloading.
	ErrInvalidState = errors.New("action not valid in current state")
	ErrClosed       = errors.New("orchestrator closed")
	errRunning      = errors.New("orchestrator already running")
)

// VersionFetcher returns the published version marker. Errors wrapping
// remote.ErrBadResponse are treated as an invalid version; any other error
// means the host is unreachable.
type VersionFetcher interface {
	FetchVersion(ctx context.Context) (string, error)
}

// SettingsStore persists settings and the installed version marker.
type SettingsStore interface {
	Save(ctx context.Context, s data.Settings) error
	SetCurrentVersion(ctx context.Context, version string) error
}

type Launcher interface {
	Launch(commandLine string) error
}

// DirChecker creates the install directory when missing and verifies it is
// writable, returning the absolute path.
type DirChecker interface {
	Ensure(dir string) (string, error)
}

// Config is the snapshot the orchestrator starts from.
type Config struct {
	Settings   data.Settings
	PackageURI string
	// Executable is the game binary name inside the install directory.
	Executable string
}

// Deps are the collaborators. Dirs and Log may be nil.
type Deps struct {
	Versions   VersionFetcher
	Store      SettingsStore
	Launcher   Launcher
	Dirs       DirChecker
	NewSession func() downloader.Controller
	Log        *slog.Logger
}

type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
	box  *mailbox

	closing    chan struct{}
	closeOnce  sync.Once
	done       chan struct{}
	started    atomic.Bool
	launched   chan struct{}
	launchOnce sync.Once

	// Owned by the loop goroutine.
	ctx      context.Context
	lg       *slog.Logger
	remote   string
	dir      string
	session  downloader.Controller
	checkGen uint64
	sessGen  uint64

	// mu guards status, settings and watchers for readers outside the loop.
	mu          sync.Mutex
	status      data.Status
	settings    data.Settings
	watchers    map[chan data.Status]struct{}
	watchClosed bool
}

func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Dirs == nil {
		deps.Dirs = installdir.New()
	}
	cfg.Settings = cfg.Settings.WithDefaults(cfg.Settings.InstallPath)
	o := &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Log,
		lg:       deps.Log,
		box:      newMailbox(),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		launched: make(chan struct{}),
		ctx:      context.Background(),
		settings: cfg.Settings,
		watchers: make(map[chan data.Status]struct{}),
	}
	o.status = data.Status{
		State:       data.StateCheckingVersion,
		Message:     msgChecking,
		Installed:   cfg.Settings.CurrentVersion,
		InstallPath: cfg.Settings.InstallPath,
		Action:      data.ActionNone,
		UpdatedAt:   time.Now(),
	}
	o.status.Total = units.FormatSize(0)
	o.status.Completed = units.FormatSize(0)
	o.status.DownloadRate = units.FormatRate(0)
	o.status.UploadRate = units.FormatRate(0)
	return o
}

// Run starts a version check and processes the mailbox until ctx is
// cancelled or Close is called. Any active session is stopped before Run
// returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return errRunning
	}
	defer close(o.done)
	o.ctx = ctx

	select {
	case <-o.closing:
		o.shutdown()
		return nil
	default:
	}

	o.beginCheck()
	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case <-o.closing:
			o.shutdown()
			return nil
		case <-o.box.signal:
			for _, m := range o.box.take() {
				o.handle(m)
			}
		}
	}
}

// Close stops the loop and waits for it, including stopping the active
// session. Safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() { close(o.closing) })
	if o.started.Load() {
		<-o.done
		return
	}
	o.closeWatchers()
}

// Done is closed once Run has returned.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Launched is closed after the game has been started; the application is
// expected to exit.
func (o *Orchestrator) Launched() <-chan struct{} { return o.launched }

// Status returns the latest snapshot.
func (o *Orchestrator) Status() data.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Settings returns the settings currently in effect.
func (o *Orchestrator) Settings() data.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// Watch returns a channel that receives the current snapshot immediately
// and then the latest one after every change. Intermediate snapshots are
// dropped when the reader falls behind. The channel is closed by cancel or
// when the orchestrator shuts down.
func (o *Orchestrator) Watch() (<-chan data.Status, func()) {
	ch := make(chan data.Status, 1)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.watchClosed {
		close(ch)
		return ch, func() {}
	}
	o.watchers[ch] = struct{}{}
	ch <- o.status
	cancel := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.watchers[ch]; ok {
			delete(o.watchers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (o *Orchestrator) closeWatchers() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.watchClosed {
		return
	}
	o.watchClosed = true
	for ch := range o.watchers {
		delete(o.watchers, ch)
		close(ch)
	}
}

// Verify re-runs the version check. Only valid once a cycle has ended.
func (o *Orchestrator) Verify(ctx context.Context) error { return o.do(ctx, intentMsg{kind: intentVerify}) }

// Toggle pauses or resumes the active download.
func (o *Orchestrator) Toggle(ctx context.Context) error { return o.do(ctx, intentMsg{kind: intentToggle}) }

// Play launches the installed game.
func (o *Orchestrator) Play(ctx context.Context) error { return o.do(ctx, intentMsg{kind: intentPlay}) }

// Primary dispatches the action the current state selects.
func (o *Orchestrator) Primary(ctx context.Context) error {
	return o.do(ctx, intentMsg{kind: intentPrimary})
}

// ApplySettings saves new install path and command line. The version marker
// is kept. When the cycle ended in Error a new check starts.
func (o *Orchestrator) ApplySettings(ctx context.Context, s data.Settings) error {
	return o.do(ctx, intentMsg{kind: intentSettings, settings: s})
}

func (o *Orchestrator) do(ctx context.Context, m intentMsg) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	m.reply = make(chan error, 1)
	o.box.put(m)
	select {
	case err := <-m.reply:
		return err
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) shutdown() {
	o.stopSession()
	for _, m := range o.box.take() {
		if in, ok := m.(intentMsg); ok {
			in.reply <- ErrClosed
		}
	}
	o.closeWatchers()
	o.lg.Info("orchestrator stopped")
}

// update mutates the snapshot, recomputes derived fields and fans it out.
func (o *Orchestrator) update(fn func(*data.Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := &o.status
	fn(s)
	if s.TotalBytes > 0 {
		s.Percent = units.Percent(s.CompletedBytes, s.TotalBytes)
	}
	s.Total = units.FormatSize(s.TotalBytes)
	s.Completed = units.FormatSize(s.CompletedBytes)
	s.Action = data.ActionFor(s.State)
	s.CanVerify = s.State.Terminal()
	s.UpdatedAt = time.Now()
	for ch := range o.watchers {
		offer(ch, *s)
	}
}

// offer replaces any unread snapshot with s. Callers hold o.mu, so this is
// the only sender.
func offer(ch chan data.Status, s data.Status) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- s
}
