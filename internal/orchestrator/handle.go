package orchestrator

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/tinoosan/launcher/internal/data"
	"github.com/tinoosan/launcher/internal/downloader"
	"github.com/tinoosan/launcher/internal/installdir"
	"github.com/tinoosan/launcher/internal/launch"
	"github.com/tinoosan/launcher/internal/metrics"
	"github.com/tinoosan/launcher/internal/remote"
	"github.com/tinoosan/launcher/internal/units"
)

const (
	msgChecking            = "Checking for updates..."
	msgOffline             = "No internet connection. Press > to play the game anyways."
	msgOfflineNotInstalled = "No internet connection and game not installed. Please fix."
	msgInvalidVersion      = "Invalid version received. Press > to play the game anyways."
	msgUpToDate            = "Game is up to date. Press > to play the game."
	msgPreparing           = "Preparing install directory"
	msgTorrentDownloaded   = "Torrent downloaded"
	msgDownloadError       = "Error received while downloading"
	msgPaused              = "Download paused"
	msgStopped             = "Download stopped"
	msgFinalizing          = "Download complete"
	msgMarkerNotSaved      = "Game downloaded but the installed version could not be saved. Press > to play the game."
)

// maxVersionLen bounds what is accepted as a version marker.
const maxVersionLen = 64

type versionResult struct {
	gen     uint64
	version string
	err     error
}

// sessionEvent carries the generation of the session that emitted it so
// events from a replaced or stopped session are dropped.
type sessionEvent struct {
	gen uint64
	ev  downloader.Event
}

type intentKind int

const (
	intentVerify intentKind = iota
	intentToggle
	intentPlay
	intentPrimary
	intentSettings
)

type intentMsg struct {
	kind     intentKind
	settings data.Settings
	reply    chan error
}

func (o *Orchestrator) handle(m any) {
	switch m := m.(type) {
	case versionResult:
		o.onVersion(m)
	case sessionEvent:
		o.onSessionEvent(m)
	case intentMsg:
		m.reply <- o.onIntent(m)
	default:
		o.lg.Warn("unknown mailbox message", "type", fmt.Sprintf("%T", m))
	}
}

func (o *Orchestrator) state() data.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.State
}

func (o *Orchestrator) transition(to data.State, msg string) {
	from := o.state()
	o.update(func(s *data.Status) {
		s.State = to
		s.Message = msg
	})
	metrics.StateTransitions.WithLabelValues(string(to)).Inc()
	o.lg.Info("state transition", "from", from, "to", to, "message", msg)
}

func (o *Orchestrator) setMessage(msg string) {
	o.update(func(s *data.Status) { s.Message = msg })
}

// beginCheck starts a new cycle with a fresh operation id and fetches the
// remote version in the background.
func (o *Orchestrator) beginCheck() {
	o.checkGen++
	gen := o.checkGen
	opID := uuid.NewString()
	o.lg = o.log.With("operation_id", opID)
	o.remote = ""
	o.update(func(s *data.Status) {
		s.OperationID = opID
		s.Remote = ""
		s.PromptSettings = false
		s.TotalBytes, s.CompletedBytes, s.Percent = 0, 0, 0
		s.DownloadRate = units.FormatRate(0)
		s.UploadRate = units.FormatRate(0)
	})
	o.transition(data.StateCheckingVersion, msgChecking)

	ctx := o.ctx
	go func() {
		v, err := o.deps.Versions.FetchVersion(ctx)
		o.box.put(versionResult{gen: gen, version: v, err: err})
	}()
}

func (o *Orchestrator) onVersion(r versionResult) {
	if r.gen != o.checkGen || o.state() != data.StateCheckingVersion {
		o.lg.Info("ignoring stale version result", "gen", r.gen)
		return
	}
	installed := o.settings.CurrentVersion
	v := strings.TrimSpace(r.version)

	switch {
	case r.err != nil && !errors.Is(r.err, remote.ErrBadResponse):
		o.lg.Warn("version check failed", "err", r.err, "installed", installed)
		if o.settings.Installed() {
			o.transition(data.StateReadyToLaunch, msgOffline)
		} else {
			o.transition(data.StateError, msgOfflineNotInstalled)
		}
	case r.err != nil || !validVersion(v):
		o.lg.Warn("invalid remote version", "version", v, "err", r.err)
		o.transition(data.StateReadyToLaunch, msgInvalidVersion)
	case v == installed:
		o.setRemote(v)
		o.transition(data.StateNoUpdateNeeded, msgUpToDate)
		o.transition(data.StateReadyToLaunch, msgUpToDate)
	default:
		o.setRemote(v)
		o.transition(data.StateUpdateNeeded, fmt.Sprintf("Update available: %s", v))
		o.prepare()
	}
}

func validVersion(v string) bool {
	if v == "" || len(v) > maxVersionLen {
		return false
	}
	return strings.IndexFunc(v, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) < 0
}

func (o *Orchestrator) setRemote(v string) {
	o.remote = v
	o.update(func(s *data.Status) { s.Remote = v })
}

// prepare checks the install directory and starts a session. On a directory
// problem no session is created and the user is sent to settings.
func (o *Orchestrator) prepare() {
	o.transition(data.StatePreparing, msgPreparing)
	path := o.settings.InstallPath
	dir, err := o.deps.Dirs.Ensure(path)
	if err != nil {
		msg := "install directory not writable: " + path
		if errors.Is(err, installdir.ErrCreate) {
			msg = "cannot create install directory: " + path
		}
		o.lg.Error("install directory check failed", "path", path, "err", err)
		o.update(func(s *data.Status) { s.PromptSettings = true })
		o.transition(data.StateError, msg)
		return
	}
	o.dir = dir

	sess := o.deps.NewSession()
	o.sessGen++
	gen := o.sessGen
	sess.Subscribe(downloader.ReporterFunc(func(e downloader.Event) {
		o.box.put(sessionEvent{gen: gen, ev: e})
	}))
	src := data.DownloadSource{URI: o.cfg.PackageURI, Dir: dir}
	if err := sess.Configure(dir, []data.DownloadSource{src}); err != nil {
		o.lg.Error("session configure failed", "dir", dir, "err", err)
		o.sessGen++
		o.transition(data.StateError, msgDownloadError)
		return
	}
	o.session = sess
	o.update(func(s *data.Status) { s.InstallPath = dir })
	o.transition(data.StateDownloading, "Installing to "+dir)
	if err := sess.Start(o.ctx); err != nil {
		o.lg.Error("session start failed", "err", err)
		o.stopSession()
		o.transition(data.StateError, msgDownloadError)
	}
}

func (o *Orchestrator) onSessionEvent(m sessionEvent) {
	if m.gen != o.sessGen || o.session == nil {
		o.lg.Debug("ignoring stale session event", "type", m.ev.Type, "gen", m.gen)
		return
	}
	e := m.ev
	switch e.Type {
	case downloader.EventStarted:
		o.setMessage("Installing to " + o.dir)
	case downloader.EventPaused:
		// toggle already moved the state; a resume may have been queued
		// ahead of this event.
		if o.state() == data.StatePaused {
			o.setMessage(msgPaused)
		}
	case downloader.EventProgress:
		if e.Progress != nil {
			o.onProgress(*e.Progress)
		}
	case downloader.EventDownloadComplete:
		o.setMessage(msgTorrentDownloaded)
	case downloader.EventSeedingComplete:
		o.finish()
	case downloader.EventError:
		o.lg.Error("download session failed", "err", e.Err)
		o.stopSession()
		o.transition(data.StateError, msgDownloadError)
	case downloader.EventStopped:
		o.lg.Warn("download session stopped before completion")
		o.stopSession()
		o.transition(data.StateError, msgStopped)
	default:
		o.lg.Warn("unknown event type", "type", e.Type)
	}
}

func (o *Orchestrator) onProgress(p downloader.Progress) {
	o.update(func(s *data.Status) {
		s.TotalBytes = p.Total
		s.CompletedBytes = p.Completed
		s.DownloadRate = units.FormatRate(p.DownloadRate)
		s.UploadRate = units.FormatRate(p.UploadRate)
	})
	metrics.DownloadPercent.Set(float64(units.Percent(p.Completed, p.Total)))
	metrics.TransferRate.WithLabelValues("down").Set(float64(p.DownloadRate))
	metrics.TransferRate.WithLabelValues("up").Set(float64(p.UploadRate))
}

// finish runs once seeding is over: the marker is persisted, the session is
// stopped and the game becomes playable.
func (o *Orchestrator) finish() {
	o.update(func(s *data.Status) {
		s.CompletedBytes = s.TotalBytes
		s.Percent = 100
		s.DownloadRate = units.FormatRate(0)
	})
	metrics.DownloadPercent.Set(100)
	metrics.TransferRate.WithLabelValues("down").Set(0)

	err := o.deps.Store.SetCurrentVersion(o.ctx, o.remote)
	o.stopSession()
	o.transition(data.StateCompleted, msgFinalizing)
	if err != nil {
		o.lg.Error("persist version marker failed", "version", o.remote, "err", err)
		o.transition(data.StateReadyToLaunch, msgMarkerNotSaved)
		return
	}
	o.mu.Lock()
	o.settings.CurrentVersion = o.remote
	o.mu.Unlock()
	o.update(func(s *data.Status) { s.Installed = o.remote })
	o.lg.Info("version marker persisted", "version", o.remote)
	o.transition(data.StateReadyToLaunch, msgUpToDate)
}

// stopSession stops and forgets the active session. Its late events are
// dropped by the generation check.
func (o *Orchestrator) stopSession() {
	if o.session == nil {
		return
	}
	sess := o.session
	o.session = nil
	o.sessGen++
	if err := sess.Stop(); err != nil {
		o.lg.Warn("session stop", "err", err)
	}
}

func (o *Orchestrator) onIntent(m intentMsg) error {
	switch m.kind {
	case intentVerify:
		if !o.state().Terminal() {
			return ErrInvalidState
		}
		o.beginCheck()
		return nil
	case intentToggle:
		return o.toggle()
	case intentPlay:
		return o.play()
	case intentPrimary:
		switch data.ActionFor(o.state()) {
		case data.ActionPlay:
			return o.play()
		case data.ActionPause, data.ActionResume:
			return o.toggle()
		default:
			return ErrInvalidState
		}
	case intentSettings:
		return o.applySettings(m.settings)
	}
	return ErrInvalidState
}

func (o *Orchestrator) toggle() error {
	st := o.state()
	if (st != data.StateDownloading && st != data.StatePaused) || o.session == nil {
		return ErrInvalidState
	}
	paused, err := o.session.TogglePause(o.ctx)
	if err != nil {
		o.lg.Warn("toggle pause failed", "err", err)
		return err
	}
	if paused {
		o.transition(data.StatePaused, msgPaused)
	} else {
		o.transition(data.StateDownloading, "Installing to "+o.dir)
	}
	return nil
}

func (o *Orchestrator) play() error {
	if o.state() != data.StateReadyToLaunch {
		return ErrInvalidState
	}
	exe := filepath.Join(o.settings.InstallPath, o.cfg.Executable)
	line := launch.Render(o.settings.CommandLine, exe)
	if err := o.deps.Launcher.Launch(line); err != nil {
		o.lg.Error("launch failed", "command", line, "err", err)
		o.setMessage("Failed to launch game: " + err.Error())
		return err
	}
	o.lg.Info("game launched", "command", line)
	o.launchOnce.Do(func() { close(o.launched) })
	return nil
}

func (o *Orchestrator) applySettings(s data.Settings) error {
	switch o.state() {
	case data.StatePreparing, data.StateDownloading, data.StatePaused, data.StateCompleted:
		return ErrInvalidState
	}
	s = s.WithDefaults(o.settings.InstallPath)
	s.CurrentVersion = o.settings.CurrentVersion
	if err := o.deps.Store.Save(o.ctx, s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	o.mu.Lock()
	o.settings = s
	o.mu.Unlock()
	o.update(func(st *data.Status) { st.InstallPath = s.InstallPath })
	o.lg.Info("settings applied", "install_path", s.InstallPath)
	if o.state() == data.StateError {
		o.beginCheck()
	}
	return nil
}
