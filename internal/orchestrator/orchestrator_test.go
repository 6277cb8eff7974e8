package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinoosan/launcher/internal/data"
	"github.com/tinoosan/launcher/internal/downloader"
	"github.com/tinoosan/launcher/internal/installdir"
	"github.com/tinoosan/launcher/internal/remote"
)

type fakeVersions struct {
	v   string
	err error
}

func (f *fakeVersions) FetchVersion(context.Context) (string, error) { return f.v, f.err }

type fakeStore struct {
	mu       sync.Mutex
	saved    []data.Settings
	versions []string
	err      error
}

func (f *fakeStore) Save(_ context.Context, s data.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeStore) SetCurrentVersion(_ context.Context, v string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.versions = append(f.versions, v)
	return nil
}

type fakeLauncher struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (f *fakeLauncher) Launch(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.lines = append(f.lines, line)
	return nil
}

type fakeDirs struct {
	err error
}

func (f fakeDirs) Ensure(dir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return dir, nil
}

// fakeSession records commands and lets tests emit events by hand.
type fakeSession struct {
	rep          downloader.Reporter
	dir          string
	sources      []data.DownloadSource
	configureErr error
	started      int
	stopped      int
	paused       bool
}

func (f *fakeSession) Subscribe(rep downloader.Reporter) { f.rep = rep }

func (f *fakeSession) Configure(dir string, sources []data.DownloadSource) error {
	if f.configureErr != nil {
		return f.configureErr
	}
	f.dir, f.sources = dir, sources
	return nil
}

func (f *fakeSession) Start(context.Context) error {
	f.started++
	return nil
}

func (f *fakeSession) TogglePause(context.Context) (bool, error) {
	f.paused = !f.paused
	return f.paused, nil
}

func (f *fakeSession) Stop() error {
	f.stopped++
	return nil
}

type harness struct {
	o        *Orchestrator
	store    *fakeStore
	launcher *fakeLauncher
	sessions []*fakeSession
}

func newHarness(t *testing.T, installed string, versions *fakeVersions, dirs DirChecker) *harness {
	t.Helper()
	h := &harness{store: &fakeStore{}, launcher: &fakeLauncher{}}
	cfg := Config{
		Settings:   data.Settings{InstallPath: "/games/unv", CurrentVersion: installed},
		PackageURI: "http://cdn.example.org/current.torrent",
		Executable: "daemon",
	}
	h.o = New(cfg, Deps{
		Versions: versions,
		Store:    h.store,
		Launcher: h.launcher,
		Dirs:     dirs,
		NewSession: func() downloader.Controller {
			s := &fakeSession{}
			h.sessions = append(h.sessions, s)
			return s
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func (h *harness) event(ev downloader.Event) {
	h.o.onSessionEvent(sessionEvent{gen: h.o.sessGen, ev: ev})
}

func progress(completed, total int64) downloader.Event {
	return downloader.Event{Type: downloader.EventProgress, Progress: &downloader.Progress{Completed: completed, Total: total, DownloadRate: 2048}}
}

func TestVersionDecisions(t *testing.T) {
	offline := fmt.Errorf("%w: dial tcp: connection refused", remote.ErrOffline)
	badResponse := fmt.Errorf("%w: http 404", remote.ErrBadResponse)

	tests := []struct {
		name      string
		installed string
		remote    string
		err       error
		state     data.State
		message   string
		sessions  int
	}{
		{"offline installed", "1.2.2", "", offline, data.StateReadyToLaunch, msgOffline, 0},
		{"offline not installed", "", "", offline, data.StateError, msgOfflineNotInstalled, 0},
		{"bad response", "1.2.2", "", badResponse, data.StateReadyToLaunch, msgInvalidVersion, 0},
		{"empty version", "1.2.2", "", nil, data.StateReadyToLaunch, msgInvalidVersion, 0},
		{"empty version not installed", "", "  \n", nil, data.StateReadyToLaunch, msgInvalidVersion, 0},
		{"garbage version", "1.2.2", "<html> error", nil, data.StateReadyToLaunch, msgInvalidVersion, 0},
		{"up to date", "1.2.3", "1.2.3\n", nil, data.StateReadyToLaunch, msgUpToDate, 0},
		{"update", "1.2.2", "1.2.3", nil, data.StateDownloading, "Installing to /games/unv", 1},
		{"first install", "", "1.2.3", nil, data.StateDownloading, "Installing to /games/unv", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.installed, &fakeVersions{}, fakeDirs{})
			h.o.onVersion(versionResult{gen: h.o.checkGen, version: tc.remote, err: tc.err})

			st := h.o.Status()
			if st.State != tc.state || st.Message != tc.message {
				t.Fatalf("status = %s %q want %s %q", st.State, st.Message, tc.state, tc.message)
			}
			if len(h.sessions) != tc.sessions {
				t.Fatalf("sessions = %d want %d", len(h.sessions), tc.sessions)
			}
			if st.Action != data.ActionFor(tc.state) {
				t.Fatalf("action = %s", st.Action)
			}
			if tc.sessions == 1 {
				s := h.sessions[0]
				if s.started != 1 || s.dir != "/games/unv" || len(s.sources) != 1 {
					t.Fatalf("session = %+v", s)
				}
				if s.sources[0].URI != "http://cdn.example.org/current.torrent" || s.sources[0].Dir != "/games/unv" {
					t.Fatalf("source = %+v", s.sources[0])
				}
				if st.Remote != "1.2.3" {
					t.Fatalf("remote = %q", st.Remote)
				}
			}
		})
	}
}

func TestUpToDateMentionsUpToDate(t *testing.T) {
	h := newHarness(t, "0.55", &fakeVersions{}, fakeDirs{})
	h.o.onVersion(versionResult{gen: h.o.checkGen, version: "0.55"})
	if st := h.o.Status(); !strings.Contains(st.Message, "up to date") || !st.CanVerify {
		t.Fatalf("status = %+v", st)
	}
}

func TestStaleVersionResultIgnored(t *testing.T) {
	h := newHarness(t, "1.0", &fakeVersions{}, fakeDirs{})
	h.o.onVersion(versionResult{gen: h.o.checkGen + 1, version: "2.0"})
	if st := h.o.Status(); st.State != data.StateCheckingVersion {
		t.Fatalf("state = %s", st.State)
	}
}

func TestPrepareDirectoryErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"cannot create", fmt.Errorf("%w: /games/unv: permission denied", installdir.ErrCreate), "cannot create install directory: /games/unv"},
		{"not writable", fmt.Errorf("%w: /games/unv", installdir.ErrNotWritable), "install directory not writable: /games/unv"},
		{"not a directory", fmt.Errorf("%w: /games/unv", installdir.ErrNotDir), "install directory not writable: /games/unv"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, "1.2.2", &fakeVersions{}, fakeDirs{err: tc.err})
			h.o.onVersion(versionResult{gen: h.o.checkGen, version: "1.2.3"})
			st := h.o.Status()
			if st.State != data.StateError || st.Message != tc.message || !st.PromptSettings {
				t.Fatalf("status = %+v", st)
			}
			if len(h.sessions) != 0 {
				t.Fatalf("session created despite directory error")
			}
		})
	}
}

func TestConfigureFailure(t *testing.T) {
	h := newHarness(t, "1.2.2", &fakeVersions{}, fakeDirs{})
	h.o.deps.NewSession = func() downloader.Controller {
		return &fakeSession{configureErr: downloader.ErrConfig}
	}
	h.o.onVersion(versionResult{gen: h.o.checkGen, version: "1.2.3"})
	if st := h.o.Status(); st.State != data.StateError || st.Message != msgDownloadError {
		t.Fatalf("status = %+v", st)
	}
	if h.o.session != nil {
		t.Fatalf("unconfigured session kept")
	}
}

func startDownload(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, "1.2.2", &fakeVersions{}, fakeDirs{})
	h.o.onVersion(versionResult{gen: h.o.checkGen, version: "1.2.3"})
	if st := h.o.Status(); st.State != data.StateDownloading {
		t.Fatalf("state = %s", st.State)
	}
	return h
}

func TestDownloadToCompletion(t *testing.T) {
	h := startDownload(t)
	h.event(downloader.Event{Type: downloader.EventStarted})

	h.event(progress(500, 1000))
	st := h.o.Status()
	if st.Percent != 50 || st.Completed != "500 Bytes" || st.Total != "1000 Bytes" || st.DownloadRate != "2 KiB/s" {
		t.Fatalf("status = %+v", st)
	}

	h.event(downloader.Event{Type: downloader.EventDownloadComplete})
	if st := h.o.Status(); st.Message != msgTorrentDownloaded || st.State != data.StateDownloading {
		t.Fatalf("status = %+v", st)
	}
	if len(h.store.versions) != 0 {
		t.Fatalf("marker persisted before seeding completed")
	}

	h.event(downloader.Event{Type: downloader.EventSeedingComplete})
	st = h.o.Status()
	if st.State != data.StateReadyToLaunch || st.Message != msgUpToDate {
		t.Fatalf("status = %+v", st)
	}
	if st.Percent != 100 || st.CompletedBytes != 1000 || st.DownloadRate != "0 Bytes/s" {
		t.Fatalf("final progress = %+v", st)
	}
	if st.Installed != "1.2.3" || h.o.Settings().CurrentVersion != "1.2.3" {
		t.Fatalf("installed = %q", st.Installed)
	}
	if len(h.store.versions) != 1 || h.store.versions[0] != "1.2.3" {
		t.Fatalf("persisted = %v", h.store.versions)
	}
	if h.sessions[0].stopped != 1 {
		t.Fatalf("session stopped %d times", h.sessions[0].stopped)
	}

	// The session's trailing Stopped event belongs to a retired generation.
	h.o.onSessionEvent(sessionEvent{gen: h.o.sessGen - 1, ev: downloader.Event{Type: downloader.EventStopped}})
	if st := h.o.Status(); st.State != data.StateReadyToLaunch {
		t.Fatalf("stale event changed state to %s", st.State)
	}
}

func TestPersistFailureStillPlayable(t *testing.T) {
	h := startDownload(t)
	h.store.err = errors.New("disk full")
	h.event(downloader.Event{Type: downloader.EventSeedingComplete})
	st := h.o.Status()
	if st.State != data.StateReadyToLaunch || st.Message != msgMarkerNotSaved {
		t.Fatalf("status = %+v", st)
	}
	if st.Installed != "1.2.2" {
		t.Fatalf("installed = %q", st.Installed)
	}
}

func TestSessionError(t *testing.T) {
	h := startDownload(t)
	h.event(downloader.Event{Type: downloader.EventError, Err: errors.New("tracker unreachable")})
	st := h.o.Status()
	if st.State != data.StateError || st.Message != msgDownloadError || !st.CanVerify {
		t.Fatalf("status = %+v", st)
	}
	if h.sessions[0].stopped != 1 || h.o.session != nil {
		t.Fatalf("session not stopped")
	}

	h.o.onSessionEvent(sessionEvent{gen: h.o.sessGen - 1, ev: progress(900, 1000)})
	if st := h.o.Status(); st.CompletedBytes != 0 {
		t.Fatalf("stale progress applied: %+v", st)
	}
}

func TestUnexpectedStop(t *testing.T) {
	h := startDownload(t)
	h.event(downloader.Event{Type: downloader.EventStopped})
	if st := h.o.Status(); st.State != data.StateError || st.Message != msgStopped {
		t.Fatalf("status = %+v", st)
	}
}

func TestToggle(t *testing.T) {
	h := newHarness(t, "1", &fakeVersions{}, fakeDirs{})
	if err := h.o.onIntent(intentMsg{kind: intentToggle}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("toggle while checking: %v", err)
	}

	h = startDownload(t)
	if err := h.o.onIntent(intentMsg{kind: intentPrimary}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	st := h.o.Status()
	if st.State != data.StatePaused || st.Action != data.ActionResume || !h.sessions[0].paused {
		t.Fatalf("status = %+v", st)
	}
	h.event(downloader.Event{Type: downloader.EventPaused})
	if st := h.o.Status(); st.Message != msgPaused {
		t.Fatalf("message = %q", st.Message)
	}

	if err := h.o.onIntent(intentMsg{kind: intentToggle}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if st := h.o.Status(); st.State != data.StateDownloading || st.Action != data.ActionPause {
		t.Fatalf("status = %+v", st)
	}
	// A Paused event queued behind the resume must not pause again.
	h.event(downloader.Event{Type: downloader.EventPaused})
	if st := h.o.Status(); st.State != data.StateDownloading {
		t.Fatalf("state = %s", st.State)
	}

	if err := h.o.onIntent(intentMsg{kind: intentPlay}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("play while downloading: %v", err)
	}
	if err := h.o.onIntent(intentMsg{kind: intentVerify}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("verify while downloading: %v", err)
	}
	if err := h.o.onIntent(intentMsg{kind: intentSettings, settings: data.Settings{InstallPath: "/x"}}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("settings while downloading: %v", err)
	}
}

func TestPlay(t *testing.T) {
	h := newHarness(t, "1.2.3", &fakeVersions{}, fakeDirs{})
	h.o.settings.CommandLine = "gamemoderun %command% -set cl_fullscreen 1"
	h.o.onVersion(versionResult{gen: h.o.checkGen, version: "1.2.3"})

	if err := h.o.onIntent(intentMsg{kind: intentPrimary}); err != nil {
		t.Fatalf("play: %v", err)
	}
	want := "gamemoderun " + filepath.Join("/games/unv", "daemon") + " -set cl_fullscreen 1"
	if len(h.launcher.lines) != 1 || h.launcher.lines[0] != want {
		t.Fatalf("launched %q want %q", h.launcher.lines, want)
	}
	select {
	case <-h.o.Launched():
	default:
		t.Fatalf("Launched not closed")
	}
}

func TestPlayFailure(t *testing.T) {
	h := newHarness(t, "1.2.3", &fakeVersions{}, fakeDirs{})
	h.launcher.err = errors.New("no such file")
	h.o.onVersion(versionResult{gen: h.o.checkGen, version: "1.2.3"})
	if err := h.o.onIntent(intentMsg{kind: intentPlay}); err == nil {
		t.Fatalf("expected launch error")
	}
	if st := h.o.Status(); !strings.Contains(st.Message, "no such file") || st.State != data.StateReadyToLaunch {
		t.Fatalf("status = %+v", st)
	}
	select {
	case <-h.o.Launched():
		t.Fatalf("Launched closed after failure")
	default:
	}
}

func TestApplySettingsRetriesAfterError(t *testing.T) {
	h := newHarness(t, "1.2.2", &fakeVersions{v: "1.2.3"}, fakeDirs{err: installdir.ErrCreate})
	h.o.onVersion(versionResult{gen: h.o.checkGen, version: "1.2.3"})
	if st := h.o.Status(); st.State != data.StateError {
		t.Fatalf("state = %s", st.State)
	}
	gen := h.o.checkGen

	h.o.deps.Dirs = fakeDirs{}
	err := h.o.onIntent(intentMsg{kind: intentSettings, settings: data.Settings{InstallPath: "/srv/unv", CurrentVersion: "bogus"}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	s := h.o.Settings()
	if s.InstallPath != "/srv/unv" || s.CommandLine != data.CommandPlaceholder || s.CurrentVersion != "1.2.2" {
		t.Fatalf("settings = %+v", s)
	}
	if len(h.store.saved) != 1 || h.store.saved[0].InstallPath != "/srv/unv" {
		t.Fatalf("saved = %+v", h.store.saved)
	}
	st := h.o.Status()
	if st.State != data.StateCheckingVersion || st.PromptSettings || h.o.checkGen != gen+1 {
		t.Fatalf("status after apply = %+v", st)
	}
}

func TestWatchCoalesces(t *testing.T) {
	h := newHarness(t, "1", &fakeVersions{}, fakeDirs{})
	ch, cancel := h.o.Watch()
	if first := <-ch; first.State != data.StateCheckingVersion {
		t.Fatalf("initial = %s", first.State)
	}
	h.o.setMessage("a")
	h.o.setMessage("b")
	h.o.setMessage("c")
	if got := <-ch; got.Message != "c" {
		t.Fatalf("latest = %q", got.Message)
	}
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel open after cancel")
	}
	cancel()
}

// scriptEngine reports half the payload, waits for the test, then completes.
type scriptEngine struct {
	proceed chan struct{}
	exited  chan struct{}
}

func (e *scriptEngine) Run(ctx context.Context, _ string, _ []data.DownloadSource, rep downloader.Reporter) error {
	defer close(e.exited)
	rep.Report(downloader.Event{Type: downloader.EventProgress, Progress: &downloader.Progress{Completed: 500, Total: 1000}})
	select {
	case <-ctx.Done():
		return nil
	case <-e.proceed:
	}
	rep.Report(downloader.Event{Type: downloader.EventProgress, Progress: &downloader.Progress{Completed: 1000, Total: 1000}})
	rep.Report(downloader.Event{Type: downloader.EventDownloadComplete})
	rep.Report(downloader.Event{Type: downloader.EventSeedingComplete})
	return nil
}

func (e *scriptEngine) SetPaused(context.Context, bool) error { return nil }

func waitFor(t *testing.T, ch <-chan data.Status, what string, pred func(data.Status) bool) data.Status {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatalf("watch closed waiting for %s", what)
			}
			if pred(st) {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func runWithEngine(t *testing.T, installDir string, eng downloader.Engine) (*Orchestrator, *fakeStore, *fakeLauncher, chan error) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeStore{}
	launcher := &fakeLauncher{}
	o := New(Config{
		Settings:   data.Settings{InstallPath: installDir, CurrentVersion: "1.2.2"},
		PackageURI: "http://cdn.example.org/current.torrent",
		Executable: "daemon",
	}, Deps{
		Versions:   &fakeVersions{v: "1.2.3"},
		Store:      store,
		Launcher:   launcher,
		NewSession: func() downloader.Controller { return downloader.NewSession(eng, log, 0) },
		Log:        log,
	})
	errc := make(chan error, 1)
	go func() { errc <- o.Run(context.Background()) }()
	return o, store, launcher, errc
}

func TestRunUpdateEndToEnd(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "unvanquished")
	eng := &scriptEngine{proceed: make(chan struct{}), exited: make(chan struct{})}
	o, store, launcher, errc := runWithEngine(t, dir, eng)
	ch, cancel := o.Watch()
	defer cancel()

	st := waitFor(t, ch, "50%", func(s data.Status) bool { return s.Percent == 50 })
	if st.State != data.StateDownloading || st.Action != data.ActionPause || st.InstallPath != dir {
		t.Fatalf("status at 50%% = %+v", st)
	}
	close(eng.proceed)

	st = waitFor(t, ch, "ready", func(s data.Status) bool { return s.State == data.StateReadyToLaunch })
	if st.Percent != 100 || st.Installed != "1.2.3" || st.Message != msgUpToDate {
		t.Fatalf("final status = %+v", st)
	}
	store.mu.Lock()
	persisted := append([]string(nil), store.versions...)
	store.mu.Unlock()
	if len(persisted) != 1 || persisted[0] != "1.2.3" {
		t.Fatalf("persisted = %v", persisted)
	}

	if err := o.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	launcher.mu.Lock()
	if len(launcher.lines) != 1 || launcher.lines[0] != filepath.Join(dir, "daemon") {
		t.Fatalf("launched %q", launcher.lines)
	}
	launcher.mu.Unlock()

	o.Close()
	if err := <-errc; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := o.Verify(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("verify after close: %v", err)
	}
}

func TestCloseStopsActiveSession(t *testing.T) {
	dir := t.TempDir()
	eng := &scriptEngine{proceed: make(chan struct{}), exited: make(chan struct{})}
	o, store, _, errc := runWithEngine(t, dir, eng)
	ch, _ := o.Watch()
	waitFor(t, ch, "downloading", func(s data.Status) bool { return s.Percent == 50 })

	if err := o.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if st := o.Status(); st.State != data.StatePaused {
		t.Fatalf("state = %s", st.State)
	}

	o.Close()
	select {
	case <-eng.exited:
	default:
		t.Fatalf("engine still running after Close")
	}
	if err := <-errc; err != nil {
		t.Fatalf("run: %v", err)
	}
	for range ch {
	}
	if len(store.versions) != 0 {
		t.Fatalf("marker persisted for an unfinished download")
	}
	o.Close()
}

func TestRunTwice(t *testing.T) {
	h := newHarness(t, "1", &fakeVersions{v: "1"}, fakeDirs{})
	go func() { _ = h.o.Run(context.Background()) }()
	ch, _ := h.o.Watch()
	waitFor(t, ch, "ready", func(s data.Status) bool { return s.State == data.StateReadyToLaunch })
	if err := h.o.Run(context.Background()); !errors.Is(err, errRunning) {
		t.Fatalf("second Run: %v", err)
	}
	h.o.Close()
}
