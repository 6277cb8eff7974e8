package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tinoosan/launcher/internal/data"
	"github.com/tinoosan/launcher/internal/fp"
	"github.com/tinoosan/launcher/internal/installdir"
	"github.com/tinoosan/launcher/internal/metrics"
)

// Session owns one Engine and runs it on a dedicated goroutine. Commands are
// non-blocking except Stop, which waits for the engine goroutine to exit.
type Session struct {
	engine  Engine
	log     *slog.Logger
	limiter *rate.Limiter

	mu         sync.Mutex
	dir        string
	sources    []data.DownloadSource
	configured bool
	running    bool
	paused     bool
	stopped    bool
	cancel     context.CancelFunc
	done       chan struct{}

	// emitMu serializes delivery so events reach the listener in emission
	// order, and gates delivery once Stop has returned.
	emitMu sync.Mutex
	rep    Reporter
	closed bool
	peak   int64
}

var _ Controller = (*Session)(nil)

// NewSession wraps engine. Progress samples are passed on at most once per
// sampleInterval; a non-positive interval disables coalescing.
func NewSession(engine Engine, log *slog.Logger, sampleInterval time.Duration) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{engine: engine, log: log}
	if sampleInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(sampleInterval), 1)
	}
	return s
}

// Subscribe registers the listener that receives all subsequent events.
func (s *Session) Subscribe(rep Reporter) {
	s.emitMu.Lock()
	s.rep = rep
	s.emitMu.Unlock()
}

// Configure sets the output directory and sources. Sources with the same
// fingerprint collapse; more than one distinct source is rejected.
func (s *Session) Configure(dir string, sources []data.DownloadSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.running {
		return ErrRunning
	}
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: %v", ErrConfig, data.ErrTargetPath)
	}
	if err := installdir.Writable(dir); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("%w: no sources", ErrConfig)
	}

	seen := make(map[string]bool, len(sources))
	out := make([]data.DownloadSource, 0, 1)
	for _, src := range sources {
		if src.Dir == "" {
			src.Dir = dir
		}
		if err := src.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
		if fp.NormalizeTargetPath(src.Dir) != fp.NormalizeTargetPath(dir) {
			return fmt.Errorf("%w: source directory %q differs from %q", ErrConfig, src.Dir, dir)
		}
		key := src.Fingerprint()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, src)
	}
	if len(out) > 1 {
		return fmt.Errorf("%w: at most one source per session, got %d", ErrConfig, len(out))
	}

	s.dir = dir
	s.sources = out
	s.configured = true
	return nil
}

// Start launches the engine. Calling Start on a session that has already
// been started is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if !s.configured {
		return ErrNotConfigured
	}
	if s.cancel != nil {
		return nil
	}

	// The engine outlives the caller's request; only Stop cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	lg := s.log.With("operation_id", uuid.NewString(), "dir", s.dir)

	metrics.ActiveSessions.Inc()
	s.emit(Event{Type: EventStarted})
	go s.run(runCtx, lg, s.dir, s.sources, s.done)
	return nil
}

func (s *Session) run(ctx context.Context, lg *slog.Logger, dir string, sources []data.DownloadSource, done chan struct{}) {
	defer close(done)
	defer metrics.ActiveSessions.Dec()

	lg.Info("engine run started", "source", sources[0].URI)
	err := s.engine.Run(ctx, dir, sources, ReporterFunc(s.emit))

	s.mu.Lock()
	s.running = false
	s.paused = false
	s.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		lg.Info("engine run cancelled")
		s.emit(Event{Type: EventStopped})
	case err != nil:
		lg.Error("engine run failed", "err", err)
		s.emit(Event{Type: EventError, Err: err})
	default:
		lg.Info("engine run finished")
		s.emit(Event{Type: EventStopped})
	}
}

// TogglePause flips between paused and resumed and returns the new paused
// state. Only a pause is announced with an event.
func (s *Session) TogglePause(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return s.paused, ErrNotRunning
	}
	next := !s.paused
	if err := s.engine.SetPaused(ctx, next); err != nil {
		return s.paused, err
	}
	s.paused = next
	if next {
		s.emit(Event{Type: EventPaused})
	}
	return next, nil
}

// Paused reports whether the transfer is currently paused.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stop cancels the engine and waits for its goroutine to exit. No event is
// delivered after Stop returns. Safe to call repeatedly, concurrently or
// before Start.
func (s *Session) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	if done != nil {
		s.stopped = true
	}
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	// cancel is nil when another Stop got here first; wait all the same.
	if cancel != nil {
		cancel()
	}
	<-done

	s.emitMu.Lock()
	s.closed = true
	s.emitMu.Unlock()
	return nil
}

func (s *Session) emit(e Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.closed || s.rep == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.Type == EventProgress {
		if e.Progress == nil {
			return
		}
		p := *e.Progress
		if p.Total > 0 && p.Completed > p.Total {
			p.Completed = p.Total
		}
		if p.Completed < s.peak {
			p.Completed = s.peak
		}
		s.peak = p.Completed
		if !p.Done() && s.limiter != nil && !s.limiter.Allow() {
			return
		}
		e.Progress = &p
	}
	metrics.SessionEvents.WithLabelValues(strings.ToLower(string(e.Type))).Inc()
	s.rep.Report(e)
}
