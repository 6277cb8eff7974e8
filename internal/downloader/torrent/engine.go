// Package torrent drives an embedded anacrolix/torrent client as a
// downloader.Engine.
package torrent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/google/uuid"

	"github.com/tinoosan/launcher/internal/data"
	"github.com/tinoosan/launcher/internal/downloader"
)

// defaultMaxConns is restored when a paused torrent resumes.
const defaultMaxConns = 35

var errNoSource = errors.New("torrent engine: no source")

// Config tunes the embedded client.
type Config struct {
	// PollInterval is how often byte counters are sampled.
	PollInterval time.Duration
	// SeedFor keeps the torrent seeding after the data is complete before
	// SeedingComplete is reported. Zero reports it immediately.
	SeedFor    time.Duration
	ListenPort int
	NoUpload   bool
	DisableDHT bool
	// MetainfoTimeout bounds fetching a .torrent over HTTP.
	MetainfoTimeout time.Duration
}

// Engine implements downloader.Engine with anacrolix/torrent. A new client
// is created for every Run and closed when it returns.
type Engine struct {
	cfg  Config
	log  *slog.Logger
	http *http.Client

	mu     sync.Mutex
	t      *torrent.Torrent
	paused bool
}

var _ downloader.Engine = (*Engine)(nil)

// New returns an engine using cfg, filling zero values with defaults.
func New(cfg Config) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MetainfoTimeout <= 0 {
		cfg.MetainfoTimeout = 30 * time.Second
	}
	return &Engine{cfg: cfg, log: slog.Default(), http: &http.Client{Timeout: cfg.MetainfoTimeout}}
}

// SetLogger allows wiring a shared application logger into the engine.
func (e *Engine) SetLogger(l *slog.Logger) {
	if l != nil {
		e.log = l
	}
}

func (e *Engine) Run(ctx context.Context, dir string, sources []data.DownloadSource, rep downloader.Reporter) error {
	// Pause belongs to the run; the next one starts transferring.
	defer func() {
		e.mu.Lock()
		e.paused = false
		e.mu.Unlock()
	}()
	if len(sources) == 0 {
		return errNoSource
	}
	lg := e.log.With("operation_id", uuid.NewString(), "engine", "torrent")

	cc := torrent.NewDefaultClientConfig()
	cc.DataDir = dir
	cc.Seed = e.cfg.SeedFor > 0
	cc.NoUpload = e.cfg.NoUpload
	cc.NoDHT = e.cfg.DisableDHT
	if e.cfg.ListenPort > 0 {
		cc.ListenPort = e.cfg.ListenPort
	}
	client, err := torrent.NewClient(cc)
	if err != nil {
		return fmt.Errorf("torrent client: %w", err)
	}
	defer func() {
		for _, cerr := range client.Close() {
			lg.Warn("torrent client close", "err", cerr)
		}
	}()

	t, err := e.add(ctx, client, sources[0])
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("add torrent: %w", err)
	}

	select {
	case <-t.GotInfo():
	case <-ctx.Done():
		return nil
	}
	lg.Info("torrent metadata received", "name", t.Name(), "length", t.Length())

	e.mu.Lock()
	e.t = t
	if e.paused {
		hardPause(t)
	} else {
		t.DownloadAll()
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.t = nil
		e.mu.Unlock()
	}()

	return e.poll(ctx, lg, t, rep)
}

// SetPaused records the pause state and applies it to the active torrent,
// if any. A pause requested before metadata arrives is applied on arrival.
func (e *Engine) SetPaused(_ context.Context, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
	if e.t == nil {
		return nil
	}
	if paused {
		hardPause(e.t)
	} else {
		resume(e.t)
	}
	return nil
}

func (e *Engine) poll(ctx context.Context, lg *slog.Logger, t *torrent.Torrent, rep downloader.Reporter) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	var (
		speed     speedSample
		dataDone  bool
		seedUntil time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			stats := t.Stats()
			down, up := speed.next(stats.BytesReadUsefulData.Int64(), stats.BytesWrittenData.Int64(), now)
			p := downloader.Progress{
				Completed:    t.BytesCompleted(),
				Total:        t.Length(),
				DownloadRate: down,
				UploadRate:   up,
			}
			rep.Report(downloader.Event{Type: downloader.EventProgress, Progress: &p})

			if !dataDone && p.Done() {
				dataDone = true
				seedUntil = now.Add(e.cfg.SeedFor)
				lg.Info("torrent data complete", "bytes", p.Total, "seed_for", e.cfg.SeedFor)
				rep.Report(downloader.Event{Type: downloader.EventDownloadComplete})
			}
			if dataDone && !now.Before(seedUntil) {
				lg.Info("torrent seeding complete")
				rep.Report(downloader.Event{Type: downloader.EventSeedingComplete})
				return nil
			}
		}
	}
}

func (e *Engine) add(ctx context.Context, client *torrent.Client, src data.DownloadSource) (*torrent.Torrent, error) {
	uri := strings.TrimSpace(src.URI)
	switch {
	case src.IsMagnet():
		return client.AddMagnet(uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		mi, err := e.fetchMetainfo(ctx, uri)
		if err != nil {
			return nil, err
		}
		return client.AddTorrent(mi)
	default:
		return client.AddTorrentFromFile(strings.TrimPrefix(uri, "file://"))
	}
}

func (e *Engine) fetchMetainfo(ctx context.Context, url string) (*metainfo.MetaInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: http %d", url, resp.StatusCode)
	}
	mi, err := metainfo.Load(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return mi, nil
}

// hardPause stops all transfer and disconnects peers.
func hardPause(t *torrent.Torrent) {
	t.DisallowDataDownload()
	t.DisallowDataUpload()
	t.SetMaxEstablishedConns(0)
}

func resume(t *torrent.Torrent) {
	t.SetMaxEstablishedConns(defaultMaxConns)
	t.AllowDataUpload()
	t.AllowDataDownload()
	t.DownloadAll()
}

// speedSample derives rates from monotonically increasing byte counters.
type speedSample struct {
	at      time.Time
	read    int64
	written int64
}

func (s *speedSample) next(read, written int64, now time.Time) (down, up int64) {
	prev := *s
	*s = speedSample{at: now, read: read, written: written}
	if prev.at.IsZero() {
		return 0, 0
	}
	dt := now.Sub(prev.at).Seconds()
	if dt <= 0 {
		return 0, 0
	}
	dr := read - prev.read
	dw := written - prev.written
	if dr < 0 {
		dr = 0
	}
	if dw < 0 {
		dw = 0
	}
	return int64(float64(dr) / dt), int64(float64(dw) / dt)
}
