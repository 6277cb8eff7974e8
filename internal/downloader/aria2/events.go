package aria2dl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/launcher/internal/aria2"
	"github.com/tinoosan/launcher/internal/data"
	"github.com/tinoosan/launcher/internal/downloader"
)

// transfer is the per-Run view of the aria2 download. It is only touched by
// the Run goroutine.
type transfer struct {
	gid      string
	dataDone bool
	last     downloader.Progress
	rep      downloader.Reporter
	lg       *slog.Logger
}

// Run adds the source to aria2 and follows it until it completes, fails, or
// ctx is cancelled. Websocket notifications are used when available; status
// polling covers everything else.
func (e *Engine) Run(ctx context.Context, dir string, sources []data.DownloadSource, rep downloader.Reporter) error {
	defer e.untrack()
	if len(sources) == 0 {
		return errNoSource
	}
	lg := e.log.With("operation_id", uuid.NewString(), "engine", "aria2")

	gid, err := e.addURI(ctx, sources[0].URI, dir)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("aria2 addUri: %w", err)
	}
	tr := &transfer{gid: gid, rep: rep, lg: lg}
	// A magnet first fetches metadata under its own GID.
	if st, err := e.tellStatus(ctx, gid); err == nil && st.next() != "" {
		e.follow(tr, st.next())
	}
	e.track(ctx, tr.gid)
	lg.Info("aria2 download added", "gid", tr.gid, "dir", dir)

	notes, err := e.cl.Notifications(ctx)
	if err != nil {
		lg.Warn("aria2 notifications unavailable, polling only", "err", err)
		notes = nil
	}
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.removeDetached(lg, tr.gid)
			return nil
		case n, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			if done, err := e.handleNotification(ctx, tr, n); done || err != nil {
				return err
			}
		case <-ticker.C:
			if done, err := e.poll(ctx, tr); done || err != nil {
				return err
			}
		}
	}
}

// track records gid as the engine's active transfer and replays a pause
// requested before it was known.
func (e *Engine) track(ctx context.Context, gid string) {
	e.mu.Lock()
	e.gid = gid
	paused := e.paused
	e.mu.Unlock()
	if gid != "" && paused {
		if err := e.SetPaused(ctx, true); err != nil {
			e.log.Warn("aria2 deferred pause failed", "gid", gid, "err", err)
		}
	}
}

// untrack clears the transfer and any pause left over from it, so the next
// Run starts transferring.
func (e *Engine) untrack() {
	e.mu.Lock()
	e.gid = ""
	e.paused = false
	e.mu.Unlock()
}

func (e *Engine) follow(tr *transfer, real string) {
	tr.lg.Info("aria2 gid followed", "gid", tr.gid, "new_gid", real)
	tr.gid = real
	e.mu.Lock()
	if e.gid != "" {
		e.gid = real
	}
	e.mu.Unlock()
}

func (e *Engine) removeDetached(lg *slog.Logger, gid string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cl.HTTP().Timeout)
	defer cancel()
	if err := e.remove(ctx, gid); err != nil {
		lg.Warn("aria2 remove failed", "gid", gid, "err", err)
	}
}

// poll queries the tracked GID and reports progress. It returns done when
// the transfer has reached a terminal aria2 status.
func (e *Engine) poll(ctx context.Context, tr *transfer) (bool, error) {
	st, err := e.tellStatus(ctx, tr.gid)
	if err != nil {
		if ctx.Err() == nil {
			tr.lg.Warn("aria2 tellStatus error", "gid", tr.gid, "err", err)
		}
		return false, nil
	}
	return e.settle(ctx, tr, st)
}

func (e *Engine) settle(ctx context.Context, tr *transfer, st *statusResp) (bool, error) {
	if st.Status == "complete" && st.next() != "" {
		e.follow(tr, st.next())
		return false, nil
	}
	tr.progress(st.progress())
	switch st.Status {
	case "complete":
		tr.complete()
		return true, nil
	case "error":
		msg := st.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		return true, fmt.Errorf("aria2 download %s failed: %s", tr.gid, msg)
	case "removed":
		if ctx.Err() != nil {
			return true, nil
		}
		return true, errRemoved
	}
	if st.Seeder == "true" {
		tr.dataComplete()
	}
	return false, nil
}

func (e *Engine) handleNotification(ctx context.Context, tr *transfer, n aria2.Notification) (bool, error) {
	for _, p := range n.Params {
		if p.GID != tr.gid {
			continue
		}
		switch n.Method {
		case aria2.OnBtDownloadComplete:
			tr.dataComplete()
		case aria2.OnDownloadComplete, aria2.OnDownloadError, aria2.OnDownloadStop:
			st, err := e.tellStatus(ctx, p.GID)
			if err != nil {
				if ctx.Err() != nil {
					return true, nil
				}
				tr.lg.Warn("aria2 tellStatus after notification failed", "method", n.Method, "err", err)
				st = &statusResp{Status: terminalStatus(n.Method)}
			}
			return e.settle(ctx, tr, st)
		}
	}
	return false, nil
}

func terminalStatus(method string) string {
	switch method {
	case aria2.OnDownloadComplete:
		return "complete"
	case aria2.OnDownloadError:
		return "error"
	default:
		return "removed"
	}
}

func (tr *transfer) progress(p downloader.Progress) {
	if p == tr.last {
		return
	}
	tr.last = p
	tr.rep.Report(downloader.Event{Type: downloader.EventProgress, Progress: &p})
}

func (tr *transfer) dataComplete() {
	if tr.dataDone {
		return
	}
	tr.dataDone = true
	tr.lg.Info("aria2 data complete", "gid", tr.gid)
	tr.rep.Report(downloader.Event{Type: downloader.EventDownloadComplete})
}

func (tr *transfer) complete() {
	tr.dataComplete()
	tr.lg.Info("aria2 download complete", "gid", tr.gid)
	tr.rep.Report(downloader.Event{Type: downloader.EventSeedingComplete})
}
