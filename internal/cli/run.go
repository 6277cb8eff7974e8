package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinoosan/launcher/internal/reconciler"
	"github.com/tinoosan/launcher/internal/router"
	"github.com/tinoosan/launcher/internal/tui"
)

// frontend drives the app until it is done. Returning ends the process.
type frontend func(ctx context.Context, a *app) error

func tuiFrontend(ctx context.Context, a *app) error {
	return tui.Run(ctx, a.svc)
}

func headless(goal reconciler.Goal) frontend {
	return func(ctx context.Context, a *app) error {
		updates, cancel := a.orch.Watch()
		defer cancel()
		return reconciler.New(a.log, goal, a.orch, updates).Run(ctx)
	}
}

// serveOnly keeps running until a signal arrives or the game is launched
// through the API.
func serveOnly(ctx context.Context, a *app) error {
	<-ctx.Done()
	return nil
}

// run starts the orchestrator, the optional HTTP API and the front end in
// one errgroup. The group ends when the front end returns, the game has
// been launched or ctx is cancelled; the orchestrator is closed before
// returning so no download outlives the process.
func run(ctx context.Context, a *app, front frontend) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.orch.Run(gctx) })

	if a.cfg.HTTP.Addr != "" {
		g.Go(func() error { return serveHTTP(gctx, a) })
	}

	g.Go(func() error {
		select {
		case <-a.orch.Launched():
			a.log.Info("game launched, exiting")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return front(gctx, a)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveHTTP(ctx context.Context, a *app) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router.New(a.log, a.svc, a.pinger, a.cfg.HTTP.Token),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.log.Info("control API listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", "err", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
