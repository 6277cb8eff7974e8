package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/tinoosan/launcher/api/v1"
	"github.com/tinoosan/launcher/internal/auth"
	"github.com/tinoosan/launcher/internal/service"
)

// Pinger reports whether the download backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New sets up the application routes and required middleware. ready may be
// nil when the engine is embedded; token may be empty to disable auth.
func New(logger *slog.Logger, svc service.Launcher, ready Pinger, token string) *mux.Router {

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", "err", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	h := v1.NewLauncherHandler(logger, svc)

	r.Use(v1.RequestID)
	r.Use(h.Log)
	r.Use(auth.Middleware(token))

	api := r.PathPrefix("/v1").Subrouter()

	// GETs
	get := api.Methods("GET").Subrouter()
	get.HandleFunc("/status", h.GetStatus)
	get.HandleFunc("/status/ws", h.StreamStatus)
	get.HandleFunc("/news", h.GetNews)
	get.HandleFunc("/settings", h.GetSettings)

	// PUTs
	put := api.Methods("PUT").Subrouter()
	put.HandleFunc("/settings", h.PutSettings)

	// POSTs
	post := api.Methods("POST").Subrouter()
	post.HandleFunc("/actions/{action}", h.PostAction)

	return r
}
