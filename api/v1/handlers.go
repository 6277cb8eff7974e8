package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/tinoosan/launcher/internal/data"
	"github.com/tinoosan/launcher/internal/orchestrator"
	"github.com/tinoosan/launcher/internal/service"
)

// LauncherHandler serves the control API.
type LauncherHandler struct {
	l   *slog.Logger
	svc service.Launcher
}

type settingsBody struct {
	InstallPath string `json:"installPath"`
	CommandLine string `json:"commandLine"`
}

type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) SetErr(err error) {
	w.err = err
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

type errorSetter interface {
	SetErr(error)
}

func markErr(w http.ResponseWriter, err error) {
	if es, ok := w.(errorSetter); ok {
		es.SetErr(err)
	}
}

func NewLauncherHandler(l *slog.Logger, svc service.Launcher) *LauncherHandler {
	return &LauncherHandler{l: l, svc: svc}
}

// GetStatus returns the latest status snapshot.
func (h *LauncherHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	s := h.svc.Status()
	if err := writeJSON(w, http.StatusOK, &s); err != nil {
		markErr(w, err)
	}
}

// GetNews returns the cached news feed; 502 when it was never fetched.
func (h *LauncherHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.News(r.Context())
	if err != nil {
		markErr(w, err)
		http.Error(w, "news unavailable", http.StatusBadGateway)
		return
	}
	if n == nil {
		n = data.News{}
	}
	if err := writeJSON(w, http.StatusOK, n); err != nil {
		markErr(w, err)
	}
}

func (h *LauncherHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, h.svc.Settings()); err != nil {
		markErr(w, err)
	}
}

// PutSettings replaces the install path and command line. The installed
// version marker is not writable here.
func (h *LauncherHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := decodeJSONStrict(w, r, &body, 1<<20, "application/json"); err != nil {
		markErr(w, err)
		if errors.Is(err, ErrContentType) {
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.InstallPath) == "" {
		markErr(w, ErrInstallPath)
		http.Error(w, ErrInstallPath.Error(), http.StatusBadRequest)
		return
	}

	s := data.Settings{InstallPath: body.InstallPath, CommandLine: body.CommandLine}
	if err := h.svc.ApplySettings(r.Context(), s); err != nil {
		h.intentError(w, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, h.svc.Settings()); err != nil {
		markErr(w, err)
	}
}

// PostAction dispatches one of primary, toggle, verify or play. Accepted
// intents answer 202 with the status right after the intent was handled.
func (h *LauncherHandler) PostAction(w http.ResponseWriter, r *http.Request) {
	action := service.Action(mux.Vars(r)["action"])
	if err := h.svc.Do(r.Context(), action); err != nil {
		h.intentError(w, err)
		return
	}
	s := h.svc.Status()
	if err := writeJSON(w, http.StatusAccepted, &s); err != nil {
		markErr(w, err)
	}
}

func (h *LauncherHandler) intentError(w http.ResponseWriter, err error) {
	markErr(w, err)
	switch {
	case errors.Is(err, service.ErrUnknownAction):
		http.Error(w, ErrUnknownAct.Error(), http.StatusNotFound)
	case errors.Is(err, orchestrator.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, orchestrator.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "action failed: "+err.Error(), http.StatusInternalServerError)
	}
}
