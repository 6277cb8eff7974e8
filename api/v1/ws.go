package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tinoosan/launcher/internal/reqid"
)

const wsWriteTimeout = 5 * time.Second

// StreamStatus upgrades to a websocket and pushes a status snapshot on
// every change. Slow clients only see the latest snapshot. The stream ends
// when the client goes away or the orchestrator shuts down.
func (h *LauncherHandler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		markErr(w, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	// Inbound messages are not expected; CloseRead handles control frames
	// and cancels ctx when the peer closes.
	ctx := c.CloseRead(r.Context())
	updates, cancel := h.svc.Watch()
	defer cancel()
	lg := reqid.Logger(r.Context(), h.l)
	lg.Debug("status stream opened")

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				_ = c.Close(websocket.StatusGoingAway, "launcher shutting down")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(wctx, c, s)
			wcancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					lg.Debug("status stream write failed", "err", err)
				}
				return
			}
		}
	}
}
