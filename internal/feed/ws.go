package feed

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// ServeWS upgrades the request to a WebSocket and streams the user's
// progress updates as JSON until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	updates, cancel := h.Subscribe(userID)
	defer cancel()

	slog.Info("progress feed connected", "user_id", userID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-updates:
			writeCtx, done := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, rec)
			done()
			if err != nil {
				slog.Info("progress feed disconnected", "user_id", userID, "error", err)
				return
			}
		}
	}
}
