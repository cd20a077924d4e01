package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/proposalmesh/core"
)

const (
	watchWriteWait = 10 * time.Second
	watchPongWait  = 60 * time.Second
	watchPingEvery = (watchPongWait * 9) / 10
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is origin-agnostic; cross-origin policy is enforced by the
	// deployment in front of it.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// handleWatch streams run events over a WebSocket until the run reaches a
// terminal status. The event channel drops oldest entries under
// backpressure, so a slow consumer sees a gappy but current stream.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	events, cancel, err := s.pipeline.Watch(runID)
	if err != nil {
		if errors.Is(err, core.ErrRunNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("http.watch", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	defer cancel()

	conn, err := watchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(watchPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})

	// Reader goroutine: the client never sends data frames, but reading is
	// what surfaces pings, pongs and the close handshake.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchPingEvery)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				deadline := time.Now().Add(watchWriteWait)
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
				_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-clientGone:
			return

		case <-r.Context().Done():
			return
		}
	}
}
