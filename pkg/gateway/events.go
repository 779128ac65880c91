package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sipeed/picocast/pkg/bus"
	"github.com/sipeed/picocast/pkg/logger"
)

const (
	eventBuffer  = 128
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// handleEvents upgrades to a websocket and forwards bus events as JSON
// text frames. ?session=<id> restricts the stream to one session.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("gateway", "WebSocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	defer conn.Close()

	filter := r.URL.Query().Get("session")
	ch, unsubscribe := s.events.Subscribe(eventBuffer)
	defer unsubscribe()

	// The read loop only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.DebugCF("gateway", "Event stream opened", map[string]any{"remote": r.RemoteAddr, "session": filter})

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeTimeout))
				return
			}
			if !matches(ev, filter) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func matches(ev bus.Event, session string) bool {
	return session == "" || ev.SessionID == session
}
