package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients are not a target surface; the CLI sets no Origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWatch streams every message appended to the conversation, starting
// from the moment of connection. History comes from the list endpoint.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := s.ensureConversation(r, userID); err != nil {
		s.logger.Error("ensure conversation", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	// Subscribe before completing the handshake: anything appended after
	// the client sees the upgrade response is guaranteed to be delivered.
	ch, cancel := s.feed.Subscribe(userID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "user", userID, "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("watcher connected", "user", userID)
	defer s.logger.Info("watcher disconnected", "user", userID)

	// Reader only consumes control frames; any client data or error ends
	// the session.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toMessageDTO(msg)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
