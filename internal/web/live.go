package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/conveyor-sensor/internal/status"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  256,
	WriteBufferSize: 1024,
	// Portal clients arrive under whatever hostname they originally asked for.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLive streams the status snapshot as JSON text messages until the
// client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("live upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.liveInterval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, status.FormatCompact(s.tracker.Snapshot())); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-closed:
			return
		}
	}
}
