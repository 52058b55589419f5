package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ivritype/tirgum/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressEvent is one WebSocket progress frame for a session.
type ProgressEvent struct {
	Type      string               `json:"type"` // "progress" or "finished"
	SessionID string               `json:"session_id"`
	Finished  bool                 `json:"finished"`
	Cancelled bool                 `json:"cancelled"`
	Stats     map[string]int       `json:"stats"`
	Pages     []session.PageStatus `json:"pages"`
}

// progressWebSocketHandler streams session progress snapshots until the
// session finishes or the client disconnects.
func (s *Server) progressWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("progress stream opened", "session", sess.ID, "remote_addr", r.RemoteAddr)
	s.streamProgress(conn, sess)
}

func (s *Server) streamProgress(conn *websocket.Conn, sess *session.Session) {
	// Drain client messages so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		finished := sess.Finished()
		event := ProgressEvent{
			Type:      "progress",
			SessionID: sess.ID,
			Finished:  finished,
			Cancelled: sess.Cancelled(),
			Stats:     statusStats(sess),
			Pages:     sess.Snapshot(),
		}
		if finished {
			event.Type = "finished"
		}

		if err := s.sendProgressEvent(conn, event); err != nil {
			return
		}
		if finished {
			return
		}
		<-ticker.C
	}
}

func (s *Server) sendProgressEvent(conn *websocket.Conn, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal progress event", "error", err)
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}

func statusStats(sess *session.Session) map[string]int {
	stats := make(map[string]int)
	for status, n := range sess.Stats() {
		stats[string(status)] = n
	}
	return stats
}
