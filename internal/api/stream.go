package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/fella-world/internal/engine"
	"github.com/talgya/fella-world/internal/simtime"
)

const (
	defaultStreamInterval = 250 * time.Millisecond
	streamWriteTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // read-only feed
}

// streamFrame is one message on the observer stream.
type streamFrame struct {
	Type  string            `json:"type"` // Always "snapshot"
	Scale simtime.TimeScale `json:"scale"`
	engine.Snapshot
}

// handleStream upgrades to a websocket and pushes a world snapshot every
// StreamInterval until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Connection limit.
	if s.streamConns.Add(1) > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader goroutine: the feed is one-way, but reading is how close frames
	// and dead peers are noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.StreamInterval
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("stream client connected", "remote", r.RemoteAddr)
	defer slog.Info("stream client disconnected", "remote", r.RemoteAddr)

	for {
		if err := s.writeSnapshot(conn); err != nil {
			slog.Debug("stream write failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn) error {
	frame := streamFrame{Type: "snapshot", Scale: s.Eng.Scale()}
	s.Eng.View(func(sim *engine.Simulation) {
		frame.Snapshot = sim.Snapshot()
	})
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}
