package device

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	// writeWait is how long to wait for a websocket write to complete
	writeWait = 2 * time.Second
)

// handleStateWS mirrors the snapshot stream over a websocket, one JSON text
// message per publish tick, with ping frames as keep-alive.
func (s *Server) handleStateWS(conn *websocket.Conn) {
	id := uuid.NewString()
	n := s.subscribers.Add(1)
	logger := s.log.With("subscriber", id, "transport", "websocket")
	logger.Info("subscriber connected", "total", n)
	defer func() {
		n := s.subscribers.Add(-1)
		logger.Info("subscriber disconnected", "remaining", n)
	}()

	// We don't expect messages from clients, but we need to read
	// to detect disconnection and receive pong responses
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	publish := time.NewTicker(s.publishInterval)
	defer publish.Stop()
	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	send := func() error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(s.state.Snapshot()); err != nil {
			return err
		}
		s.eventsSent.Add(1)
		return nil
	}

	if err := send(); err != nil {
		return
	}

	for {
		select {
		case <-s.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-closed:
			return
		case <-publish.C:
			if err := send(); err != nil {
				return
			}
		case <-keepAlive.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
