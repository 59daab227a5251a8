package device

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// keepAliveMarker is the SSE comment written between snapshots so idle
// proxies keep the connection open. Clients ignore comment lines.
const keepAliveMarker = ":keep-alive-text\n\n"

// handleStream upgrades the request to an SSE stream of snapshots.
func (s *Server) handleStream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")

	id := uuid.NewString()
	// The writer runs after the handler returns; it must not touch c.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		s.streamTo(id, w)
	})
	return nil
}

// streamTo writes one snapshot immediately and then one per publish tick,
// interleaved with keep-alive markers, until the client goes away or the
// server shuts down.
func (s *Server) streamTo(id string, w *bufio.Writer) {
	n := s.subscribers.Add(1)
	logger := s.log.With("subscriber", id)
	logger.Info("subscriber connected", "total", n)

	sent := uint64(0)
	defer func() {
		n := s.subscribers.Add(-1)
		logger.Info("subscriber disconnected", "events", sent, "remaining", n)
	}()

	publish := time.NewTicker(s.publishInterval)
	defer publish.Stop()
	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	if err := s.publishTo(w); err != nil {
		logger.Debug("stream write failed", "error", err)
		return
	}
	sent++

	for {
		select {
		case <-s.done:
			return

		case <-publish.C:
			if err := s.publishTo(w); err != nil {
				logger.Debug("stream write failed", "error", err)
				return
			}
			sent++

		case <-keepAlive.C:
			if _, err := io.WriteString(w, keepAliveMarker); err != nil {
				logger.Debug("keep-alive write failed", "error", err)
				return
			}
			if err := w.Flush(); err != nil {
				logger.Debug("keep-alive write failed", "error", err)
				return
			}
		}
	}
}

// publishTo copies the current snapshot and writes it as one SSE event.
func (s *Server) publishTo(w *bufio.Writer) error {
	snapshot := s.state.Snapshot()

	data, err := snapshot.Encode()
	if err != nil {
		return err
	}
	if err := writeEvent(w, data); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	s.eventsSent.Add(1)
	return nil
}

// writeEvent frames data as a single SSE data event.
// data must not contain newlines; encoded JSON never does.
func writeEvent(w io.Writer, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
