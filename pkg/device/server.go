// Package device serves the authoritative pose of the device over HTTP.
//
// GET /state is a Server-Sent Events stream that emits the current pose on a
// fixed cadence to every subscriber. POST /state accepts one command envelope
// and applies it to the guarded state.
package device

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/teslashibe/go-woofer/internal/config"
	"github.com/teslashibe/go-woofer/internal/log"
	"github.com/teslashibe/go-woofer/pkg/journal"
	"github.com/teslashibe/go-woofer/pkg/protocol"
)

// ShutdownTimeout bounds how long Shutdown waits for open connections.
const ShutdownTimeout = 5 * time.Second

// Journal records accepted commands and lists recent ones.
type Journal interface {
	Record(ctx context.Context, cmd protocol.Command) error
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Option configures a Server.
type Option func(*Server)

// WithPublishInterval sets the snapshot cadence of each subscriber stream.
func WithPublishInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.publishInterval = d
		}
	}
}

// WithKeepAlive sets the interval between keep-alive markers.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// WithJournal records every accepted command to j.
func WithJournal(j Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// Server is the device-side publisher.
type Server struct {
	app   *fiber.App
	state *State
	log   *slog.Logger

	publishInterval time.Duration
	keepAlive       time.Duration
	journal         Journal

	done      chan struct{}
	closeOnce sync.Once

	// Stats
	subscribers      atomic.Int64
	eventsSent       atomic.Uint64
	commandsAccepted atomic.Uint64
	commandsRejected atomic.Uint64
}

// NewServer creates a publisher serving state.
func NewServer(state *State, opts ...Option) *Server {
	s := &Server{
		state:           state,
		log:             log.Component("device"),
		publishInterval: config.DefaultPublishInterval,
		keepAlive:       config.DefaultKeepAlive,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "woofer device",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/state", s.handleStream)
	app.Post("/state", s.handleCommand)

	api := app.Group("/api")
	api.Get("/pose", s.handlePose)
	api.Get("/status", s.handleStatus)
	api.Get("/commands", s.handleCommands)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// State returns the guarded state served by s.
func (s *Server) State() *State {
	return s.state
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("listening", "addr", addr,
		"publish_interval", s.publishInterval, "keep_alive", s.keepAlive)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown ends every subscriber stream and stops the server.
func (s *Server) Shutdown() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.app.ShutdownWithTimeout(ShutdownTimeout)
}

// Stats contains publisher statistics.
type Stats struct {
	Subscribers      int64  `json:"subscribers"`
	EventsSent       uint64 `json:"events_sent"`
	CommandsAccepted uint64 `json:"commands_accepted"`
	CommandsRejected uint64 `json:"commands_rejected"`
	Revision         uint64 `json:"revision"`
}

// Stats returns a point-in-time copy of the publisher counters.
func (s *Server) Stats() Stats {
	return Stats{
		Subscribers:      s.subscribers.Load(),
		EventsSent:       s.eventsSent.Load(),
		CommandsAccepted: s.commandsAccepted.Load(),
		CommandsRejected: s.commandsRejected.Load(),
		Revision:         s.state.Revision(),
	}
}
