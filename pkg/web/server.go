// Package web serves the tracking control API and the websocket endpoints
// browser clients use to feed landmarks in and receive signals out.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-handflow/internal/log"
	"github.com/teslashibe/go-handflow/pkg/fanout"
	"github.com/teslashibe/go-handflow/pkg/hub"
	"github.com/teslashibe/go-handflow/pkg/landmark"
	"github.com/teslashibe/go-handflow/pkg/lifecycle"
	"github.com/teslashibe/go-handflow/pkg/tracking"
)

// Message kinds broadcast on the signal hub.
const (
	KindFrame  = "frame"
	KindScroll = "scroll"
	KindStatus = "status"
)

// Options configures a Server.
type Options struct {
	Port      string
	StaticDir string // Optional directory served at /

	// ActivateTimeout bounds a single activation request.
	ActivateTimeout time.Duration

	// Remote receives landmarks from /ws/landmarks. Nil disables the endpoint.
	Remote *landmark.RemoteSource

	// Frames is relayed to /ws/signal clients. Nil disables frame relay.
	Frames *fanout.Bus[tracking.Frame]

	// AccessLog enables per-request logging.
	AccessLog bool
}

// Server is the tracking control server
type Server struct {
	app     *fiber.App
	opts    Options
	manager *lifecycle.Manager
	signal  *hub.Hub
	logger  *slog.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	stopFrames func()
}

// NewServer creates a server around a lifecycle manager. The signal hub
// carries frames, scroll deltas and status changes to browser clients; use
// the same hub for the manager's ScrollBroadcaster and StatusBroadcaster.
func NewServer(manager *lifecycle.Manager, signal *hub.Hub, opts Options) *Server {
	if opts.ActivateTimeout <= 0 {
		opts.ActivateTimeout = 15 * time.Second
	}
	s := &Server{
		opts:    opts,
		manager: manager,
		signal:  signal,
		logger:  log.Component("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "handflow",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	// CORS for local development
	app.Use(cors.New())

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/tracking", s.handleStatus)
	api.Post("/tracking/activate", s.handleActivate)
	api.Post("/tracking/deactivate", s.handleDeactivate)
	api.Post("/tracking/toggle", s.handleToggle)
	api.Get("/calibration", s.handleGetCalibration)
	api.Put("/calibration", s.handleSetCalibration)
	api.Get("/signal", s.handleSignal)
	api.Get("/source", s.handleSource)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/signal", websocket.New(s.handleSignalWS))
	app.Get("/ws/landmarks", s.landmarkHandler())

	s.app = app
	return s
}

// Start runs the hub and frame relay and serves until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancel = cancel
	go s.signal.Run(ctx)
	if s.opts.Frames != nil {
		s.stopFrames = s.opts.Frames.Handle("web", 8, s.relayFrame)
	}
	s.mu.Unlock()

	s.logger.Info("listening", "addr", "http://localhost:"+s.opts.Port)
	return s.app.Listen(":" + s.opts.Port)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("server stopped", "error", err)
		}
	}()
}

// Shutdown stops accepting requests, disconnects websocket clients and
// stops the frame relay.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopFrames != nil {
		s.stopFrames()
		s.stopFrames = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return err
}

func (s *Server) relayFrame(frame tracking.Frame) {
	if s.signal.ClientCount() == 0 {
		return
	}
	if err := s.signal.BroadcastJSON(KindFrame, frame); err != nil {
		s.logger.Warn("encode frame", "error", err)
	}
}

// ScrollBroadcaster is a tracking.Scroller that forwards displacements to
// browser clients as {"type":"scroll","dy":...}.
type ScrollBroadcaster struct {
	Hub *hub.Hub
}

type scrollMessage struct {
	Type string  `json:"type"`
	DY   float64 `json:"dy"`
}

// ScrollBy implements tracking.Scroller. Displacements are events, so
// clients that connect later never replay a stale one.
func (b ScrollBroadcaster) ScrollBy(dy float64) {
	msg, err := newScrollMessage(dy)
	if err != nil {
		return
	}
	b.Hub.Broadcast(msg)
}

func newScrollMessage(dy float64) (hub.Message, error) {
	data, err := json.Marshal(scrollMessage{Type: KindScroll, DY: dy})
	if err != nil {
		return hub.Message{}, err
	}
	return hub.NewJSONEvent(KindScroll, data), nil
}

// StatusBroadcaster returns a lifecycle state-change hook that publishes
// each status to browser clients.
func StatusBroadcaster(h *hub.Hub) func(lifecycle.Status) {
	return func(st lifecycle.Status) {
		if err := h.BroadcastJSON(KindStatus, st); err != nil {
			log.Warn("encode status", "error", err)
		}
	}
}
