// Package web provides a live preview dashboard for the thermal
// stream: JSON status over HTTP and JPEG frames over websocket.
package web

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/openthermal/go-senxor/internal/log"
	"github.com/openthermal/go-senxor/pkg/hub"
)

// Status is the stream state reported to the dashboard.
type Status struct {
	CameraID  string  `json:"camera_id"`
	Module    string  `json:"module"`
	FWVersion string  `json:"fw_version"`
	Framerate float64 `json:"framerate"`
	Frames    int64   `json:"frames"`
	Recording string  `json:"recording,omitempty"`
	Viewers   int     `json:"viewers"`
}

// Server is the preview web server.
type Server struct {
	app  *fiber.App
	addr string

	status   Status
	statusMu sync.RWMutex

	frameHub *hub.Hub
	hubStop  context.CancelFunc

	// StatusFunc, when set, refreshes the live counters on each
	// /api/status request.
	StatusFunc func(*Status)
}

// NewServer creates the preview server listening on addr.
func NewServer(addr string) *Server {
	s := &Server{
		addr:     addr,
		frameHub: hub.New("frames"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-senxor preview",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/", s.handleIndex)
	app.Get("/api/status", s.handleStatus)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	s.app = app
	return s
}

// SetStatus seeds the static identity fields of the status report.
func (s *Server) SetStatus(st Status) {
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}

// StartAsync starts the hub and server in the background.
func (s *Server) StartAsync() {
	ctx, cancel := context.WithCancel(context.Background())
	s.hubStop = cancel
	go s.frameHub.Run(ctx)
	go func() {
		log.Info("preview server listening", "addr", s.addr)
		if err := s.app.Listen(s.addr); err != nil {
			log.Error("preview server stopped", "err", err)
		}
	}()
}

// Shutdown stops accepting connections, then stops the frame hub so
// its loop and any client pumps exit.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	if s.hubStop != nil {
		s.hubStop()
	}
	return err
}

// PublishFrame broadcasts a rendered JPEG to all viewers. Safe to
// call from the acquisition loop; slow viewers are dropped, never
// waited on.
func (s *Server) PublishFrame(jpeg []byte) {
	s.frameHub.BroadcastBinary(jpeg)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.statusMu.RLock()
	st := s.status
	s.statusMu.RUnlock()

	if s.StatusFunc != nil {
		s.StatusFunc(&st)
	}
	st.Viewers = s.frameHub.ClientCount()
	return c.JSON(st)
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(indexPage)
}

// handleFramesWS handles websocket connections for the live preview
func (s *Server) handleFramesWS(c *websocket.Conn) {
	client := hub.NewClient(s.frameHub, c)
	client.Run() // Blocks until disconnect
}
