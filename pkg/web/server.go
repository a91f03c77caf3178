// Package web exposes the camera controller over HTTP and websocket for
// operational control and preview monitoring. It renders no UI.
package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-camcorder/internal/log"
	"github.com/teslashibe/go-camcorder/pkg/camcorder"
	"github.com/teslashibe/go-camcorder/pkg/hub"
)

// Server is the camera control server.
type Server struct {
	app  *fiber.App
	port string

	controller *camcorder.Controller

	// OutputDir is where recordings started over HTTP land.
	OutputDir string

	// Hubs for websocket broadcast (thread-safe!)
	stateHub   *hub.Hub
	previewHub *hub.Hub
}

// NewServer creates a control server around the controller.
func NewServer(port string, controller *camcorder.Controller, outputDir string) *Server {
	s := &Server{
		port:       port,
		controller: controller,
		OutputDir:  outputDir,
		stateHub:   hub.New("state"),
		previewHub: hub.New("preview"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Camcorder Control",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/initialize", s.handleInitialize)
	api.Post("/switch", s.handleSwitch)
	api.Post("/flash", s.handleFlash)
	api.Post("/zoom", s.handleZoom)
	api.Post("/focus", s.handleFocus)
	api.Post("/exposure", s.handleExposure)
	api.Post("/record/start", s.handleStartRecording)
	api.Post("/record/stop", s.handleStopRecording)
	api.Post("/preview/pause", s.handlePausePreview)
	api.Post("/preview/resume", s.handleResumePreview)
	api.Post("/release", s.handleRelease)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/preview", websocket.New(s.handlePreviewWS))

	s.app = app

	// Push every controller state change to websocket clients.
	controller.OnStateChange = func(st camcorder.CameraState) {
		s.stateHub.BroadcastJSON(st)
	}

	return s
}

// Start starts the control server. Blocks until shutdown.
func (s *Server) Start() error {
	log.Info("camera control server listening", "port", s.port)

	go s.stateHub.Run()
	go s.previewHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the control server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("control server stopped", "error", err)
		}
	}()
}

// SendPreviewFrame broadcasts a JPEG preview frame to websocket clients.
func (s *Server) SendPreviewFrame(jpegData []byte) {
	s.previewHub.BroadcastBinary(jpegData)
}

// StateHub returns the state hub for external use.
func (s *Server) StateHub() *hub.Hub {
	return s.stateHub
}

// Shutdown gracefully stops the control server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleStateWS streams state snapshots to one client.
func (s *Server) handleStateWS(c *websocket.Conn) {
	// Send the current snapshot before live updates.
	c.WriteJSON(s.controller.State())
	client := hub.NewClient(s.stateHub, c)
	client.Run()
}

// handlePreviewWS streams binary preview frames to one client.
func (s *Server) handlePreviewWS(c *websocket.Conn) {
	client := hub.NewClient(s.previewHub, c)
	client.Run()
}
