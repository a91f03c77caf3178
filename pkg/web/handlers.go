package web

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-camcorder/pkg/camcorder"
)

// startTimeout bounds how long a start request waits for first-frame
// confirmation before reporting failure to the HTTP caller.
const startTimeout = 10 * time.Second

// stopTimeout bounds how long a stop request waits for finalization.
const stopTimeout = 15 * time.Second

// handleState returns the current controller snapshot.
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.controller.State())
}

// InitializeRequest selects the lens and quality for initialization.
type InitializeRequest struct {
	Lens        string `json:"lens"`
	Quality     string `json:"quality"`
	ScreenFlash bool   `json:"screen_flash"`
}

func (s *Server) handleInitialize(c *fiber.Ctx) error {
	var req InitializeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	lens, err := camcorder.ParseLens(req.Lens)
	if err != nil {
		return badRequest(c, err.Error())
	}
	quality, err := camcorder.ParseQuality(req.Quality)
	if err != nil {
		return badRequest(c, err.Error())
	}

	state, err := s.controller.Initialize(lens, quality, req.ScreenFlash)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(state)
}

// SwitchRequest selects the lens to switch to.
type SwitchRequest struct {
	Lens string `json:"lens"`
}

func (s *Server) handleSwitch(c *fiber.Ctx) error {
	var req SwitchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	lens, err := camcorder.ParseLens(req.Lens)
	if err != nil {
		return badRequest(c, err.Error())
	}

	state, err := s.controller.SwitchCamera(lens)
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(state)
}

// FlashRequest selects the flash mode.
type FlashRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleFlash(c *fiber.Ctx) error {
	var req FlashRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	mode, err := camcorder.ParseFlashMode(req.Mode)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(fiber.Map{"ok": s.controller.SetFlashMode(mode)})
}

// ZoomRequest carries the requested zoom ratio.
type ZoomRequest struct {
	Ratio float64 `json:"ratio"`
}

func (s *Server) handleZoom(c *fiber.Ctx) error {
	var req ZoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return c.JSON(fiber.Map{"ok": s.controller.SetZoomLevel(req.Ratio)})
}

// PointRequest carries normalized metering coordinates.
type PointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleFocus(c *fiber.Ctx) error {
	var req PointRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return c.JSON(fiber.Map{"ok": s.controller.SetFocusPoint(req.X, req.Y)})
}

func (s *Server) handleExposure(c *fiber.Ctx) error {
	var req PointRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return c.JSON(fiber.Map{"ok": s.controller.SetExposurePoint(req.X, req.Y)})
}

// StartRecordingRequest configures one recording attempt.
type StartRecordingRequest struct {
	MaxDurationMs int64  `json:"max_duration_ms"`
	Dir           string `json:"dir"`
}

// handleStartRecording starts an attempt and answers once the first
// encoded frame is confirmed.
func (s *Server) handleStartRecording(c *fiber.Ctx) error {
	var req StartRecordingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	dir := req.Dir
	if dir == "" {
		dir = s.OutputDir
	}

	opts := camcorder.RecordingOptions{
		Dir:         dir,
		MaxDuration: time.Duration(req.MaxDurationMs) * time.Millisecond,
	}
	started := make(chan error, 1)
	if err := s.controller.StartRecording(opts, func(err error) { started <- err }); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	select {
	case err := <-started:
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"recording": true})
	case <-time.After(startTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "recording start timed out"})
	}
}

type stopOutcome struct {
	result *camcorder.RecordingResult
	err    error
}

// handleStopRecording stops the attempt and answers with the finalized
// result.
func (s *Server) handleStopRecording(c *fiber.Ctx) error {
	done := make(chan stopOutcome, 1)
	err := s.controller.StopRecording(func(result *camcorder.RecordingResult, err error) {
		done <- stopOutcome{result: result, err: err}
	})
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	select {
	case out := <-done:
		if out.err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": out.err.Error()})
		}
		return c.JSON(out.result)
	case <-time.After(stopTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "finalize timed out"})
	}
}

func (s *Server) handlePausePreview(c *fiber.Ctx) error {
	s.controller.PausePreview()
	return c.JSON(s.controller.State())
}

func (s *Server) handleResumePreview(c *fiber.Ctx) error {
	state, err := s.controller.ResumePreview()
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(state)
}

func (s *Server) handleRelease(c *fiber.Ctx) error {
	s.controller.Release()
	return c.JSON(fiber.Map{"released": true})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
