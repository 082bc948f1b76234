package web

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-handflow/pkg/hub"
	"github.com/teslashibe/go-handflow/pkg/landmark"
	"github.com/teslashibe/go-handflow/pkg/lifecycle"
	"github.com/teslashibe/go-handflow/pkg/tracking"
)

// SignalResponse is the polling view of the current signals. Frame is
// omitted while tracking is not active.
type SignalResponse struct {
	State lifecycle.State `json:"state"`
	Frame *tracking.Frame `json:"frame,omitempty"`
}

// SourceResponse reports remote landmark ingestion.
type SourceResponse struct {
	Producers int    `json:"producers"`
	Received  uint64 `json:"received"`
	Dropped   uint64 `json:"dropped"`
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the lifecycle status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.manager.Status())
}

// handleActivate starts tracking
func (s *Server) handleActivate(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.ActivateTimeout)
	defer cancel()

	if _, err := s.manager.Activate(ctx); err != nil {
		return s.lifecycleError(c, err)
	}
	return c.JSON(s.manager.Status())
}

// handleDeactivate stops tracking
func (s *Server) handleDeactivate(c *fiber.Ctx) error {
	if err := s.manager.Deactivate(); err != nil {
		return s.lifecycleError(c, err)
	}
	return c.JSON(s.manager.Status())
}

// handleToggle flips tracking on or off
func (s *Server) handleToggle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.ActivateTimeout)
	defer cancel()

	st, err := s.manager.Toggle(ctx)
	if err != nil {
		return s.lifecycleError(c, err)
	}
	return c.JSON(st)
}

// lifecycleError maps activation errors to status codes
func (s *Server) lifecycleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var acq *landmark.AcquisitionError
	switch {
	case errors.Is(err, lifecycle.ErrBusy):
		code = fiber.StatusConflict
	case errors.As(err, &acq):
		code = fiber.StatusServiceUnavailable
	}

	st := s.manager.Status()
	return c.Status(code).JSON(fiber.Map{
		"state": st.State,
		"error": err.Error(),
	})
}

// handleGetCalibration returns the current tuning parameters
func (s *Server) handleGetCalibration(c *fiber.Ctx) error {
	return c.JSON(s.manager.Config().Tuning())
}

// handleSetCalibration applies tuning parameters. Omitted fields keep their
// current values.
func (s *Server) handleSetCalibration(c *fiber.Ctx) error {
	params := s.manager.Config().Tuning()
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid calibration body: " + err.Error(),
		})
	}

	if err := s.manager.SetTuning(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.manager.Config().Tuning())
}

// handleSignal returns the latest frame of the active session
func (s *Server) handleSignal(c *fiber.Ctx) error {
	resp := SignalResponse{State: s.manager.State()}
	if session := s.manager.Session(); session != nil {
		frame := session.Frame()
		resp.Frame = &frame
	}
	return c.JSON(resp)
}

// handleSource returns remote ingestion counters
func (s *Server) handleSource(c *fiber.Ctx) error {
	if s.opts.Remote == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "remote source not configured",
		})
	}
	received, dropped := s.opts.Remote.Stats()
	return c.JSON(SourceResponse{
		Producers: s.opts.Remote.Producers(),
		Received:  received,
		Dropped:   dropped,
	})
}

// handleSignalWS streams frames, scroll deltas and status to a client
func (s *Server) handleSignalWS(c *websocket.Conn) {
	hub.NewClient(s.signal, c).Run()
}
