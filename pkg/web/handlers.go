package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/posture-police/pkg/monitor"
	"github.com/teslashibe/posture-police/pkg/posture"
)

// handleStatus returns the latest tick, or the settings alone before the
// first tick.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if r, ok := s.ctl.Last(); ok {
		return c.JSON(NewStatus(r))
	}
	return c.JSON(Status{
		State:    posture.Unknown.String(),
		Label:    "Camera off",
		Color:    string(monitor.ColorRed),
		Settings: NewSettings(s.ctl.Settings()),
	})
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(NewSettings(s.ctl.Settings()))
}

func (s *Server) handlePutSettings(c *fiber.Ctx) error {
	var req SettingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	updated := s.ctl.UpdateSettings(req.apply)
	s.logger.Info("settings updated",
		"sensitivity", int(updated.Sensitivity),
		"alarm_delay", updated.AlarmDelay,
	)
	return c.JSON(NewSettings(updated))
}

// actionTimeout bounds how long a request waits for the monitor loop.
const actionTimeout = 10 * time.Second

func (s *Server) handleCalibrate(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), actionTimeout)
	defer cancel()

	b, err := s.ctl.Calibrate(ctx)
	switch {
	case err == nil:
		return c.JSON(NewBaseline(b))
	case errors.Is(err, posture.ErrNoBodyDetected):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "no body detected")
	case errors.Is(err, monitor.ErrCameraOff):
		return fiber.NewError(fiber.StatusConflict, "camera is off")
	default:
		return err
	}
}

func (s *Server) handleCamera(c *fiber.Ctx) error {
	var req cameraRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return fiber.NewError(fiber.StatusBadRequest, `body must be {"enabled": bool}`)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), actionTimeout)
	defer cancel()

	err := s.ctl.SetCamera(ctx, *req.Enabled)
	switch {
	case err == nil:
		return c.JSON(NewSettings(s.ctl.Settings()))
	case errors.Is(err, monitor.ErrCameraOpen):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

func (s *Server) handleGetCameraConfig(c *fiber.Ctx) error {
	if s.cameras == nil {
		return fiber.ErrNotFound
	}
	return c.JSON(s.cameras.GetConfig())
}

// handlePutCameraConfig applies a partial camera config. It takes effect
// the next time the camera starts.
func (s *Server) handlePutCameraConfig(c *fiber.Ctx) error {
	if s.cameras == nil {
		return fiber.ErrNotFound
	}
	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid camera config body")
	}
	if err := s.cameras.UpdateConfig(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprint(err))
	}
	return c.JSON(s.cameras.GetConfig())
}
