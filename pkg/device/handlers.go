package device

import (
	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-woofer/pkg/protocol"
)

// maxCommandsLimit caps the ?limit= query of /api/commands.
const maxCommandsLimit = 1000

// handleCommand applies one command envelope to the guarded state.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	cmd, v, err := protocol.ParseCommand(c.Body())
	if err != nil {
		s.commandsRejected.Add(1)
		s.log.Warn("command rejected", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	_, rev := s.state.Apply(v)
	s.commandsAccepted.Add(1)
	s.log.Debug("command applied", "kind", cmd.Kind, "revision", rev)

	// Recording happens after the state lock is released.
	if s.journal != nil {
		if err := s.journal.Record(c.UserContext(), cmd); err != nil {
			s.log.Warn("failed to journal command", "kind", cmd.Kind, "error", err)
		}
	}

	c.Status(fiber.StatusOK)
	return nil
}

// handlePose returns the current snapshot as a single JSON document.
func (s *Server) handlePose(c *fiber.Ctx) error {
	return c.JSON(s.state.Snapshot())
}

// handleStatus returns publisher statistics.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Stats())
}

// handleCommands lists recently accepted commands from the journal.
func (s *Server) handleCommands(c *fiber.Ctx) error {
	if s.journal == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "journal not configured",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxCommandsLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 1000",
		})
	}

	entries, err := s.journal.Recent(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"commands": entries,
		"count":    len(entries),
	})
}
