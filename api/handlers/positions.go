package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/cleyfe/hyperliquid-arb/internal/trader"
)

type PositionHandler struct {
	trader *trader.Trader
}

func NewPositionHandler(trader *trader.Trader) *PositionHandler {
	return &PositionHandler{trader}
}

// Handles GET /v1/positions.
func (h *PositionHandler) List(c fiber.Ctx) error {
	positions := h.trader.OpenPositions()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count":     len(positions),
		"positions": positions,
	})
}
