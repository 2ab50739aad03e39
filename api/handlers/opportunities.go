package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/cleyfe/hyperliquid-arb/internal/scheduler"
)

type OpportunityHandler struct {
	scheduler *scheduler.Scheduler
}

func NewOpportunityHandler(scheduler *scheduler.Scheduler) *OpportunityHandler {
	return &OpportunityHandler{scheduler}
}

// Handles GET /v1/opportunities.
func (h *OpportunityHandler) List(c fiber.Ctx) error {
	opportunities := h.scheduler.GetOpportunities()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count":         len(opportunities),
		"opportunities": opportunities,
	})
}

// Handles GET /v1/opportunities/:symbol.
func (h *OpportunityHandler) Get(c fiber.Ctx) error {
	symbol := c.Params("symbol")

	opp, ok := h.scheduler.GetOpportunity(symbol)
	if !ok {
		log.Warn().Str("symbol", symbol).Msg("symbol not found in scan cache")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "symbol not available, it may lack a spot pairing",
		})
	}

	return c.Status(fiber.StatusOK).JSON(opp)
}
