package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/cleyfe/hyperliquid-arb/api/handlers"
	"github.com/cleyfe/hyperliquid-arb/internal/scheduler"
	"github.com/cleyfe/hyperliquid-arb/internal/trader"
)

func SetupRoutes(app *fiber.App, sched *scheduler.Scheduler, trd *trader.Trader) {
	opportunityHandler := handlers.NewOpportunityHandler(sched)
	positionHandler := handlers.NewPositionHandler(trd)

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/v1")

	v1.Get("/opportunities", opportunityHandler.List)
	v1.Get("/opportunities/:symbol", opportunityHandler.Get)
	v1.Get("/positions", positionHandler.List)
}
