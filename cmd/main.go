package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/cleyfe/hyperliquid-arb/api"
	"github.com/cleyfe/hyperliquid-arb/config"
	"github.com/cleyfe/hyperliquid-arb/internal/hyperliquid"
	"github.com/cleyfe/hyperliquid-arb/internal/metrics"
	"github.com/cleyfe/hyperliquid-arb/internal/scanner"
	"github.com/cleyfe/hyperliquid-arb/internal/scheduler"
	"github.com/cleyfe/hyperliquid-arb/internal/store"
	"github.com/cleyfe/hyperliquid-arb/internal/trader"
)

func main() {
	// ── 1. Logger setup
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// ── 2. Root context setup
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 3. Config
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log.Info().Bool("testnet", cfg.UseTestnet).Bool("dry_run", cfg.DryRun).Msg("config loaded")

	// ── 4. Hyperliquid client
	opts := []hyperliquid.ClientOption{}
	if cfg.DryRun {
		opts = append(opts, hyperliquid.WithDryRun())
	} else {
		signer, err := hyperliquid.NewSigner(cfg.PrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load signing key")
		}
		opts = append(opts, hyperliquid.WithSigner(signer))
		log.Info().Str("wallet", signer.Address()).Msg("signer initialized")
	}
	client := hyperliquid.NewClient(cfg.UseTestnet, opts...)

	// ── 5. Position store
	positionStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open position store")
	}
	defer positionStore.Close()

	restored, err := positionStore.LoadOpen(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load open positions")
	}

	// ── 6. Scanner
	scan := scanner.NewScanner(client)
	if err := scan.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize markets")
	}

	// ── 7. Trader
	trd := trader.NewTrader(client, positionStore, trader.Config{
		PositionSizeUSD: decimal.NewFromFloat(cfg.PositionSizeUSD),
		MaxSlippage:     decimal.NewFromFloat(cfg.MaxSlippage),
		MaxPositions:    cfg.MaxPositions,
	})
	trd.Restore(restored)

	// ── 8. Price feed (best effort, scheduler falls back to polled marks)
	feed := hyperliquid.NewFeed(cfg.UseTestnet)
	feedStarted := false
	if err := feed.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("price feed unavailable, using polled mark prices")
	} else {
		feedStarted = true
	}

	// ── 9. Scheduler
	var prices scheduler.PriceSource
	if feedStarted {
		prices = feed
	}
	sched := scheduler.NewScheduler(scan, trd, prices, cfg.ScanInterval, cfg.MinFundingAPR, cfg.ExitFundingAPR)
	sched.Start(ctx)

	// ── 10. Metrics server
	var metricsServer *metrics.Server
	if cfg.MetricsPort > 0 {
		metricsServer = metrics.NewServer(cfg.MetricsPort)
		metricsServer.Start()
	}

	// ── 11. Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "hyperliquid-arb",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// ── 12. Routes
	api.SetupRoutes(app, sched, trd)

	// ── 13. Graceful shutdown listener
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutdown signal received")

		sched.Stop()
		if feedStarted {
			feed.Stop()
		}
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("error stopping metrics server")
			}
		}
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
	}()

	// ── 14. Start server (blocking)
	log.Info().Str("port", cfg.AppPort).Msg("starting server")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}
