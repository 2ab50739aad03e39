package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cleyfe/hyperliquid-arb/internal/metrics"
	"github.com/cleyfe/hyperliquid-arb/internal/models"
)

// Source produces ranked opportunities and resolves symbols to markets.
type Source interface {
	Scan(ctx context.Context) ([]*models.Opportunity, error)
	Market(symbol string) (*models.Market, bool)
}

// Trader is the position-taking side the scheduler drives.
type Trader interface {
	HasPosition(symbol string) bool
	CanEnter() bool
	Enter(ctx context.Context, market *models.Market, opp *models.Opportunity) error
	Exit(ctx context.Context, market *models.Market, markPrice float64) error
	OpenPositions() []*models.Position
}

// PriceSource supplies fresher prices than the polled snapshot, typically the
// websocket mid feed. May be nil.
type PriceSource interface {
	Mid(symbol string) (float64, bool)
}

type Scheduler struct {
	source   Source
	trader   Trader
	prices   PriceSource
	interval time.Duration
	entryAPR float64
	exitAPR  float64

	mu       sync.RWMutex
	cache    []*models.Opportunity
	bySymbol map[string]*models.Opportunity

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewScheduler(source Source, trader Trader, prices PriceSource, interval time.Duration, entryAPR, exitAPR float64) *Scheduler {
	return &Scheduler{
		source:   source,
		trader:   trader,
		prices:   prices,
		interval: interval,
		entryAPR: entryAPR,
		exitAPR:  exitAPR,
		bySymbol: make(map[string]*models.Opportunity),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the scan loop in a background goroutine. The first scan runs
// immediately so the cache is never empty once Start returns.
func (s *Scheduler) Start(ctx context.Context) {
	s.refresh(ctx)

	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.refresh(ctx)
			case <-ctx.Done():
				log.Info().Msg("scheduler stopped by context")
				return
			case <-s.stopCh:
				log.Info().Msg("scheduler stopped")
				return
			}
		}
	}()

	log.Info().
		Stringer("interval", s.interval).
		Float64("entry_apr", s.entryAPR).
		Float64("exit_apr", s.exitAPR).
		Msg("scheduler started")
}

// Stop signals the loop to exit and waits for it. Idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// GetOpportunities returns the latest ranked scan results.
func (s *Scheduler) GetOpportunities() []*models.Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cache
}

// GetOpportunity returns the cached snapshot for one symbol.
func (s *Scheduler) GetOpportunity(symbol string) (*models.Opportunity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opp, ok := s.bySymbol[symbol]
	return opp, ok
}

func (s *Scheduler) refresh(ctx context.Context) {
	opportunities, err := s.source.Scan(ctx)
	if err != nil {
		metrics.ScanErrors.Inc()
		log.Error().Err(err).Msg("funding scan failed")
		return
	}
	metrics.ScansTotal.Inc()

	bySymbol := make(map[string]*models.Opportunity, len(opportunities))
	for _, opp := range opportunities {
		bySymbol[opp.Symbol] = opp
	}

	s.mu.Lock()
	s.cache = opportunities
	s.bySymbol = bySymbol
	s.mu.Unlock()

	if len(opportunities) == 0 {
		log.Info().Msg("no opportunities found")
	} else {
		metrics.BestFundingAPR.Set(abs(opportunities[0].FundingAPR))

		for i, opp := range opportunities {
			if i >= 5 {
				break
			}
			log.Info().
				Str("symbol", opp.Symbol).
				Float64("funding_apr", opp.FundingAPR).
				Float64("mark_price", opp.MarkPrice).
				Msg("top funding opportunity")
		}
	}

	// Exits must run even on an empty scan, half-closed positions included.
	s.trade(ctx)
}

// trade runs exits before entries so closed positions free capacity within
// the same cycle.
func (s *Scheduler) trade(ctx context.Context) {
	for _, position := range s.trader.OpenPositions() {
		opp, ok := s.GetOpportunity(position.Symbol)
		if !ok {
			if position.Status == models.PositionClosing {
				s.retryClose(ctx, position)
			}
			continue
		}

		if position.Status != models.PositionClosing && abs(opp.FundingAPR) >= s.exitAPR {
			continue
		}

		market, ok := s.source.Market(position.Symbol)
		if !ok {
			log.Warn().Str("symbol", position.Symbol).Msg("no market for held position, exit deferred")
			continue
		}

		if err := s.trader.Exit(ctx, market, s.price(opp)); err != nil {
			log.Error().Err(err).Str("symbol", position.Symbol).Msg("exit failed")
		}
	}

	for _, opp := range s.GetOpportunities() {
		// Ranked by |APR| descending, so the first miss ends the pass.
		if abs(opp.FundingAPR) < s.entryAPR {
			break
		}
		if s.trader.HasPosition(opp.Symbol) || !s.trader.CanEnter() {
			continue
		}

		market, ok := s.source.Market(opp.Symbol)
		if !ok {
			continue
		}

		entry := *opp
		entry.MarkPrice = s.price(opp)

		log.Info().
			Str("symbol", opp.Symbol).
			Float64("funding_apr", opp.FundingAPR).
			Msg("found opportunity")

		if err := s.trader.Enter(ctx, market, &entry); err != nil {
			log.Error().Err(err).Str("symbol", opp.Symbol).Msg("entry failed")
		}
	}
}

// retryClose drives a half-closed position whose symbol fell out of the scan,
// pricing off the websocket mid since no polled mark is available.
func (s *Scheduler) retryClose(ctx context.Context, position *models.Position) {
	market, ok := s.source.Market(position.Symbol)
	if !ok {
		log.Warn().Str("symbol", position.Symbol).Msg("no market for closing position, exit deferred")
		return
	}

	var mid float64
	var haveMid bool
	if s.prices != nil {
		mid, haveMid = s.prices.Mid(position.Symbol)
	}
	if !haveMid {
		log.Warn().Str("symbol", position.Symbol).Msg("no price for closing position, exit deferred")
		return
	}

	if err := s.trader.Exit(ctx, market, mid); err != nil {
		log.Error().Err(err).Str("symbol", position.Symbol).Msg("exit failed")
	}
}

// price prefers a fresh websocket mid over the polled mark price.
func (s *Scheduler) price(opp *models.Opportunity) float64 {
	if s.prices != nil {
		if mid, ok := s.prices.Mid(opp.Symbol); ok {
			return mid
		}
	}
	return opp.MarkPrice
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
