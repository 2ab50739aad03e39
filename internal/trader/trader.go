package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/cleyfe/hyperliquid-arb/internal/hyperliquid"
	"github.com/cleyfe/hyperliquid-arb/internal/metrics"
	"github.com/cleyfe/hyperliquid-arb/internal/models"
)

// Hyperliquid caps total price precision; the allowance differs per venue.
const (
	perpPriceDecimals = 6
	spotPriceDecimals = 8
)

// ExchangeClient is the order-placing slice of the Hyperliquid client.
type ExchangeClient interface {
	PlaceOrder(ctx context.Context, req hyperliquid.OrderRequest) (*hyperliquid.OrderResult, error)
	CancelOrder(ctx context.Context, assetID int, cloid string) error
}

// PositionStore persists positions across restarts.
type PositionStore interface {
	SavePosition(ctx context.Context, position *models.Position) error
}

type Config struct {
	PositionSizeUSD decimal.Decimal
	MaxSlippage     decimal.Decimal
	MaxPositions    int
}

// Trader opens and unwinds delta-neutral spot-long / perp-short pairs.
type Trader struct {
	client ExchangeClient
	store  PositionStore
	cfg    Config

	mu        sync.Mutex
	positions map[string]*models.Position
}

func NewTrader(client ExchangeClient, store PositionStore, cfg Config) *Trader {
	return &Trader{
		client:    client,
		store:     store,
		cfg:       cfg,
		positions: make(map[string]*models.Position),
	}
}

// Restore seeds the in-memory book from persisted positions, called once
// before the first scan.
func (t *Trader) Restore(positions []*models.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, position := range positions {
		if position.IsOpen() {
			t.positions[position.Symbol] = position
		}
	}

	if len(t.positions) > 0 {
		log.Info().Int("count", len(t.positions)).Msg("restored open positions")
	}
	metrics.OpenPositions.Set(float64(len(t.positions)))
}

// HasPosition reports whether a symbol already has live legs.
func (t *Trader) HasPosition(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.positions[symbol]
	return ok
}

// CanEnter reports whether the position cap still has room.
func (t *Trader) CanEnter() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.positions) < t.cfg.MaxPositions
}

// OpenPositions returns a snapshot of the live book.
func (t *Trader) OpenPositions() []*models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	positions := make([]*models.Position, 0, len(t.positions))
	for _, position := range t.positions {
		copied := *position
		positions = append(positions, &copied)
	}
	return positions
}

// Enter buys spot and shorts the perp for one market. The spot leg goes
// first; a failed perp leg unwinds it so no naked exposure survives the call.
func (t *Trader) Enter(ctx context.Context, market *models.Market, opp *models.Opportunity) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.positions[market.Symbol]; exists {
		return fmt.Errorf("position already open for %s", market.Symbol)
	}
	if len(t.positions) >= t.cfg.MaxPositions {
		return fmt.Errorf("position cap reached (%d)", t.cfg.MaxPositions)
	}

	mark := decimal.NewFromFloat(opp.MarkPrice)
	size := t.cfg.PositionSizeUSD.Div(mark).Truncate(int32(market.SizeDecimals))
	if size.IsZero() {
		return fmt.Errorf("position size truncates to zero for %s at mark %s", market.Symbol, mark)
	}

	log.Info().
		Str("symbol", market.Symbol).
		Float64("funding_apr", opp.FundingAPR).
		Str("size", size.String()).
		Str("notional_usd", t.cfg.PositionSizeUSD.String()).
		Msg("entering funding position")

	one := decimal.NewFromInt(1)
	spotPrice := mark.Mul(one.Add(t.cfg.MaxSlippage)).Round(spotPriceDecimals - int32(market.SizeDecimals))
	perpPrice := mark.Mul(one.Sub(t.cfg.MaxSlippage)).Round(perpPriceDecimals - int32(market.SizeDecimals))

	spotResult, err := t.client.PlaceOrder(ctx, hyperliquid.OrderRequest{
		AssetID: market.SpotAssetID,
		IsBuy:   true,
		Price:   spotPrice.String(),
		Size:    size.String(),
		Tif:     hyperliquid.TifGtc,
	})
	if err != nil {
		metrics.OrderErrors.Inc()
		return fmt.Errorf("spot leg failed for %s: %w", market.Symbol, err)
	}
	metrics.OrdersPlaced.WithLabelValues("spot", "buy").Inc()

	perpResult, err := t.client.PlaceOrder(ctx, hyperliquid.OrderRequest{
		AssetID: market.PerpAssetID,
		IsBuy:   false,
		Price:   perpPrice.String(),
		Size:    size.String(),
		Tif:     hyperliquid.TifGtc,
	})
	if err != nil {
		metrics.OrderErrors.Inc()
		log.Error().Err(err).Str("symbol", market.Symbol).Msg("perp leg failed, unwinding spot leg")
		t.unwindSpot(ctx, market, spotResult, size, mark)
		return fmt.Errorf("perp leg failed for %s: %w", market.Symbol, err)
	}
	metrics.OrdersPlaced.WithLabelValues("perp", "sell").Inc()

	position := &models.Position{
		ID:          uuid.NewString(),
		Symbol:      market.Symbol,
		Size:        size,
		NotionalUSD: t.cfg.PositionSizeUSD,
		EntryPrice:  mark,
		EntryAPR:    opp.FundingAPR,
		SpotOrderID: spotResult.Cloid,
		PerpOrderID: perpResult.Cloid,
		Status:      models.PositionOpen,
		OpenedAt:    time.Now(),
	}

	if err := t.store.SavePosition(ctx, position); err != nil {
		log.Error().Err(err).Str("symbol", market.Symbol).Msg("failed to persist position")
	}
	t.positions[market.Symbol] = position
	metrics.OpenPositions.Set(float64(len(t.positions)))

	log.Info().Str("symbol", market.Symbol).Str("id", position.ID).Msg("funding position opened")
	return nil
}

// Exit unwinds both legs, perp first so the account is never short-only. A
// failed leg leaves the position in closing state for the next cycle to
// retry; a perp buy-back that already filled is not re-sent, since the flat
// perp would reject another reduce-only order.
func (t *Trader) Exit(ctx context.Context, market *models.Market, markPrice float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	position, exists := t.positions[market.Symbol]
	if !exists {
		return fmt.Errorf("no open position for %s", market.Symbol)
	}

	log.Info().
		Str("symbol", market.Symbol).
		Str("id", position.ID).
		Msg("exiting funding position")

	mark := decimal.NewFromFloat(markPrice)
	one := decimal.NewFromInt(1)
	perpPrice := mark.Mul(one.Add(t.cfg.MaxSlippage)).Round(perpPriceDecimals - int32(market.SizeDecimals))
	spotPrice := mark.Mul(one.Sub(t.cfg.MaxSlippage)).Round(spotPriceDecimals - int32(market.SizeDecimals))

	if !position.PerpClosed {
		if _, err := t.client.PlaceOrder(ctx, hyperliquid.OrderRequest{
			AssetID:    market.PerpAssetID,
			IsBuy:      true,
			Price:      perpPrice.String(),
			Size:       position.Size.String(),
			ReduceOnly: true,
			Tif:        hyperliquid.TifGtc,
		}); err != nil {
			metrics.OrderErrors.Inc()
			position.Status = models.PositionClosing
			t.persist(ctx, position)
			return fmt.Errorf("perp close failed for %s: %w", market.Symbol, err)
		}
		metrics.OrdersPlaced.WithLabelValues("perp", "buy").Inc()
		position.PerpClosed = true
	}

	if _, err := t.client.PlaceOrder(ctx, hyperliquid.OrderRequest{
		AssetID: market.SpotAssetID,
		IsBuy:   false,
		Price:   spotPrice.String(),
		Size:    position.Size.String(),
		Tif:     hyperliquid.TifGtc,
	}); err != nil {
		metrics.OrderErrors.Inc()
		position.Status = models.PositionClosing
		t.persist(ctx, position)
		return fmt.Errorf("spot close failed for %s: %w", market.Symbol, err)
	}
	metrics.OrdersPlaced.WithLabelValues("spot", "sell").Inc()

	now := time.Now()
	position.Status = models.PositionClosed
	position.ClosedAt = &now
	t.persist(ctx, position)

	delete(t.positions, market.Symbol)
	metrics.OpenPositions.Set(float64(len(t.positions)))

	log.Info().Str("symbol", market.Symbol).Str("id", position.ID).Msg("funding position closed")
	return nil
}

// unwindSpot flattens the spot leg after a failed perp short. A still-resting
// order is cancelled by cloid; a filled one is sold back aggressively.
func (t *Trader) unwindSpot(ctx context.Context, market *models.Market, spotResult *hyperliquid.OrderResult, size, mark decimal.Decimal) {
	if !spotResult.Filled {
		err := t.client.CancelOrder(ctx, market.SpotAssetID, spotResult.Cloid)
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("symbol", market.Symbol).Msg("spot cancel failed, selling the leg back instead")
	}

	if err := t.emergencyClose(ctx, market.SpotAssetID, size, false, mark, market.SizeDecimals, spotPriceDecimals); err != nil {
		log.Error().Err(err).Str("symbol", market.Symbol).Msg("spot unwind failed, manual intervention required")
	}
}

// emergencyClose flattens one leg with an aggressively priced IOC limit.
// Hyperliquid has no market order type, so crossing the book by ten times the
// configured slippage is the closest equivalent.
func (t *Trader) emergencyClose(ctx context.Context, assetID int, size decimal.Decimal, isBuy bool, mark decimal.Decimal, sizeDecimals int, priceDecimals int32) error {
	aggression := t.cfg.MaxSlippage.Mul(decimal.NewFromInt(10))
	one := decimal.NewFromInt(1)

	var price decimal.Decimal
	if isBuy {
		price = mark.Mul(one.Add(aggression))
	} else {
		price = mark.Mul(one.Sub(aggression))
	}

	_, err := t.client.PlaceOrder(ctx, hyperliquid.OrderRequest{
		AssetID: assetID,
		IsBuy:   isBuy,
		Price:   price.Round(priceDecimals - int32(sizeDecimals)).String(),
		Size:    size.String(),
		Tif:     hyperliquid.TifIoc,
	})
	return err
}

func (t *Trader) persist(ctx context.Context, position *models.Position) {
	if err := t.store.SavePosition(ctx, position); err != nil {
		log.Error().Err(err).Str("symbol", position.Symbol).Msg("failed to persist position")
	}
}
