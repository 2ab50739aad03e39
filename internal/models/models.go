package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market describes one Hyperliquid perpetual together with its spot pairing.
type Market struct {
	Symbol       string `json:"symbol"`
	PerpAssetID  int    `json:"perp_asset_id"`
	SpotAssetID  int    `json:"spot_asset_id"` // 10000 + spot universe index
	SizeDecimals int    `json:"size_decimals"`
}

// Opportunity is a scanned funding snapshot for one market.
type Opportunity struct {
	Symbol     string    `json:"symbol"`
	FundingAPR float64   `json:"funding_apr"` // annualized, percent
	MarkPrice  float64   `json:"mark_price"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PositionStatus string

const (
	PositionOpen    PositionStatus = "open"
	PositionClosing PositionStatus = "closing"
	PositionClosed  PositionStatus = "closed"
)

// Position is one delta-neutral spot-long / perp-short pair.
type Position struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Size        decimal.Decimal `json:"size"` // base units, identical on both legs
	NotionalUSD decimal.Decimal `json:"notional_usd"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	EntryAPR    float64         `json:"entry_apr"`
	SpotOrderID string          `json:"spot_order_id"`
	PerpOrderID string          `json:"perp_order_id"`
	Status      PositionStatus  `json:"status"`
	PerpClosed  bool            `json:"perp_closed"` // buy-back filled, spot sell still pending
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`
}

// Reports whether the position still has live legs.
func (p *Position) IsOpen() bool {
	return p.Status == PositionOpen || p.Status == PositionClosing
}
