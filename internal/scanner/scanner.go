package scanner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cleyfe/hyperliquid-arb/internal/hyperliquid"
	"github.com/cleyfe/hyperliquid-arb/internal/models"
)

// SpotAssetIDOffset maps a spot universe index to its order asset id.
const SpotAssetIDOffset = 10000

// InfoClient is the read-only slice of the Hyperliquid client the scanner needs.
type InfoClient interface {
	Meta(ctx context.Context) (*hyperliquid.Meta, error)
	SpotMeta(ctx context.Context) (*hyperliquid.SpotMeta, error)
	MetaAndAssetCtxs(ctx context.Context) (*hyperliquid.Meta, []hyperliquid.AssetCtx, error)
}

// Scanner builds the perp/spot market map and turns asset contexts into
// ranked funding opportunities.
type Scanner struct {
	client InfoClient

	mu      sync.RWMutex
	markets map[string]*models.Market
}

func NewScanner(client InfoClient) *Scanner {
	return &Scanner{
		client:  client,
		markets: make(map[string]*models.Market),
	}
}

// Init joins the perp universe against the spot universe on base symbol.
// Perps without a spot listing cannot be hedged and are skipped.
func (s *Scanner) Init(ctx context.Context) error {
	perpMeta, err := s.client.Meta(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch perp meta: %w", err)
	}

	spotMeta, err := s.client.SpotMeta(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch spot meta: %w", err)
	}

	spotByBase := make(map[string]hyperliquid.SpotPair, len(spotMeta.Universe))
	for _, pair := range spotMeta.Universe {
		base := strings.SplitN(pair.Name, "/", 2)[0]
		if _, seen := spotByBase[base]; !seen {
			spotByBase[base] = pair
		}
	}

	markets := make(map[string]*models.Market)
	for idx, perp := range perpMeta.Universe {
		pair, ok := spotByBase[perp.Name]
		if !ok {
			continue
		}
		markets[perp.Name] = &models.Market{
			Symbol:       perp.Name,
			PerpAssetID:  idx,
			SpotAssetID:  SpotAssetIDOffset + pair.Index,
			SizeDecimals: perp.SizeDecimals,
		}
	}

	s.mu.Lock()
	s.markets = markets
	s.mu.Unlock()

	log.Info().Int("markets", len(markets)).Msg("initialized hedgeable markets")
	return nil
}

// Market returns the mapping for one symbol.
func (s *Scanner) Market(symbol string) (*models.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	market, ok := s.markets[symbol]
	return market, ok
}

// Scan fetches current asset contexts and returns opportunities ranked by
// absolute annualized funding, highest first.
func (s *Scanner) Scan(ctx context.Context) ([]*models.Opportunity, error) {
	meta, ctxs, err := s.client.MetaAndAssetCtxs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset contexts: %w", err)
	}

	n := len(ctxs)
	if len(meta.Universe) < n {
		n = len(meta.Universe)
	}

	now := time.Now()
	opportunities := make([]*models.Opportunity, 0, n)

	for idx := 0; idx < n; idx++ {
		symbol := meta.Universe[idx].Name
		if _, ok := s.Market(symbol); !ok {
			continue
		}

		assetCtx := ctxs[idx]
		funding, err := strconv.ParseFloat(assetCtx.Funding, 64)
		if err != nil {
			log.Warn().Str("symbol", symbol).Str("funding", assetCtx.Funding).Msg("skipping asset with unparseable funding")
			continue
		}
		markPrice, err := strconv.ParseFloat(assetCtx.MarkPx, 64)
		if err != nil || markPrice <= 0 {
			log.Warn().Str("symbol", symbol).Str("mark_px", assetCtx.MarkPx).Msg("skipping asset with unusable mark price")
			continue
		}

		opportunities = append(opportunities, &models.Opportunity{
			Symbol:     symbol,
			FundingAPR: annualize(funding),
			MarkPrice:  markPrice,
			UpdatedAt:  now,
		})
	}

	sort.Slice(opportunities, func(i, j int) bool {
		return abs(opportunities[i].FundingAPR) > abs(opportunities[j].FundingAPR)
	})

	return opportunities, nil
}

// annualize converts the exchange funding rate into a percent APR on a
// 365-day count, which is what the configured thresholds are quoted in.
func annualize(funding float64) float64 {
	return funding * 365 * 100
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
