package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3000", cfg.AppPort)
	assert.False(t, cfg.UseTestnet)
	assert.Equal(t, 5.0, cfg.MinFundingAPR)
	assert.Equal(t, 1.0, cfg.ExitFundingAPR)
	assert.Equal(t, 1000.0, cfg.PositionSizeUSD)
	assert.Equal(t, 0.001, cfg.MaxSlippage)
	assert.Equal(t, 5, cfg.MaxPositions)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.False(t, cfg.DryRun)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("HYPERLIQUID_TESTNET", "true")
	t.Setenv("MIN_FUNDING_APR", "12.5")
	t.Setenv("POSITION_SIZE_USD", "250")
	t.Setenv("SCAN_INTERVAL", "15s")
	t.Setenv("MAX_POSITIONS", "2")
	t.Setenv("DRY_RUN", "true")

	cfg := Load()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.True(t, cfg.UseTestnet)
	assert.Equal(t, 12.5, cfg.MinFundingAPR)
	assert.Equal(t, 250.0, cfg.PositionSizeUSD)
	assert.Equal(t, 15*time.Second, cfg.ScanInterval)
	assert.Equal(t, 2, cfg.MaxPositions)
	assert.True(t, cfg.DryRun)
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("MIN_FUNDING_APR", "not-a-number")
	t.Setenv("SCAN_INTERVAL", "soon")
	t.Setenv("DRY_RUN", "maybe")

	cfg := Load()

	assert.Equal(t, 5.0, cfg.MinFundingAPR)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval)
	assert.False(t, cfg.DryRun)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			PrivateKey:      "abc123",
			Address:         "0xdead",
			MinFundingAPR:   5,
			ExitFundingAPR:  1,
			PositionSizeUSD: 1000,
			MaxSlippage:     0.001,
			MaxPositions:    5,
			ScanInterval:    time.Minute,
		}
	}

	t.Run("valid live config", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("dry run needs no credentials", func(t *testing.T) {
		cfg := base()
		cfg.PrivateKey = ""
		cfg.Address = ""
		cfg.DryRun = true
		require.NoError(t, cfg.Validate())
	})

	t.Run("live trading requires private key", func(t *testing.T) {
		cfg := base()
		cfg.PrivateKey = ""
		assert.ErrorContains(t, cfg.Validate(), "HYPERLIQUID_PRIVATE_KEY")
	})

	t.Run("live trading requires address", func(t *testing.T) {
		cfg := base()
		cfg.Address = ""
		assert.ErrorContains(t, cfg.Validate(), "HYPERLIQUID_ADDRESS")
	})

	t.Run("position size must be positive", func(t *testing.T) {
		cfg := base()
		cfg.PositionSizeUSD = 0
		assert.ErrorContains(t, cfg.Validate(), "POSITION_SIZE_USD")
	})

	t.Run("slippage bounds", func(t *testing.T) {
		cfg := base()
		cfg.MaxSlippage = 1.5
		assert.ErrorContains(t, cfg.Validate(), "MAX_SLIPPAGE")
	})

	t.Run("exit threshold must sit below entry", func(t *testing.T) {
		cfg := base()
		cfg.ExitFundingAPR = 6
		assert.ErrorContains(t, cfg.Validate(), "EXIT_FUNDING_APR")
	})

	t.Run("interval floor", func(t *testing.T) {
		cfg := base()
		cfg.ScanInterval = 100 * time.Millisecond
		assert.ErrorContains(t, cfg.Validate(), "SCAN_INTERVAL")
	})
}
