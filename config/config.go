package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	// Hyperliquid credentials. The private key is the secp256k1 API wallet
	// key; the address is the account whose positions it trades for.
	PrivateKey string
	Address    string
	UseTestnet bool

	// Strategy parameters.
	MinFundingAPR   float64 // percent, annualized; entry threshold on |APR|
	ExitFundingAPR  float64 // percent; unwind once |APR| decays below this
	PositionSizeUSD float64
	MaxSlippage     float64
	MaxPositions    int
	ScanInterval    time.Duration

	DBPath      string
	MetricsPort int // 0 disables the metrics server
	DryRun      bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment directly")
	}

	return &Config{
		AppPort:         getEnv("APP_PORT", "3000"),
		PrivateKey:      getEnv("HYPERLIQUID_PRIVATE_KEY", ""),
		Address:         getEnv("HYPERLIQUID_ADDRESS", ""),
		UseTestnet:      getEnvBool("HYPERLIQUID_TESTNET", false),
		MinFundingAPR:   getEnvFloat("MIN_FUNDING_APR", 5.0),
		ExitFundingAPR:  getEnvFloat("EXIT_FUNDING_APR", 1.0),
		PositionSizeUSD: getEnvFloat("POSITION_SIZE_USD", 1000),
		MaxSlippage:     getEnvFloat("MAX_SLIPPAGE", 0.001),
		MaxPositions:    getEnvInt("MAX_POSITIONS", 5),
		ScanInterval:    getEnvDuration("SCAN_INTERVAL", 60*time.Second),
		DBPath:          getEnv("DB_PATH", "hyperliquid-arb.db"),
		MetricsPort:     getEnvInt("METRICS_PORT", 9090),
		DryRun:          getEnvBool("DRY_RUN", false),
	}
}

// Checks that the loaded configuration can actually run.
func (c *Config) Validate() error {
	if !c.DryRun {
		if c.PrivateKey == "" {
			return errors.New("HYPERLIQUID_PRIVATE_KEY is required for live trading (set DRY_RUN=true to scan only)")
		}
		if c.Address == "" {
			return errors.New("HYPERLIQUID_ADDRESS is required for live trading")
		}
	}
	if c.PositionSizeUSD <= 0 {
		return fmt.Errorf("POSITION_SIZE_USD must be positive, got %v", c.PositionSizeUSD)
	}
	if c.MaxSlippage <= 0 || c.MaxSlippage >= 1 {
		return fmt.Errorf("MAX_SLIPPAGE must be in (0, 1), got %v", c.MaxSlippage)
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("MAX_POSITIONS must be positive, got %d", c.MaxPositions)
	}
	if c.ExitFundingAPR >= c.MinFundingAPR {
		return fmt.Errorf("EXIT_FUNDING_APR (%v) must be below MIN_FUNDING_APR (%v)", c.ExitFundingAPR, c.MinFundingAPR)
	}
	if c.ScanInterval < time.Second {
		return fmt.Errorf("SCAN_INTERVAL must be at least 1s, got %v", c.ScanInterval)
	}
	return nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
