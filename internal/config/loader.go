package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PAPERTRADE_* environment variable overrides, and
// returns the final Config. The caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads the PAPERTRADE_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Database.URL, "PAPERTRADE_DATABASE_URL")

	setDecimal(&cfg.Broker.InitialCash, "PAPERTRADE_BROKER_INITIAL_CASH")
	setDecimal(&cfg.Broker.FeeRate, "PAPERTRADE_BROKER_FEE_RATE")
	setDecimal(&cfg.Broker.MarginRequirement, "PAPERTRADE_BROKER_MARGIN_REQUIREMENT")
	setDecimal(&cfg.Broker.MaintenanceMargin, "PAPERTRADE_BROKER_MAINTENANCE_MARGIN")

	setStringSlice(&cfg.Backtest.Tickers, "PAPERTRADE_BACKTEST_TICKERS")
	setStr(&cfg.Backtest.Interval, "PAPERTRADE_BACKTEST_INTERVAL")
	setInt(&cfg.Backtest.MaxHistory, "PAPERTRADE_BACKTEST_MAX_HISTORY")
	setBool(&cfg.Backtest.Progress, "PAPERTRADE_BACKTEST_PROGRESS")

	setStr(&cfg.Strategy.Name, "PAPERTRADE_STRATEGY_NAME")

	setStr(&cfg.Report.CSVPath, "PAPERTRADE_REPORT_CSV_PATH")
	setDecimal(&cfg.Report.RiskFreeRate, "PAPERTRADE_REPORT_RISK_FREE_RATE")

	setStr(&cfg.LogLevel, "PAPERTRADE_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
