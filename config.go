package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"trading-pipeline/bot"
	"trading-pipeline/exchange"
	"trading-pipeline/marketdata"
	"trading-pipeline/risk"
)

// Config is the binary's configuration, read from the environment and .env.
type Config struct {
	// Strategy
	Symbols       []string `json:"symbols"`
	ShortPeriods  int      `json:"short_periods"`
	LongPeriods   int      `json:"long_periods"`
	OrderQuantity int      `json:"order_quantity"`
	HistorySize   int      `json:"history_size"`

	// Risk
	MaxPositionSize  float64 `json:"max_position_size"`
	MaxTotalExposure float64 `json:"max_total_exposure"`

	// Exchange
	APIKey       string  `json:"-"`
	Secret       string  `json:"-"`
	Passphrase   string  `json:"-"`
	SigningKey   string  `json:"-"`
	Sandbox      bool    `json:"sandbox"`
	Seed         int64   `json:"seed"`
	StartingCash float64 `json:"starting_cash"`

	// Market data
	MarketDataCSV     string `json:"market_data_csv"`
	MarketDataWSURL   string `json:"market_data_ws_url"`
	MarketDataWSLimit int    `json:"market_data_ws_limit"`

	// Logging and profiling
	LogDevelopment         bool   `json:"log_development"`
	PyroscopeServerAddress string `json:"pyroscope_server_address,omitempty"`
}

func DefaultConfig() *Config {
	riskDefaults := risk.DefaultConfig()
	botDefaults := bot.DefaultConfig()
	return &Config{
		Symbols:          botDefaults.Symbols,
		ShortPeriods:     2,
		LongPeriods:      3,
		OrderQuantity:    botDefaults.OrderQuantity,
		HistorySize:      botDefaults.HistorySize,
		MaxPositionSize:  riskDefaults.MaxPositionSize,
		MaxTotalExposure: riskDefaults.MaxTotalExposure,
		APIKey:           "sandbox",
		Sandbox:          true,
		StartingCash:     exchange.DefaultConfig().StartingBalances["USD"],
		MarketDataCSV:    "market_data.csv",
	}
}

// loadConfigFromEnv overlays environment variables on DefaultConfig.
// Unparseable values keep the default.
func loadConfigFromEnv() *Config {
	config := DefaultConfig()

	if symbols := os.Getenv("TRADING_SYMBOLS"); symbols != "" {
		config.Symbols = splitList(symbols)
	}
	if v := os.Getenv("SHORT_PERIODS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			config.ShortPeriods = val
		}
	}
	if v := os.Getenv("LONG_PERIODS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			config.LongPeriods = val
		}
	}
	if v := os.Getenv("ORDER_QUANTITY"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			config.OrderQuantity = val
		}
	}
	if v := os.Getenv("HISTORY_SIZE"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			config.HistorySize = val
		}
	}

	if v := os.Getenv("MAX_POSITION_SIZE"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			config.MaxPositionSize = val
		}
	}
	if v := os.Getenv("MAX_TOTAL_EXPOSURE"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			config.MaxTotalExposure = val
		}
	}

	if v, ok := os.LookupEnv("EXCHANGE_API_KEY"); ok {
		config.APIKey = unquote(v)
	}
	if v := os.Getenv("EXCHANGE_SECRET"); v != "" {
		config.Secret = unquote(v)
	}
	if v := os.Getenv("EXCHANGE_PASSPHRASE"); v != "" {
		config.Passphrase = unquote(v)
	}
	if v := os.Getenv("EXCHANGE_SIGNING_KEY"); v != "" {
		config.SigningKey = unquote(v)
	}
	if v := os.Getenv("EXCHANGE_SANDBOX"); v != "" {
		config.Sandbox = v == "true"
	}
	if v := os.Getenv("EXCHANGE_SEED"); v != "" {
		if val, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Seed = val
		}
	}
	if v := os.Getenv("STARTING_CASH"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			config.StartingCash = val
		}
	}

	if v := os.Getenv("MARKET_DATA_CSV"); v != "" {
		config.MarketDataCSV = v
	}
	if v := os.Getenv("MARKET_DATA_WS_URL"); v != "" {
		config.MarketDataWSURL = v
	}
	if v := os.Getenv("MARKET_DATA_WS_LIMIT"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			config.MarketDataWSLimit = val
		}
	}

	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		config.LogDevelopment = v == "true"
	}
	if v := os.Getenv("PYROSCOPE_SERVER_ADDRESS"); v != "" {
		config.PyroscopeServerAddress = v
	}

	return config
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.ShortPeriods <= 0 || c.LongPeriods <= 0:
		return fmt.Errorf("moving average periods must be positive: %d/%d", c.ShortPeriods, c.LongPeriods)
	case c.ShortPeriods >= c.LongPeriods:
		return fmt.Errorf("short period %d must be less than long period %d", c.ShortPeriods, c.LongPeriods)
	case c.OrderQuantity <= 0:
		return fmt.Errorf("order quantity must be positive: %d", c.OrderQuantity)
	case c.HistorySize < c.LongPeriods:
		return fmt.Errorf("history size %d must cover long period %d", c.HistorySize, c.LongPeriods)
	case c.MaxPositionSize <= 0 || c.MaxTotalExposure <= 0:
		return fmt.Errorf("risk limits must be positive")
	case c.MarketDataCSV == "" && c.MarketDataWSURL == "":
		return fmt.Errorf("no market data source: set MARKET_DATA_CSV or MARKET_DATA_WS_URL")
	}
	return nil
}

func (c *Config) RiskConfig() risk.Config {
	return risk.Config{
		MaxPositionSize:  c.MaxPositionSize,
		MaxTotalExposure: c.MaxTotalExposure,
	}
}

// ExchangeConfig is the simulated venue's configuration. Every traded symbol
// gets a zero starting balance so sells report a clear shortfall.
func (c *Config) ExchangeConfig() exchange.Config {
	config := exchange.DefaultConfig()
	config.Seed = c.Seed
	config.StartingBalances[config.CashSymbol] = c.StartingCash
	for _, symbol := range c.Symbols {
		if _, ok := config.StartingBalances[symbol]; !ok {
			config.StartingBalances[symbol] = 0
		}
	}
	return config
}

func (c *Config) Credentials() exchange.Credentials {
	return exchange.Credentials{
		APIKey:     c.APIKey,
		Secret:     c.Secret,
		Passphrase: c.Passphrase,
		SigningKey: c.SigningKey,
		Sandbox:    c.Sandbox,
	}
}

func (c *Config) BotConfig() bot.Config {
	return bot.Config{
		Symbols:       c.Symbols,
		OrderQuantity: c.OrderQuantity,
		HistorySize:   c.HistorySize,
	}
}

func (c *Config) StreamConfig() marketdata.StreamConfig {
	config := marketdata.DefaultStreamConfig(c.MarketDataWSURL)
	config.Symbols = c.Symbols
	return config
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// unquote trims surrounding whitespace and quotes.
func unquote(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "\"")
	return strings.Trim(v, "'")
}
