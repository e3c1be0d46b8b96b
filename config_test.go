package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var configKeys = []string{
	"TRADING_SYMBOLS", "SHORT_PERIODS", "LONG_PERIODS", "ORDER_QUANTITY", "HISTORY_SIZE",
	"MAX_POSITION_SIZE", "MAX_TOTAL_EXPOSURE",
	"EXCHANGE_API_KEY", "EXCHANGE_SECRET", "EXCHANGE_PASSPHRASE", "EXCHANGE_SIGNING_KEY",
	"EXCHANGE_SANDBOX", "EXCHANGE_SEED", "STARTING_CASH",
	"MARKET_DATA_CSV", "MARKET_DATA_WS_URL", "MARKET_DATA_WS_LIMIT",
	"LOG_DEVELOPMENT", "PYROSCOPE_SERVER_ADDRESS",
}

// clearConfigEnv blanks every key; empty values keep the defaults.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	config := loadConfigFromEnv()
	// an explicitly empty API key is honoured
	config.APIKey = DefaultConfig().APIKey
	assert.Equal(t, DefaultConfig(), config)
	require.NoError(t, config.Validate())

	assert.Equal(t, 10000.0, config.MaxPositionSize)
	assert.Equal(t, 50000.0, config.MaxTotalExposure)
	assert.Equal(t, []string{"AAPL", "MSFT"}, config.Symbols)
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("TRADING_SYMBOLS", " AAPL, TSLA ,,")
	t.Setenv("SHORT_PERIODS", "5")
	t.Setenv("LONG_PERIODS", "20")
	t.Setenv("ORDER_QUANTITY", "3")
	t.Setenv("HISTORY_SIZE", "50")
	t.Setenv("MAX_POSITION_SIZE", "2500.5")
	t.Setenv("MAX_TOTAL_EXPOSURE", "not-a-number")
	t.Setenv("EXCHANGE_API_KEY", `"quoted-key"`)
	t.Setenv("EXCHANGE_SIGNING_KEY", " 'abc' ")
	t.Setenv("EXCHANGE_SANDBOX", "false")
	t.Setenv("EXCHANGE_SEED", "42")
	t.Setenv("STARTING_CASH", "2000")
	t.Setenv("MARKET_DATA_WS_URL", "ws://localhost:9000/ticks")
	t.Setenv("MARKET_DATA_WS_LIMIT", "100")
	t.Setenv("LOG_DEVELOPMENT", "true")

	config := loadConfigFromEnv()

	assert.Equal(t, []string{"AAPL", "TSLA"}, config.Symbols)
	assert.Equal(t, 5, config.ShortPeriods)
	assert.Equal(t, 20, config.LongPeriods)
	assert.Equal(t, 3, config.OrderQuantity)
	assert.Equal(t, 2500.5, config.MaxPositionSize)
	assert.Equal(t, 50000.0, config.MaxTotalExposure)
	assert.Equal(t, "quoted-key", config.APIKey)
	assert.Equal(t, "abc", config.SigningKey)
	assert.False(t, config.Sandbox)
	assert.Equal(t, int64(42), config.Seed)
	assert.Equal(t, "ws://localhost:9000/ticks", config.MarketDataWSURL)
	assert.Equal(t, 100, config.MarketDataWSLimit)
	assert.True(t, config.LogDevelopment)

	ex := config.ExchangeConfig()
	assert.Equal(t, int64(42), ex.Seed)
	assert.Equal(t, 2000.0, ex.StartingBalances["USD"])
	assert.Contains(t, ex.StartingBalances, "TSLA")

	creds := config.Credentials()
	assert.Equal(t, "quoted-key", creds.APIKey)
	assert.False(t, creds.Sandbox)

	stream := config.StreamConfig()
	assert.Equal(t, "ws://localhost:9000/ticks", stream.URL)
	assert.Equal(t, []string{"AAPL", "TSLA"}, stream.Symbols)

	assert.Equal(t, 3, config.BotConfig().OrderQuantity)
	assert.Equal(t, 50, config.BotConfig().HistorySize)
	assert.Equal(t, 2500.5, config.RiskConfig().MaxPositionSize)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero period", func(c *Config) { c.ShortPeriods = 0 }},
		{"short not below long", func(c *Config) { c.ShortPeriods = 3 }},
		{"zero quantity", func(c *Config) { c.OrderQuantity = 0 }},
		{"history shorter than long window", func(c *Config) { c.HistorySize = 2 }},
		{"zero limit", func(c *Config) { c.MaxTotalExposure = 0 }},
		{"no feed", func(c *Config) { c.MarketDataCSV = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestRunReplaysSampleData(t *testing.T) {
	config := DefaultConfig()
	config.Seed = 1
	config.MarketDataCSV = filepath.Join(".", "market_data.csv")

	require.NoError(t, run(context.Background(), config, zaptest.NewLogger(t)))
}

func TestRunFailsWithoutAPIKey(t *testing.T) {
	config := DefaultConfig()
	config.APIKey = ""

	err := run(context.Background(), config, zaptest.NewLogger(t))
	require.Error(t, err)
}
