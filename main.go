package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trading-pipeline/bot"
	"trading-pipeline/exchange"
	"trading-pipeline/execution"
	"trading-pipeline/marketdata"
	"trading-pipeline/risk"
	"trading-pipeline/strategy"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func startProfiler(config *Config, logger *zap.Logger) (*pyroscope.Profiler, error) {
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: "trading-pipeline",
		ServerAddress:   config.PyroscopeServerAddress,
		Tags: map[string]string{
			"sandbox": fmt.Sprint(config.Sandbox),
		},
		Logger: logger.Named("pyroscope").Sugar(),
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}

// loadFeed returns the ticks to replay, or a connected stream when the
// websocket feed should be traded live. Loading is timed by the bot.
func loadFeed(ctx context.Context, config *Config, tradingBot *bot.TradingBot, logger *zap.Logger) (marketdata.Series, *marketdata.Stream, error) {
	if config.MarketDataWSURL == "" {
		series, err := tradingBot.LoadData(func() (marketdata.Series, error) {
			return marketdata.LoadCSVFile(config.MarketDataCSV)
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Loaded market data",
			zap.String("path", config.MarketDataCSV),
			zap.Int("records", len(series)))
		return series, nil, nil
	}

	stream := marketdata.NewStream(config.StreamConfig(), logger)
	if err := stream.Connect(ctx); err != nil {
		return nil, nil, err
	}
	if config.MarketDataWSLimit <= 0 {
		return nil, stream, nil
	}

	defer stream.Close()
	series, err := tradingBot.LoadData(func() (marketdata.Series, error) {
		return stream.Collect(ctx, config.MarketDataWSLimit)
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Collected market data",
		zap.String("url", config.MarketDataWSURL),
		zap.Int("records", len(series)))
	return series, nil, nil
}

func run(ctx context.Context, config *Config, logger *zap.Logger) error {
	venue := exchange.NewSimulatedExchange(config.ExchangeConfig(), logger)
	exchangeManager := exchange.NewManager(venue, logger)
	if err := exchangeManager.Connect(config.Credentials()); err != nil {
		return err
	}
	defer exchangeManager.Disconnect()

	if address := venue.Address(); address != "" {
		logger.Info("Signing orders", zap.String("address", address))
	}
	for _, symbol := range config.Symbols {
		if err := exchangeManager.Subscribe(symbol); err != nil {
			logger.Warn("Subscribe failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	strat := strategy.NewMovingAverageCrossover(config.ShortPeriods, config.LongPeriods, logger)
	tradingBot := bot.New(
		config.BotConfig(),
		strat,
		risk.NewManager(config.RiskConfig(), logger),
		execution.NewOrderManager(logger),
		exchangeManager,
		logger,
	)

	series, stream, err := loadFeed(ctx, config, tradingBot, logger)
	if err != nil {
		return err
	}

	if stream != nil {
		defer stream.Close()
		err = tradingBot.RunStream(ctx, stream)
	} else {
		for _, symbol := range series.Symbols() {
			s := marketdata.Stats(series, symbol)
			logger.Info("Market data summary",
				zap.String("symbol", s.Symbol),
				zap.Int("count", s.Count),
				zap.Float64("average", s.AveragePrice),
				zap.Float64("highest", s.HighestPrice),
				zap.Float64("lowest", s.LowestPrice),
				zap.Int("volume", s.TotalVolume))
		}
		err = tradingBot.Run(ctx, series)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	for _, symbol := range config.Symbols {
		history := tradingBot.History(symbol)
		last, _ := tradingBot.LastPrice(symbol)
		if checkErr := strat.Check(history, symbol); checkErr != nil {
			logger.Warn("Signal based on partial data", zap.Error(checkErr))
		}
		signal := strat.Evaluate(history, symbol)
		logger.Info("Final signal",
			zap.String("symbol", symbol),
			zap.Float64("last_price", last),
			zap.Float64("short_ma", signal.ShortMA),
			zap.Float64("long_ma", signal.LongMA),
			zap.Stringer("signal", signal.Signal))
	}

	latency := tradingBot.Latency()
	logger.Info("Pipeline latency",
		zap.Float64("data_load_ms", latency.DataLoad.Average),
		zap.Float64("signal_generation_p50_ms", latency.SignalGeneration.P50),
		zap.Float64("order_placement_p50_ms", latency.OrderPlacement.P50),
		zap.Float64("order_placement_max_ms", latency.OrderPlacement.Max))

	fmt.Println(tradingBot.Report())
	return nil
}

func main() {
	if err := godotenv.Overload(); err != nil {
		log.Printf("Info: no .env file loaded, using environment only: %v", err)
	}

	config := loadConfigFromEnv()

	logger, err := newLogger(config.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := config.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	if config.PyroscopeServerAddress != "" {
		profiler, err := startProfiler(config, logger)
		if err != nil {
			logger.Fatal("Pyroscope start failed", zap.Error(err))
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	logger.Info("Starting trading pipeline",
		zap.Strings("symbols", config.Symbols),
		zap.Int("short_periods", config.ShortPeriods),
		zap.Int("long_periods", config.LongPeriods),
		zap.Int("order_quantity", config.OrderQuantity),
		zap.Int("history_size", config.HistorySize),
		zap.Float64("max_position_size", config.MaxPositionSize),
		zap.Float64("max_total_exposure", config.MaxTotalExposure),
		zap.Bool("sandbox", config.Sandbox))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger); err != nil {
		logger.Error("Trading pipeline failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Trading pipeline finished")
}
