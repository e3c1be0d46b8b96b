package strategy

import (
	"fmt"

	"trading-pipeline/indicators"
	"trading-pipeline/marketdata"

	"go.uber.org/zap"
)

// MovingAverageCrossover compares a short-window average against a long-window average.
type MovingAverageCrossover struct {
	ShortPeriods int
	LongPeriods  int

	logger *zap.Logger
}

var _ Strategy = (*MovingAverageCrossover)(nil)

// NewMovingAverageCrossover creates the strategy. A nil logger disables logging.
func NewMovingAverageCrossover(shortPeriods, longPeriods int, logger *zap.Logger) *MovingAverageCrossover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovingAverageCrossover{
		ShortPeriods: shortPeriods,
		LongPeriods:  longPeriods,
		logger:       logger,
	}
}

func (s *MovingAverageCrossover) Name() string {
	return fmt.Sprintf("Moving Average Crossover Strategy (%d/%d)", s.ShortPeriods, s.LongPeriods)
}

// Lookback is the longer of the two windows.
func (s *MovingAverageCrossover) Lookback() int {
	return max(s.ShortPeriods, s.LongPeriods)
}

// GenerateSignal implements Strategy.
func (s *MovingAverageCrossover) GenerateSignal(series marketdata.Series, symbol string) Signal {
	return s.Evaluate(series, symbol).Signal
}

// Evaluate computes both averages and the resulting signal.
func (s *MovingAverageCrossover) Evaluate(series marketdata.Series, symbol string) TradingSignal {
	prices := series.Prices(symbol)
	shortMA := indicators.MovingAverage(prices, s.ShortPeriods)
	longMA := indicators.MovingAverage(prices, s.LongPeriods)
	signal := compare(shortMA, longMA)

	s.logger.Debug("Generated signal",
		zap.String("strategy", s.Name()),
		zap.String("symbol", symbol),
		zap.Float64("short_ma", shortMA),
		zap.Float64("long_ma", longMA),
		zap.Stringer("signal", signal))

	return TradingSignal{
		Symbol:  symbol,
		Signal:  signal,
		ShortMA: shortMA,
		LongMA:  longMA,
	}
}

// Check reports whether series holds enough observations of symbol for both
// windows to be real averages rather than the 0.0 placeholder.
func (s *MovingAverageCrossover) Check(series marketdata.Series, symbol string) error {
	prices := series.Prices(symbol)
	for _, period := range []int{s.ShortPeriods, s.LongPeriods} {
		if _, err := indicators.SimpleMovingAverage(prices, period); err != nil {
			return fmt.Errorf("%s %d-period average for %s: %w", s.Name(), period, symbol, err)
		}
	}
	return nil
}
