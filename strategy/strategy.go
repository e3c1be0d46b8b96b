// Package strategy turns price series into trade signals.
package strategy

import (
	"trading-pipeline/marketdata"
)

// Signal is the trade direction produced by a strategy.
type Signal int

const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	case SignalHold:
		return "HOLD"
	default:
		return "UNKNOWN"
	}
}

// Strategy produces a signal from a price series for one symbol.
// Implementations must be pure functions of their inputs. Lookback is the
// number of trailing observations per symbol GenerateSignal depends on.
type Strategy interface {
	Name() string
	Lookback() int
	GenerateSignal(series marketdata.Series, symbol string) Signal
}

// TradingSignal carries a signal together with the values that produced it.
type TradingSignal struct {
	Symbol  string
	Signal  Signal
	ShortMA float64
	LongMA  float64
}

// GenerateSignal applies the moving-average crossover rule to the observations
// of symbol in series. Periods without enough observations average to 0.0, so an
// empty or short series holds.
func GenerateSignal(series marketdata.Series, symbol string, shortPeriods, longPeriods int) Signal {
	return NewMovingAverageCrossover(shortPeriods, longPeriods, nil).GenerateSignal(series, symbol)
}

func compare(shortMA, longMA float64) Signal {
	switch {
	case shortMA > longMA:
		return SignalBuy
	case shortMA < longMA:
		return SignalSell
	default:
		return SignalHold
	}
}
