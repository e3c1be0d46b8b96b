// Package bot drives the signal to position pipeline over a price feed.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trading-pipeline/exchange"
	"trading-pipeline/execution"
	"trading-pipeline/indicators"
	"trading-pipeline/marketdata"
	"trading-pipeline/risk"
	"trading-pipeline/strategy"

	"go.uber.org/zap"
)

var (
	ErrRiskRejected  = errors.New("order rejected by risk")
	ErrVenueRejected = errors.New("order rejected by venue")
)

type Config struct {
	Symbols       []string // symbols to trade; empty trades every symbol in the feed
	OrderQuantity int      // units per signal
	HistorySize   int      // observations kept per symbol; raised to the strategy's lookback
}

func DefaultConfig() Config {
	return Config{
		Symbols:       []string{"AAPL", "MSFT"},
		OrderQuantity: 10,
		HistorySize:   1000,
	}
}

// Stats counts pipeline outcomes.
type Stats struct {
	Ticks           int64
	Signals         int64
	OrdersExecuted  int64
	RiskRejections  int64
	VenueRejections int64
	SkippedSells    int64
}

// TradingBot composes a strategy, the risk book, the order book and a venue.
// Submit holds one lock across risk check, venue execution and position
// commit, so concurrent submissions never exceed the exposure limit. Tick
// re-marks take the same lock.
type TradingBot struct {
	config   Config
	strategy strategy.Strategy
	risk     *risk.Manager
	orders   *execution.OrderManager
	exchange *exchange.Manager
	prices   *marketdata.PriceCache
	logger   *zap.Logger

	tradeMu  sync.Mutex
	venueIDs map[execution.OrderID]exchange.VenueOrderID

	stateMu sync.RWMutex
	history map[string]marketdata.Series

	perfMu    sync.RWMutex
	stats     Stats
	startTime time.Time
	latencies map[Operation]*indicators.RollingWindow
}

func New(
	config Config,
	strat strategy.Strategy,
	riskManager *risk.Manager,
	orders *execution.OrderManager,
	exchangeManager *exchange.Manager,
	logger *zap.Logger,
) *TradingBot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.OrderQuantity <= 0 {
		config.OrderQuantity = DefaultConfig().OrderQuantity
	}
	if config.HistorySize <= 0 {
		config.HistorySize = DefaultConfig().HistorySize
	}
	config.HistorySize = max(config.HistorySize, strat.Lookback())
	return &TradingBot{
		config:    config,
		strategy:  strat,
		risk:      riskManager,
		orders:    orders,
		exchange:  exchangeManager,
		prices:    marketdata.NewPriceCache(),
		logger:    logger.Named("bot"),
		venueIDs:  make(map[execution.OrderID]exchange.VenueOrderID),
		history:   make(map[string]marketdata.Series),
		startTime: time.Now(),
		latencies: newLatencyWindows(),
	}
}

// Submit runs one order through risk, the order book, the venue and the
// position book. A rejected order is cancelled in the order book when it was
// already tracked. The returned order reflects its final local state.
func (b *TradingBot) Submit(symbol string, side execution.Side, quantity int, price float64) (execution.Order, error) {
	defer b.recordLatency(OpOrderPlacement, time.Now())

	b.tradeMu.Lock()
	defer b.tradeMu.Unlock()

	candidate := b.orders.NewOrder(symbol, side, quantity, price)
	if err := b.risk.CheckOrder(*candidate); err != nil {
		b.count(func(s *Stats) { s.RiskRejections++ })
		return *candidate, fmt.Errorf("%w: %w", ErrRiskRejected, err)
	}

	if err := b.orders.Add(candidate); err != nil {
		return *candidate, err
	}

	venueID, err := b.exchange.ExecuteLiveOrder(symbol, side, quantity, price)
	if err != nil {
		b.count(func(s *Stats) { s.VenueRejections++ })
		if cancelErr := b.orders.CancelOrder(candidate.ID); cancelErr != nil {
			b.logger.Error("Failed to cancel rejected order",
				zap.Int64("id", int64(candidate.ID)),
				zap.Error(cancelErr))
		}
		cancelled, _ := b.orders.Order(candidate.ID)
		return cancelled, fmt.Errorf("%w: %w", ErrVenueRejected, err)
	}
	b.venueIDs[candidate.ID] = venueID

	if err := b.orders.MarkFilled(candidate.ID); err != nil {
		return *candidate, err
	}
	filled, _ := b.orders.Order(candidate.ID)
	b.risk.UpdatePosition(filled)
	b.count(func(s *Stats) { s.OrdersExecuted++ })

	b.logger.Info("Order executed",
		zap.Int64("id", int64(filled.ID)),
		zap.String("venue_order_id", string(venueID)),
		zap.String("symbol", symbol),
		zap.Stringer("side", side),
		zap.Int("quantity", quantity),
		zap.Float64("price", price))
	return filled, nil
}

// OnTick records p, re-marks positions and trades on the resulting signal.
// Risk and venue rejections are counted, not returned.
func (b *TradingBot) OnTick(p marketdata.PricePoint) error {
	b.prices.Update(p)
	// an out-of-order tick never moves the mark backwards
	if latest, ok := b.prices.Latest(p.Symbol); ok {
		b.tradeMu.Lock()
		b.risk.UpdateMarketPrices(marketdata.Series{latest})
		b.tradeMu.Unlock()
	}

	window := b.record(p)

	b.count(func(s *Stats) { s.Ticks++ })
	if !b.trades(p.Symbol) {
		return nil
	}

	start := time.Now()
	signal := b.strategy.GenerateSignal(window, p.Symbol)
	b.recordLatency(OpSignalGeneration, start)
	if signal == strategy.SignalHold {
		return nil
	}
	b.count(func(s *Stats) { s.Signals++ })

	side, quantity := execution.SideBuy, b.config.OrderQuantity
	if signal == strategy.SignalSell {
		side = execution.SideSell
		pos, ok := b.risk.Position(p.Symbol)
		if !ok || pos.Quantity <= 0 {
			b.count(func(s *Stats) { s.SkippedSells++ })
			return nil
		}
		quantity = min(quantity, pos.Quantity)
	}

	_, err := b.Submit(p.Symbol, side, quantity, p.Price)
	switch {
	case err == nil, errors.Is(err, ErrRiskRejected), errors.Is(err, ErrVenueRejected):
		return nil
	default:
		return err
	}
}

// Run feeds series to OnTick in order until it is exhausted or ctx is done.
func (b *TradingBot) Run(ctx context.Context, series marketdata.Series) error {
	b.logger.Info("Running strategy",
		zap.String("strategy", b.strategy.Name()),
		zap.Int("ticks", len(series)))

	for _, p := range series {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.OnTick(p); err != nil {
			return err
		}
	}
	return nil
}

// RunStream trades on ticks from a connected stream until it closes or ctx is done.
func (b *TradingBot) RunStream(ctx context.Context, stream *marketdata.Stream) error {
	b.logger.Info("Running strategy on stream", zap.String("strategy", b.strategy.Name()))
	return stream.Run(ctx, b.OnTick)
}

// VenueOrderID returns the venue id of a locally filled order.
func (b *TradingBot) VenueOrderID(id execution.OrderID) (exchange.VenueOrderID, bool) {
	b.tradeMu.Lock()
	defer b.tradeMu.Unlock()
	venueID, ok := b.venueIDs[id]
	return venueID, ok
}

// LastPrice is the latest observed price of symbol.
func (b *TradingBot) LastPrice(symbol string) (float64, bool) {
	p, ok := b.prices.Latest(symbol)
	return p.Price, ok
}

// History returns a copy of the retained ticks of symbol, oldest first.
// At most Config.HistorySize ticks are kept per symbol.
func (b *TradingBot) History(symbol string) marketdata.Series {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	out := make(marketdata.Series, len(b.history[symbol]))
	copy(out, b.history[symbol])
	return out
}

// record appends p to its symbol's window and returns the window. Appends
// never write inside a previously returned window, so callers may read it
// without the lock.
func (b *TradingBot) record(p marketdata.PricePoint) marketdata.Series {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	window := append(b.history[p.Symbol], p)
	if len(window) > b.config.HistorySize {
		window = window[len(window)-b.config.HistorySize:]
	}
	b.history[p.Symbol] = window
	return window
}

func (b *TradingBot) Stats() Stats {
	b.perfMu.RLock()
	defer b.perfMu.RUnlock()
	return b.stats
}

func (b *TradingBot) count(update func(*Stats)) {
	b.perfMu.Lock()
	update(&b.stats)
	b.perfMu.Unlock()
}

func (b *TradingBot) trades(symbol string) bool {
	if len(b.config.Symbols) == 0 {
		return true
	}
	for _, s := range b.config.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
