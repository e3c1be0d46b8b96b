package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"trading-pipeline/execution"
	"trading-pipeline/marketdata"

	"go.uber.org/zap"
)

var (
	ErrRiskLimit        = errors.New("risk limit exceeded")
	ErrMaxPositionSize  = fmt.Errorf("%w: order exceeds max position size", ErrRiskLimit)
	ErrMaxTotalExposure = fmt.Errorf("%w: order exceeds max total exposure", ErrRiskLimit)
)

// Position is the net holding in one symbol. A positive Quantity is long,
// negative is short. AvgPrice is only meaningful while Quantity is non-zero.
type Position struct {
	Symbol        string
	Quantity      int
	AvgPrice      float64
	CurrentPrice  float64
	UnrealizedPnL float64
}

// Notional is the absolute marked value of the position.
func (p Position) Notional() float64 {
	return math.Abs(float64(p.Quantity) * p.CurrentPrice)
}

func (p Position) String() string {
	return fmt.Sprintf("%s | Qty: %d | Avg: $%.2f | Current: $%.2f | P&L: $%.2f",
		p.Symbol, p.Quantity, p.AvgPrice, p.CurrentPrice, p.UnrealizedPnL)
}

// Config holds the limits, in currency units.
type Config struct {
	MaxPositionSize  float64
	MaxTotalExposure float64
}

func DefaultConfig() Config {
	return Config{
		MaxPositionSize:  10000.0,
		MaxTotalExposure: 50000.0,
	}
}

// Manager owns the position book. Each method is atomic on its own; callers
// that validate and then commit must hold their own lock across both.
type Manager struct {
	config Config
	logger *zap.Logger

	mu        sync.RWMutex
	positions map[string]*Position
}

func NewManager(config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config:    config,
		logger:    logger.Named("risk"),
		positions: make(map[string]*Position),
	}
}

func (m *Manager) Config() Config {
	return m.config
}

// CheckOrder returns nil when order fits within both limits. The notional is
// the order's own quantity times price. Nothing is reserved.
func (m *Manager) CheckOrder(order execution.Order) error {
	notional := order.Notional()
	if notional > m.config.MaxPositionSize {
		m.logger.Warn("Order rejected",
			zap.String("symbol", order.Symbol),
			zap.Float64("notional", notional),
			zap.Float64("max_position_size", m.config.MaxPositionSize))
		return fmt.Errorf("%w: %.2f > %.2f", ErrMaxPositionSize, notional, m.config.MaxPositionSize)
	}

	exposure := m.TotalExposure()
	if exposure+notional > m.config.MaxTotalExposure {
		m.logger.Warn("Order rejected",
			zap.String("symbol", order.Symbol),
			zap.Float64("notional", notional),
			zap.Float64("exposure", exposure),
			zap.Float64("max_total_exposure", m.config.MaxTotalExposure))
		return fmt.Errorf("%w: %.2f + %.2f > %.2f",
			ErrMaxTotalExposure, exposure, notional, m.config.MaxTotalExposure)
	}
	return nil
}

// ValidateOrder is the boolean form of CheckOrder. currentPrice is accepted
// for callers that already hold a mark; the checks use the order's price.
func (m *Manager) ValidateOrder(order execution.Order, currentPrice float64) bool {
	return m.CheckOrder(order) == nil
}

// UpdatePosition applies a filled order to the book. Non-filled orders are ignored.
//
// A fill on the same side as the position moves the average price; a fill on
// the opposite side only changes quantity. A fill that crosses zero therefore
// leaves the previous average in place on the new side.
func (m *Manager) UpdatePosition(order execution.Order) {
	if order.Status != execution.StatusFilled {
		return
	}
	delta := order.Side.Sign() * order.Quantity
	if delta == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[order.Symbol]
	if !ok {
		m.positions[order.Symbol] = &Position{
			Symbol:       order.Symbol,
			Quantity:     delta,
			AvgPrice:     order.Price,
			CurrentPrice: order.Price,
		}
		m.logger.Info("Position opened",
			zap.String("symbol", order.Symbol),
			zap.Int("quantity", delta),
			zap.Float64("avg_price", order.Price))
		return
	}

	if sameSign(pos.Quantity, delta) {
		total := pos.Quantity + delta
		pos.AvgPrice = (float64(pos.Quantity)*pos.AvgPrice + float64(delta)*order.Price) / float64(total)
		pos.Quantity = total
	} else {
		pos.Quantity += delta
	}

	if pos.Quantity == 0 {
		delete(m.positions, order.Symbol)
		m.logger.Info("Position closed", zap.String("symbol", order.Symbol))
		return
	}

	m.logger.Info("Position updated",
		zap.String("symbol", order.Symbol),
		zap.Int("quantity", pos.Quantity),
		zap.Float64("avg_price", pos.AvgPrice))
}

// UpdateMarketPrices marks every held symbol that appears in series at its
// last observation. Positions in other symbols keep their previous mark.
func (m *Manager) UpdateMarketPrices(series marketdata.Series) {
	latest := series.LatestPrices()

	m.mu.Lock()
	defer m.mu.Unlock()

	for symbol, price := range latest {
		pos, ok := m.positions[symbol]
		if !ok {
			continue
		}
		pos.CurrentPrice = price
		pos.UnrealizedPnL = float64(pos.Quantity) * (price - pos.AvgPrice)
	}
}

// TotalExposure is the sum of |quantity * currentPrice| over all positions.
func (m *Manager) TotalExposure() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0.0
	for _, pos := range m.positions {
		total += pos.Notional()
	}
	return total
}

func (m *Manager) TotalUnrealizedPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0.0
	for _, pos := range m.positions {
		total += pos.UnrealizedPnL
	}
	return total
}

// Position returns a copy of the position in symbol. Absence means flat.
func (m *Manager) Position(symbol string) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions sorted by symbol.
func (m *Manager) Positions() []Position {
	m.mu.RLock()
	out := make([]Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func sameSign(a, b int) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
