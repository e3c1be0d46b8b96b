package exchange

import (
	"fmt"
	"sync"

	"trading-pipeline/execution"

	"go.uber.org/zap"
)

// MinDisplayBalance hides dust from AccountBalance.
const MinDisplayBalance = 0.001

// Manager gates every Venue call behind a connectivity check. It never
// retries or reconnects.
type Manager struct {
	venue  Venue
	logger *zap.Logger

	mu        sync.RWMutex
	connected bool
}

func NewManager(venue Venue, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		venue:  venue,
		logger: logger.Named("exchange"),
	}
}

func (m *Manager) Connect(creds Credentials) error {
	m.logger.Info("Connecting to exchange")

	err := m.venue.Authenticate(creds)

	m.mu.Lock()
	m.connected = err == nil
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Exchange connection failed", zap.Error(err))
		return fmt.Errorf("connect: %w", err)
	}
	m.logger.Info("Exchange connection established")
	return nil
}

func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	m.logger.Info("Disconnected from exchange")
}

// IsConnected is true only when both the manager and the venue consider the
// session connected.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected && m.venue.IsConnected()
}

func (m *Manager) LivePrice(symbol string) (float64, error) {
	if err := m.checkConnected("live price"); err != nil {
		return 0, err
	}
	price, err := m.venue.MarketPrice(symbol)
	if err != nil {
		m.logger.Warn("Failed to get price", zap.String("symbol", symbol), zap.Error(err))
		return 0, err
	}
	m.logger.Debug("Live price", zap.String("symbol", symbol), zap.Float64("price", price))
	return price, nil
}

func (m *Manager) ExecuteLiveOrder(symbol string, side execution.Side, quantity int, price float64) (VenueOrderID, error) {
	if err := m.checkConnected("execute order"); err != nil {
		return "", err
	}
	id, err := m.venue.PlaceOrder(symbol, side, quantity, price)
	if err != nil {
		m.logger.Warn("Order execution failed",
			zap.String("symbol", symbol),
			zap.Stringer("side", side),
			zap.Error(err))
		return "", err
	}
	m.logger.Info("Live order executed", zap.String("order_id", string(id)))
	return id, nil
}

func (m *Manager) CancelLiveOrder(id VenueOrderID) error {
	if err := m.checkConnected("cancel order"); err != nil {
		return err
	}
	if err := m.venue.CancelOrder(id); err != nil {
		m.logger.Warn("Cancel failed", zap.String("order_id", string(id)), zap.Error(err))
		return err
	}
	return nil
}

func (m *Manager) Subscribe(symbol string) error {
	if err := m.checkConnected("subscribe"); err != nil {
		return err
	}
	return m.venue.SubscribeToMarketData(symbol)
}

// AccountBalance returns balances above MinDisplayBalance.
func (m *Manager) AccountBalance() (map[string]float64, error) {
	if err := m.checkConnected("account balance"); err != nil {
		return nil, err
	}
	balances, err := m.venue.AccountBalance()
	if err != nil {
		m.logger.Warn("Failed to get balance", zap.Error(err))
		return nil, err
	}
	out := make(map[string]float64, len(balances))
	for symbol, amount := range balances {
		if amount > MinDisplayBalance {
			out[symbol] = amount
		}
	}
	return out, nil
}

// LiveOrders returns the venue's open orders.
func (m *Manager) LiveOrders() ([]VenueOrder, error) {
	if err := m.checkConnected("live orders"); err != nil {
		return nil, err
	}
	return m.venue.OpenOrders(), nil
}

// LastError is the venue's most recent failure message.
func (m *Manager) LastError() string {
	return m.venue.LastError()
}

func (m *Manager) Status() string {
	if m.IsConnected() {
		return "Connected to Exchange (Live Trading Mode)"
	}
	return "Disconnected from Exchange"
}

func (m *Manager) checkConnected(op string) error {
	if m.IsConnected() {
		return nil
	}
	m.logger.Warn("Not connected to exchange", zap.String("op", op))
	return fmt.Errorf("%s: %w", op, ErrNotConnected)
}
