package exchange

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"trading-pipeline/execution"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config configures a SimulatedExchange.
type Config struct {
	Tag              string             // prefix of venue order ids
	CashSymbol       string             // balance debited by buys and credited by sells
	StartingBalances map[string]float64 // initial account balances
	StartingPrices   map[string]float64 // known symbols and their initial prices
	Volatility       float64            // max absolute price move per MarketPrice read
	Seed             int64              // 0 seeds from the clock
	Latency          time.Duration      // simulated authentication delay
}

func DefaultConfig() Config {
	return Config{
		Tag:        "SIM",
		CashSymbol: "USD",
		StartingBalances: map[string]float64{
			"USD":  10000.0,
			"AAPL": 0.0,
			"MSFT": 0.0,
		},
		StartingPrices: map[string]float64{
			"AAPL": 150.25,
			"MSFT": 280.15,
		},
		Volatility: 0.5,
	}
}

// SimulatedExchange is an in-memory Venue. Orders fill completely and
// synchronously at their limit price. All methods are serialized.
type SimulatedExchange struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	rng         *rand.Rand
	connected   bool
	lastError   string
	signer      *Signer
	nextOrderID int64
	balances    map[string]decimal.Decimal
	prices      map[string]float64
	orders      []*VenueOrder
}

var _ Venue = (*SimulatedExchange)(nil)

func NewSimulatedExchange(config Config, logger *zap.Logger) *SimulatedExchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Tag == "" {
		config.Tag = "SIM"
	}
	if config.CashSymbol == "" {
		config.CashSymbol = "USD"
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	balances := make(map[string]decimal.Decimal, len(config.StartingBalances))
	for symbol, amount := range config.StartingBalances {
		balances[symbol] = decimal.NewFromFloat(amount)
	}
	prices := make(map[string]float64, len(config.StartingPrices))
	for symbol, price := range config.StartingPrices {
		prices[symbol] = price
	}

	return &SimulatedExchange{
		config:      config,
		logger:      logger.Named("simulated"),
		now:         time.Now,
		rng:         rand.New(rand.NewSource(seed)),
		nextOrderID: 1,
		balances:    balances,
		prices:      prices,
		orders:      make([]*VenueOrder, 0),
	}
}

func (e *SimulatedExchange) Authenticate(creds Credentials) error {
	e.logger.Info("Authenticating with simulated exchange", zap.Bool("sandbox", creds.Sandbox))
	if e.config.Latency > 0 {
		time.Sleep(e.config.Latency)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if creds.APIKey == "" {
		return e.fail(ErrMissingAPIKey)
	}

	if creds.SigningKey != "" {
		signer, err := NewSigner(creds.SigningKey)
		if err != nil {
			return e.fail(err)
		}
		e.signer = signer
	}

	e.connected = true
	e.logger.Info("Authentication successful", zap.String("address", e.address()))
	return nil
}

// MarketPrice moves the stored price by a uniform random offset within
// the configured volatility, stores it and returns it.
func (e *SimulatedExchange) MarketPrice(symbol string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return 0, e.fail(ErrNotConnected)
	}
	price, ok := e.prices[symbol]
	if !ok {
		return 0, e.fail(fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol))
	}

	price += (e.rng.Float64()*2 - 1) * e.config.Volatility
	e.prices[symbol] = price
	return price, nil
}

func (e *SimulatedExchange) SubscribeToMarketData(symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return e.fail(ErrNotConnected)
	}
	e.logger.Info("Subscribed to market data", zap.String("symbol", symbol))
	return nil
}

// PlaceOrder records the order as open and settles it immediately.
// Nothing changes when the account cannot cover it.
func (e *SimulatedExchange) PlaceOrder(symbol string, side execution.Side, quantity int, price float64) (VenueOrderID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return "", e.fail(ErrNotConnected)
	}
	if symbol == "" || !side.IsAvailable() || quantity <= 0 || price < 0 {
		return "", e.fail(fmt.Errorf("%w: %s %s %d @ %.2f", ErrInvalidOrder, sideName(side), symbol, quantity, price))
	}

	qty := decimal.NewFromInt(int64(quantity))
	required := qty.Mul(decimal.NewFromFloat(price))
	switch side {
	case execution.SideBuy:
		if e.balances[e.config.CashSymbol].LessThan(required) {
			return "", e.fail(fmt.Errorf("%w: %s", ErrInsufficientBalance, e.config.CashSymbol))
		}
	case execution.SideSell:
		if e.balances[symbol].LessThan(qty) {
			return "", e.fail(fmt.Errorf("%w: %s", ErrInsufficientBalance, symbol))
		}
	}

	order := &VenueOrder{
		ID:        VenueOrderID(fmt.Sprintf("%s_%d", e.config.Tag, e.nextOrderID)),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Status:    VenueOrderOpen,
		Timestamp: e.now(),
	}
	if e.signer != nil {
		signature, err := e.signer.SignOrder(*order)
		if err != nil {
			return "", e.fail(fmt.Errorf("sign order: %w", err))
		}
		// the venue only accepts orders whose signature recovers to the session key
		if !e.signer.VerifyOrder(*order, signature) {
			return "", e.fail(fmt.Errorf("%w: signature does not verify", ErrInvalidSigningKey))
		}
		order.Signature = signature
	}
	e.nextOrderID++
	e.orders = append(e.orders, order)

	e.logger.Info("Order placed",
		zap.String("order_id", string(order.ID)),
		zap.String("side", sideName(side)),
		zap.Int("quantity", quantity),
		zap.String("symbol", symbol),
		zap.Float64("price", price))

	e.settle(order, qty, required)
	return order.ID, nil
}

func (e *SimulatedExchange) settle(order *VenueOrder, qty, amount decimal.Decimal) {
	cash := e.config.CashSymbol
	switch order.Side {
	case execution.SideBuy:
		e.balances[cash] = e.balances[cash].Sub(amount)
		e.balances[order.Symbol] = e.balances[order.Symbol].Add(qty)
	case execution.SideSell:
		e.balances[cash] = e.balances[cash].Add(amount)
		e.balances[order.Symbol] = e.balances[order.Symbol].Sub(qty)
	}
	order.Status = VenueOrderFilled

	e.logger.Info("Order filled",
		zap.String("order_id", string(order.ID)),
		zap.String("cash_balance", e.balances[cash].StringFixed(2)))
}

// CancelOrder cancels an open order. Orders placed here fill immediately, so
// only orders that never settled can be cancelled.
func (e *SimulatedExchange) CancelOrder(id VenueOrderID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return e.fail(ErrNotConnected)
	}
	for _, order := range e.orders {
		if order.ID == id && order.Status == VenueOrderOpen {
			order.Status = VenueOrderCancelled
			e.logger.Info("Order cancelled", zap.String("order_id", string(id)))
			return nil
		}
	}
	return e.fail(fmt.Errorf("%w: %s", ErrOrderNotFound, id))
}

func (e *SimulatedExchange) OpenOrders() []VenueOrder {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]VenueOrder, 0)
	for _, order := range e.orders {
		if order.Status == VenueOrderOpen {
			out = append(out, *order)
		}
	}
	return out
}

// Orders returns every venue order in placement order.
func (e *SimulatedExchange) Orders() []VenueOrder {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]VenueOrder, 0, len(e.orders))
	for _, order := range e.orders {
		out = append(out, *order)
	}
	return out
}

func (e *SimulatedExchange) AccountBalance() (map[string]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return nil, e.fail(ErrNotConnected)
	}
	out := make(map[string]float64, len(e.balances))
	for symbol, amount := range e.balances {
		out[symbol] = amount.InexactFloat64()
	}
	return out, nil
}

// Balance returns the exact balance of symbol.
func (e *SimulatedExchange) Balance(symbol string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[symbol]
}

func (e *SimulatedExchange) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *SimulatedExchange) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// SetMarketPrice overrides the stored price of symbol, adding it if unknown.
func (e *SimulatedExchange) SetMarketPrice(symbol string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[symbol] = price
}

// Symbols returns the known symbols, sorted.
func (e *SimulatedExchange) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, 0, len(e.prices))
	for symbol := range e.prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Address is the account address derived from the signing key, or empty when
// orders are unsigned.
func (e *SimulatedExchange) Address() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.address()
}

func (e *SimulatedExchange) address() string {
	if e.signer == nil {
		return ""
	}
	return e.signer.Address()
}

// fail records err as the last error. Callers must hold e.mu.
func (e *SimulatedExchange) fail(err error) error {
	e.lastError = err.Error()
	e.logger.Warn("Exchange call failed", zap.Error(err))
	return err
}
